package revalidate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTrigger_PostsPathAndSecret(t *testing.T) {
	var (
		mu  sync.Mutex
		got []payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}))
	defer srv.Close()

	r := New(Config{URL: srv.URL, Secret: "s3cret"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	r.Trigger(ctx, PathFor("steel"))
	cancel() // the call is detached from the caller
	r.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, payload{Path: "/industry-tariff-report/steel", Secret: "s3cret"}, got[0])
	r.client.CloseIdleConnections()
}

func TestTrigger_ErrorsAreLoggedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	r := New(Config{URL: srv.URL}, zap.New(core))
	r.Trigger(context.Background(), "/x")
	r.Wait()
	r.client.CloseIdleConnections()

	entries := logs.FilterMessage("revalidation failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "401")
}

func TestTrigger_NoURLIsNoop(t *testing.T) {
	r := New(Config{}, zap.NewNop())
	r.Trigger(context.Background(), "/x")
	r.Wait()

	var nilR *Revalidator
	nilR.Trigger(context.Background(), "/x")
	nilR.Wait()
}
