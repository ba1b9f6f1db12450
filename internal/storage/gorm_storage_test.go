package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T) *GormStorage {
	t.Helper()
	st, err := Open(context.Background(), Config{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st.(*GormStorage)
}

func TestGorm_Documents(t *testing.T) {
	ctx := context.Background()
	st := openSQLite(t)
	require.NoError(t, st.Ping(ctx))

	doc, err := st.GetDocument(ctx, "steel/tariff-updates.json")
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, PutJSON(ctx, st, "steel/tariff-updates.json", []string{"a"}))
	require.NoError(t, PutJSON(ctx, st, "steel/tariff-updates.json", []string{"b"}))

	doc, err = st.GetDocument(ctx, "steel/tariff-updates.json")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.JSONEq(t, `["b"]`, string(doc.Body))
	assert.Equal(t, ContentTypeJSON, doc.ContentType)
}

func TestGorm_JobStore(t *testing.T) {
	ctx := context.Background()
	st := openSQLite(t)

	require.NoError(t, st.SetSetting(ctx, "k", "v1"))
	require.NoError(t, st.SetSetting(ctx, "k", "v2"))
	v, err := st.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, st.SaveRunProgress(ctx, RunProgress{RunID: "r", Country: "Mexico", Industry: "steel", Status: RunPending}))
	require.NoError(t, st.SaveRunProgress(ctx, RunProgress{RunID: "r", Country: "Mexico", Industry: "steel", Status: RunDone, Attempts: 2}))
	got, err := st.ListRunProgress(ctx, "r")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, RunDone, got[0].Status)
	assert.Equal(t, 2, got[0].Attempts)

	require.NoError(t, st.UpdateScheduledJob(ctx, "refresh", time.Now(), time.Second, true, ""))

	ok, err := st.AcquireAdvisoryLock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_DefaultsToMemory(t *testing.T) {
	st, err := Open(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, st)
}
