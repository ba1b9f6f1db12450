package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_SQLiteUpDown(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "m.db")

	r, err := New("sqlite", dsn, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	before, err := r.Status(ctx)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.False(t, before[0].Applied)

	require.NoError(t, r.Up(ctx))
	after, err := r.Status(ctx)
	require.NoError(t, err)
	for _, s := range after {
		assert.True(t, s.Applied, s.Path)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO documents (key, content_type, body, updated_at) VALUES ('k', 'application/json', x'7b7d', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	require.NoError(t, r.Down(ctx))
	after, err = r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, after[0].Applied)
	assert.False(t, after[1].Applied)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "", zap.NewNop())
	assert.Error(t, err)
}
