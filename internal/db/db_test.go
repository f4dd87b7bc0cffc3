package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='ai_logs'").Scan(&tableName)
	require.NoError(t, err)
	assert.Equal(t, "ai_logs", tableName)
}

func TestOpenForTestingIsolated(t *testing.T) {
	a, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	b, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Close()) })

	_, err = a.Exec(`INSERT INTO ai_logs (id, timestamp_ns, call_type, provider, success, duration_ms) VALUES ('x', 1, 'text', 'openai', 1, 5)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow("SELECT COUNT(*) FROM ai_logs").Scan(&n))
	assert.Zero(t, n)
}

func TestOpenFileReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutriai.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO ai_logs (id, timestamp_ns, call_type, provider, success, duration_ms) VALUES ('x', 1, 'text', 'openai', 1, 5)`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	var n int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM ai_logs").Scan(&n))
	assert.Equal(t, 1, n)

	var mode string
	require.NoError(t, second.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
