package deadletter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndDrain(t *testing.T) {
	q := New(10, time.Hour, filepath.Join(t.TempDir(), "dlq.json"))
	q.Push(Entry{DocID: [16]byte{1}, Operation: "upsert", Reason: "boom"})

	assert.Equal(t, 1, q.Len())
	entries := q.Drain()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Reason)
	assert.Equal(t, 0, q.Len())
}

func TestPushEvictsOldestAtCapacity(t *testing.T) {
	q := New(2, time.Hour, filepath.Join(t.TempDir(), "dlq.json"))
	q.Push(Entry{DocID: [16]byte{1}, Operation: "a"})
	q.Push(Entry{DocID: [16]byte{2}, Operation: "b"})
	q.Push(Entry{DocID: [16]byte{3}, Operation: "c"})

	entries := q.Drain()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Operation)
	assert.Equal(t, "c", entries[1].Operation)
}

func TestPersistAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.json")
	q := New(10, time.Hour, path)
	q.Push(Entry{DocID: [16]byte{9}, Operation: "upsert", Reason: "disk full"})
	require.NoError(t, q.Persist())

	q2 := New(10, time.Hour, path)
	require.NoError(t, q2.Load())
	assert.Equal(t, 1, q2.Len())
}

func TestLoadFiltersExpiredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.json")
	q := New(10, time.Millisecond, path)
	q.Push(Entry{DocID: [16]byte{1}, Operation: "upsert", EnqueuedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, q.Persist())

	q2 := New(10, time.Millisecond, path)
	require.NoError(t, q2.Load())
	assert.Equal(t, 0, q2.Len())
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	q := New(10, time.Hour, filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, q.Load())
	assert.Equal(t, 0, q.Len())
}
