package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsMonotonicLSN(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20, nil)
	require.NoError(t, err)
	defer s.Close()

	lsn1, err := s.Append(Entry{Kind: KindUpsert, ExternalID: "a"})
	require.NoError(t, err)
	lsn2, err := s.Append(Entry{Kind: KindUpsert, ExternalID: "b"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), lsn1)
	assert.Equal(t, uint64(2), lsn2)
	assert.Equal(t, uint64(3), s.NextLSN())
}

func TestAppendBatchIsConsecutive(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20, nil)
	require.NoError(t, err)
	defer s.Close()

	lsns, err := s.AppendBatch([]Entry{
		{Kind: KindUpsert, ExternalID: "a"},
		{Kind: KindUpsert, ExternalID: "b"},
		{Kind: KindUpsert, ExternalID: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, lsns)
}

func TestReopenResumesLSNAndReadsBackEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20, nil)
	require.NoError(t, err)

	_, err = s.Append(Entry{Kind: KindUpsert, ExternalID: "a"})
	require.NoError(t, err)
	_, err = s.Append(Entry{Kind: KindUpsert, ExternalID: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(dir, 1<<20, nil)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, uint64(3), s2.NextLSN())

	entries, corrupted, err := Replay(dir)
	require.NoError(t, err)
	assert.False(t, corrupted)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ExternalID)
	assert.Equal(t, "b", entries[1].ExternalID)
}

func TestRotationCreatesNewSegmentOnThreshold(t *testing.T) {
	dir := t.TempDir()
	// Threshold small enough that a couple of entries force a rotation.
	s, err := Open(dir, 64, nil)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		_, err := s.Append(Entry{Kind: KindUpsert, ExternalID: "x", Vector: []float32{1, 2, 3, 4}})
		require.NoError(t, err)
	}

	segments, err := filepath.Glob(filepath.Join(dir, "*.wal"))
	require.NoError(t, err)
	assert.Greater(t, len(segments), 1)
}

func TestReplayTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20, nil)
	require.NoError(t, err)

	_, err = s.Append(Entry{Kind: KindUpsert, ExternalID: "a"})
	require.NoError(t, err)
	_, err = s.Append(Entry{Kind: KindUpsert, ExternalID: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	segments, err := filepath.Glob(filepath.Join(dir, "*.wal"))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	f, err := os.OpenFile(segments[0], os.O_RDWR, 0o644)
	require.NoError(t, err)
	info, err := f.Stat()
	require.NoError(t, err)
	require.NoError(t, f.Truncate(info.Size()-3))
	require.NoError(t, f.Close())

	entries, corrupted, err := Replay(dir)
	require.NoError(t, err)
	assert.True(t, corrupted)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ExternalID)
}

func TestCheckpointAndCompactSegments(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 64, nil)
	require.NoError(t, err)
	defer s.Close()

	var lastLSN uint64
	for i := 0; i < 10; i++ {
		lsn, err := s.Append(Entry{Kind: KindUpsert, ExternalID: "x", Vector: []float32{1, 2, 3, 4}})
		require.NoError(t, err)
		lastLSN = lsn
	}
	require.NoError(t, s.Checkpoint(lastLSN))

	removed, err := s.CompactSegments()
	require.NoError(t, err)
	assert.Greater(t, removed, 0)
}
