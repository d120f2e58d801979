package vectorkeep

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.WAL.Directory = filepath.Join(dir, "wal")
	cfg.Snapshot.Directory = filepath.Join(dir, "warm")
	cfg.DeadLetter.Path = filepath.Join(dir, "deadletter.json")
	cfg.ObjectStore = ObjectStoreConfig{Backend: BackendMemory}
	return cfg
}

func TestCreateCollectionAndInsertGet(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	info, err := db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 3, Metric: MetricL2})
	require.NoError(t, err)
	assert.Equal(t, "docs", info.Name)
	assert.Equal(t, 3, info.Dimension)

	res, err := db.Insert("docs", VectorDocument{Vector: []float32{1, 2, 3}, ExternalID: "a"})
	require.NoError(t, err)
	assert.False(t, res.DocID.IsZero())

	got, err := db.Get("docs", res.DocID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ExternalID)
	assert.Equal(t, []float32{1, 2, 3}, got.Vector)

	count, err := db.Count("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertRejectsWrongDimension(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 3, Metric: MetricL2})
	require.NoError(t, err)

	_, err = db.Insert("docs", VectorDocument{Vector: []float32{1, 2}})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCreateCollectionDuplicateNameConflicts(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.ErrorIs(t, err, ErrCollectionExists)
}

func TestDeleteIsIdempotent(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	res, err := db.Insert("docs", VectorDocument{Vector: []float32{1, 1}})
	require.NoError(t, err)

	require.NoError(t, db.Delete("docs", res.DocID))
	require.NoError(t, db.Delete("docs", res.DocID)) // second delete is a no-op

	_, err = db.Get("docs", res.DocID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryReturnsNearestByL2(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	near, err := db.Insert("docs", VectorDocument{Vector: []float32{0, 0}})
	require.NoError(t, err)
	_, err = db.Insert("docs", VectorDocument{Vector: []float32{100, 100}})
	require.NoError(t, err)

	result, err := db.Query(QueryRequest{Collection: "docs", Vector: []float32{0, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, near.DocID, result.Results[0].DocID)
}

func TestQueryHonorsTermFilter(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	excluded, err := db.Insert("docs", VectorDocument{Vector: []float32{0, 0}, Metadata: map[string]any{"lang": "en"}})
	require.NoError(t, err)
	included, err := db.Insert("docs", VectorDocument{Vector: []float32{0.1, 0.1}, Metadata: map[string]any{"lang": "fr"}})
	require.NoError(t, err)

	result, err := db.Query(QueryRequest{
		Collection: "docs",
		Vector:     []float32{0, 0},
		TopK:       5,
		FilterJSON: `{"kind":"term","field":"lang","value":"fr"}`,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, included.DocID, result.Results[0].DocID)
	assert.NotEqual(t, excluded.DocID, result.Results[0].DocID)
	assert.Equal(t, map[string]any{"lang": "fr"}, result.Results[0].Metadata)
}

func TestGetReturnsMetadataAndInsertedAt(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	res, err := db.Insert("docs", VectorDocument{
		Vector:   []float32{1, 1},
		Metadata: map[string]any{"lang": "en"},
	})
	require.NoError(t, err)

	got, err := db.Get("docs", res.DocID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lang": "en"}, got.Metadata)
	assert.False(t, got.InsertedAt.IsZero())
}

func TestCrashRecoveryReplaysAllInserts(t *testing.T) {
	cfg := testConfig(t)

	db, err := Open(cfg)
	require.NoError(t, err)

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	const n = 1000
	ids := make([]DocumentID, n)
	for i := 0; i < n; i++ {
		res, err := db.Insert("docs", VectorDocument{Vector: []float32{float32(i), float32(i)}})
		require.NoError(t, err)
		ids[i] = res.DocID
	}

	// Simulate a crash: drop the reference without calling Close, so no
	// checkpoint or graceful shutdown runs, then reopen against the same
	// WAL directory.
	db = nil

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count("docs")
	require.NoError(t, err)
	assert.Equal(t, n, count)

	for _, id := range ids {
		_, err := reopened.Get("docs", id)
		require.NoError(t, err)
	}
}

func TestCheckpointRoundTripPreservesMetadata(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	res, err := db.Insert("docs", VectorDocument{
		Vector:   []float32{1, 1},
		Metadata: map[string]any{"lang": "en"},
	})
	require.NoError(t, err)

	id := db.ListCollections()[0].CollectionID
	ctx := context.Background()
	require.NoError(t, db.DemoteToCold(ctx, [16]byte(id)))
	require.NoError(t, db.PromoteToHot(ctx, [16]byte(id)))

	got, err := db.Get("docs", res.DocID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lang": "en"}, got.Metadata)
}

func TestCrashRecoveryPreservesMetadata(t *testing.T) {
	cfg := testConfig(t)

	db, err := Open(cfg)
	require.NoError(t, err)

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)

	res, err := db.Insert("docs", VectorDocument{
		Vector:   []float32{1, 1},
		Metadata: map[string]any{"lang": "en"},
	})
	require.NoError(t, err)

	db = nil

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("docs", res.DocID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lang": "en"}, got.Metadata)
}

func TestListCollectionsReportsDocumentCount(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateCollection(CollectionDescriptor{Name: "docs", Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)
	_, err = db.Insert("docs", VectorDocument{Vector: []float32{1, 1}})
	require.NoError(t, err)

	infos := db.ListCollections()
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].DocumentCount)
}

func TestIsReadyAndIsHealthy(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.IsReady())
	assert.True(t, db.IsHealthy())
}
