package vectorkeep

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vectorkeep/vectorkeep/internal/filterlang"
	"github.com/vectorkeep/vectorkeep/internal/querycache"
)

// QueryRequest is the input to Query. FilterJSON, if non-empty, is a
// filterlang tree restricting which documents are eligible candidates.
type QueryRequest struct {
	Collection string
	Vector     []float32
	TopK       int
	EfSearch   int
	FilterJSON string
}

// Query runs approximate k-NN search against a collection, optionally
// restricted by a filter tree, with query-result caching keyed on an
// epoch that invalidates on every write to the collection.
func (db *DB) Query(req QueryRequest) (QueryResult, error) {
	start := time.Now()

	state, err := db.collectionByName(req.Collection)
	if err != nil {
		return QueryResult{}, err
	}
	if len(req.Vector) != state.descriptor.Dimension {
		return QueryResult{}, wrapErr("query", KindValidation, ErrDimensionMismatch)
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	if recErr := db.tieringCtl.RecordAccess(context.Background(), [16]byte(state.descriptor.CollectionID)); recErr != nil {
		db.logger.Warn("tiering record access failed", "collection", req.Collection, "error", recErr)
	}

	state.mu.RLock()
	epoch := state.epoch
	needsLoad := state.ann == nil
	state.mu.RUnlock()

	// A Cold collection whose access count hasn't yet crossed the hot
	// threshold is not auto-promoted by RecordAccess; a query still
	// demands its graph be resident, so load it here rather than fail.
	if needsLoad {
		if err := db.PromoteToHot(context.Background(), [16]byte(state.descriptor.CollectionID)); err != nil {
			return QueryResult{}, wrapErr("query", KindTransientIO, err)
		}
	}

	cacheKey := querycache.Key{
		CollectionName: req.Collection,
		QueryVector:    req.Vector,
		TopK:           req.TopK,
		FilterJSON:     req.FilterJSON,
		Epoch:          epoch,
	}
	if cached, ok := db.queryCache.Get(cacheKey); ok {
		result := cached.(QueryResult)
		result.LatencyMS = msSince(start)
		return result, nil
	}

	var mask *roaring.Bitmap
	if req.FilterJSON != "" {
		mask, err = db.compileFilter(state, req.FilterJSON)
		if err != nil {
			return QueryResult{}, err
		}
	}

	state.mu.RLock()
	hits := state.ann.Search(req.Vector, req.TopK, req.EfSearch, mask)
	results := make([]ScoredDocument, 0, len(hits))
	for _, h := range hits {
		docID := DocumentID(h.DocID)
		results = append(results, ScoredDocument{
			DocID:      docID,
			ExternalID: state.externalOf[h.Ordinal],
			Score:      h.Score,
			Metadata:   state.metadataOf[h.Ordinal],
		})
	}
	state.mu.RUnlock()

	result := QueryResult{Results: results}
	db.queryCache.Put(cacheKey, result)

	result.LatencyMS = msSince(start)
	return result, nil
}

func (db *DB) compileFilter(state *collectionState, filterJSON string) (*roaring.Bitmap, error) {
	node, err := state.filterCache.ParseCached([]byte(filterJSON))
	if err != nil {
		return nil, wrapErr("query", KindValidation, err)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	bm, err := filterlang.Compile(node, state.metaIdx)
	if err != nil {
		return nil, wrapErr("query", KindValidation, err)
	}
	return bm, nil
}
