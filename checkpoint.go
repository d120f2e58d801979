package vectorkeep

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vectorkeep/vectorkeep/internal/snapshot"
)

// checkpointLoop periodically snapshots every collection whose ANN graph is
// resident (Hot or Warm) and compacts its WAL, stopping when ctx is
// cancelled (on Close). Cold collections are skipped.
func (db *DB) checkpointLoop(ctx context.Context) {
	interval := db.cfg.WAL.CheckpointEvery
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.checkpointAll(ctx)
		}
	}
}

func (db *DB) checkpointAll(ctx context.Context) {
	db.mu.RLock()
	states := make([]*collectionState, 0, len(db.collections))
	for _, st := range db.collections {
		states = append(states, st)
	}
	db.mu.RUnlock()

	for _, st := range states {
		if err := db.checkpointCollection(ctx, st); err != nil {
			db.logger.Warn("checkpoint failed", "collection", st.descriptor.Name, "error", err)
		}
	}
}

// checkpointCollection writes a warm-tier snapshot of the collection's
// current live set, marks the WAL checkpointed up to the LSN the snapshot
// was taken at, and compacts sealed segments below that boundary.
func (db *DB) checkpointCollection(ctx context.Context, state *collectionState) error {
	state.mu.RLock()
	if state.ann == nil {
		state.mu.RUnlock()
		return nil // Cold: the graph is not resident and the snapshot is current
	}
	docs := make([]snapshot.Document, 0, len(state.ordinalOf))
	for docID, ord := range state.ordinalOf {
		vec, ok := state.ann.Vector(ord)
		if !ok {
			continue
		}
		docs = append(docs, snapshot.Document{
			DocID:      [16]byte(docID),
			ExternalID: state.externalOf[ord],
			Vector:     vec,
			Metadata:   state.metadataOf[ord],
			InsertedAt: state.insertedAtOf[ord],
		})
	}
	metric := uint8(state.descriptor.Metric)
	dimension := state.descriptor.Dimension
	upToLSN := state.walStream.NextLSN()
	state.mu.RUnlock()

	blob, err := snapshot.Encode(docs, metric, dimension, snapshot.Codec(db.cfg.Snapshot.Codec))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(db.cfg.Snapshot.Directory, 0o755); err != nil {
		return fmt.Errorf("create warm snapshot directory: %w", err)
	}
	path := db.warmSnapshotPath(state.descriptor.CollectionID)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write warm snapshot %s: %w", path, err)
	}

	if err := state.walStream.Checkpoint(upToLSN); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	if _, err := state.walStream.CompactSegments(); err != nil {
		return fmt.Errorf("compact wal segments: %w", err)
	}

	// Graph compaction never runs on the request path; checkpointing is the
	// background maintenance loop, so this is where the tombstone ratio gets
	// checked and the graph rebuilt if it has crossed the threshold.
	state.mu.Lock()
	if state.ann != nil && state.ann.ShouldCompact() {
		state.ann.Compact()
	}
	state.mu.Unlock()

	return nil
}

// DemoteToWarm satisfies tiering.Hooks: it checkpoints the collection (if
// not already current) so the warm-tier snapshot reflects its live set,
// and leaves the in-memory ANN graph resident. vectorkeep's warm tier is a
// "cheaper to query, still resident" tier rather than an evicted one; see
// DESIGN.md for why the ANN graph is not actually unloaded between Hot and
// Warm.
func (db *DB) DemoteToWarm(ctx context.Context, collectionID [16]byte) error {
	state, ok := db.stateByID(CollectionID(collectionID))
	if !ok {
		return nil
	}
	return db.checkpointCollection(ctx, state)
}

// DemoteToCold satisfies tiering.Hooks: it checkpoints the collection,
// uploads the resulting snapshot to the object store under its cold-tier
// key, and frees the in-memory ANN graph and metadata postings. A
// subsequent PromoteToHot reloads them from the uploaded snapshot.
func (db *DB) DemoteToCold(ctx context.Context, collectionID [16]byte) error {
	id := CollectionID(collectionID)
	state, ok := db.stateByID(id)
	if !ok {
		return nil
	}
	if err := db.checkpointCollection(ctx, state); err != nil {
		return err
	}

	path := db.warmSnapshotPath(id)
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read warm snapshot for cold upload: %w", err)
	}

	snapshotID := fmt.Sprintf("%d", time.Now().UnixNano())
	key := db.coldSnapshotKey(id, snapshotID)
	if err := db.objectStore.Put(ctx, key, bytes.NewReader(blob), int64(len(blob))); err != nil {
		return fmt.Errorf("upload cold snapshot: %w", err)
	}

	state.mu.Lock()
	state.ann = nil
	state.metaIdx = nil
	state.mu.Unlock()

	return nil
}

// PromoteToHot satisfies tiering.Hooks: it reloads a collection's ANN graph
// and metadata postings from its most recent snapshot (cold, if the local
// warm copy was evicted; otherwise the local warm copy). It does not replay
// WAL entries: the rebuilt state is exactly what the snapshot holds.
func (db *DB) PromoteToHot(ctx context.Context, collectionID [16]byte) error {
	id := CollectionID(collectionID)
	state, ok := db.stateByID(id)
	if !ok {
		return nil
	}

	state.mu.RLock()
	alreadyLoaded := state.ann != nil
	state.mu.RUnlock()
	if alreadyLoaded {
		return nil
	}

	blob, err := db.loadSnapshotBlob(ctx, id)
	if err != nil {
		return fmt.Errorf("load snapshot for promotion: %w", err)
	}
	docs, _, err := snapshot.Decode(blob)
	if err != nil {
		return fmt.Errorf("decode snapshot for promotion: %w", err)
	}

	rebuilt, err := newCollectionState(state.descriptor, db.cfg.Index, db.cfg.FilterCache, state.walStream)
	if err != nil {
		return fmt.Errorf("rebuild collection state: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	state.ann = rebuilt.ann
	state.metaIdx = rebuilt.metaIdx
	state.ordinalOf = make(map[DocumentID]uint32, len(docs))
	state.docOf = make(map[uint32]DocumentID, len(docs))
	state.externalOf = make(map[uint32]string, len(docs))
	state.metadataOf = make(map[uint32]map[string]any, len(docs))
	state.insertedAtOf = make(map[uint32]time.Time, len(docs))
	state.nextOrdinal = 0

	for _, d := range docs {
		docID := DocumentID(d.DocID)
		ord := state.allocateOrdinal()
		state.ordinalOf[docID] = ord
		state.docOf[ord] = docID
		state.externalOf[ord] = d.ExternalID
		state.metadataOf[ord] = d.Metadata
		state.insertedAtOf[ord] = d.InsertedAt
		if err := state.ann.Insert(ord, d.DocID, d.Vector); err != nil {
			return fmt.Errorf("reinsert vector on promotion: %w", err)
		}
		state.metaIdx.IndexMetadata(ord, d.Metadata)
	}
	return nil
}

// loadSnapshotBlob prefers the local warm-tier file, since it avoids a
// network round trip, and falls back to the object store when the warm
// copy has been evicted (the collection was Cold, not merely Warm).
func (db *DB) loadSnapshotBlob(ctx context.Context, id CollectionID) ([]byte, error) {
	path := db.warmSnapshotPath(id)
	if blob, err := os.ReadFile(path); err == nil {
		return blob, nil
	}

	objects, err := db.objectStore.List(ctx, fmt.Sprintf("collections/%s/snapshots/", id.String()))
	if err != nil {
		return nil, fmt.Errorf("list cold snapshots: %w", err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no snapshot found for collection %s", id)
	}

	latest := objects[0]
	for _, o := range objects[1:] {
		if o.LastModified.After(latest.LastModified) {
			latest = o
		}
	}

	rc, err := db.objectStore.Get(ctx, latest.Key)
	if err != nil {
		return nil, fmt.Errorf("download cold snapshot %s: %w", latest.Key, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (db *DB) stateByID(id CollectionID) (*collectionState, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	st, ok := db.collections[id]
	return st, ok
}
