package vectorkeep

import (
	"fmt"
	"os"

	"github.com/vectorkeep/vectorkeep/internal/wal"
)

// recoverAll rebuilds every collection found under cfg.WAL.Directory by
// replaying its WAL stream from the beginning. There is no snapshot-plus-
// tail fast path yet: a cold start always pays for a full replay, which is
// the same cost the teacher's store.go pays re-reading its SQLite file on
// open, just paid per-entry instead of per-page.
func (db *DB) recoverAll() error {
	root := db.cfg.WAL.Directory
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("vectorkeep: list wal directory %s: %w", root, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		collID, parseErr := ParseCollectionID(e.Name())
		if parseErr != nil {
			db.logger.Warn("skipping non-collection wal directory", "name", e.Name())
			continue
		}
		if err := db.recoverCollection(collID); err != nil {
			return fmt.Errorf("vectorkeep: recover collection %s: %w", collID, err)
		}
	}
	return nil
}

// recoverCollection replays one collection's WAL directory and reinstalls
// its in-memory state. A KindCreateCollection entry must come first in any
// non-empty log; everything after it is replayed against the resulting
// collectionState in LSN order.
func (db *DB) recoverCollection(id CollectionID) error {
	dir := db.walDir(id)
	records, corrupted, err := wal.Replay(dir)
	if err != nil {
		return err
	}
	if corrupted {
		db.logger.Warn("wal torn tail truncated during recovery", "collection_id", id.String())
	}
	if len(records) == 0 {
		return nil
	}

	var desc CollectionDescriptor
	var foundDescriptor bool
	var deleted bool
	var applied []wal.Entry

	for _, rec := range records {
		switch rec.Kind {
		case wal.KindCreateCollection:
			desc = CollectionDescriptor{
				CollectionID: id,
				Name:         rec.Name,
				Dimension:    rec.Dimension,
				Metric:       Metric(rec.Metric),
			}
			foundDescriptor = true
			deleted = false
			applied = nil
		case wal.KindDeleteCollection:
			deleted = true
			applied = nil
		default:
			applied = append(applied, rec)
		}
	}
	if deleted || !foundDescriptor {
		return nil
	}

	stream, err := wal.Open(dir, db.cfg.WAL.SegmentSizeBytes, db.logger)
	if err != nil {
		return fmt.Errorf("reopen wal stream: %w", err)
	}

	state, err := newCollectionState(desc, db.cfg.Index, db.cfg.FilterCache, stream)
	if err != nil {
		stream.Close()
		return fmt.Errorf("rebuild collection state: %w", err)
	}

	for _, rec := range applied {
		if err := db.applyEntry(state, rec); err != nil {
			stream.Close()
			return fmt.Errorf("apply wal entry lsn=%d: %w", rec.LSN, err)
		}
	}

	db.mu.Lock()
	db.collections[id] = state
	db.byName[desc.Name] = id
	db.mu.Unlock()
	db.tieringCtl.Track([16]byte(id))

	return nil
}

// applyEntry replays a single already-committed WAL entry against an
// in-memory collectionState. It never writes to the WAL again: the record
// being replayed is itself the durable copy.
func (db *DB) applyEntry(state *collectionState, rec wal.Entry) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	switch rec.Kind {
	case wal.KindUpsert:
		docID := DocumentID(rec.DocID)
		if ord, exists := state.ordinalOf[docID]; exists {
			state.ann.Delete(ord)
			state.metaIdx.Remove(ord)
			delete(state.metadataOf, ord)
			delete(state.insertedAtOf, ord)
		}
		ord := state.allocateOrdinal()
		state.ordinalOf[docID] = ord
		state.docOf[ord] = docID
		state.externalOf[ord] = rec.ExternalID
		state.metadataOf[ord] = rec.Metadata
		state.insertedAtOf[ord] = rec.Timestamp
		if err := state.ann.Insert(ord, docID, rec.Vector); err != nil {
			return err
		}
		state.metaIdx.IndexMetadata(ord, rec.Metadata)
		state.epoch++
	case wal.KindDelete:
		docID := DocumentID(rec.DocID)
		ord, exists := state.ordinalOf[docID]
		if !exists {
			return nil
		}
		state.ann.Delete(ord)
		state.metaIdx.Remove(ord)
		delete(state.ordinalOf, docID)
		delete(state.docOf, ord)
		delete(state.externalOf, ord)
		delete(state.metadataOf, ord)
		delete(state.insertedAtOf, ord)
		state.epoch++
	}
	return nil
}
