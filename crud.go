package vectorkeep

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vectorkeep/vectorkeep/internal/deadletter"
	"github.com/vectorkeep/vectorkeep/internal/wal"
)

// CreateCollection provisions a new collection with its own WAL stream, ANN
// index, and metadata postings, and durably records the creation as the
// first entry of that stream before returning.
func (db *DB) CreateCollection(desc CollectionDescriptor) (CollectionInfo, error) {
	if err := desc.Validate(); err != nil {
		return CollectionInfo{}, err
	}

	db.mu.Lock()
	if _, exists := db.byName[desc.Name]; exists {
		db.mu.Unlock()
		return CollectionInfo{}, wrapErr("create_collection", KindConflict, ErrCollectionExists)
	}
	db.mu.Unlock()

	desc.CollectionID = NewCollectionID()

	dir := db.walDir(desc.CollectionID)
	stream, err := wal.Open(dir, db.cfg.WAL.SegmentSizeBytes, db.logger)
	if err != nil {
		return CollectionInfo{}, wrapErr("create_collection", KindPermanentIO, err)
	}

	state, err := newCollectionState(desc, db.cfg.Index, db.cfg.FilterCache, stream)
	if err != nil {
		stream.Close()
		return CollectionInfo{}, wrapErr("create_collection", KindValidation, err)
	}

	if _, err := stream.Append(wal.Entry{
		Kind:         wal.KindCreateCollection,
		Timestamp:    time.Now(),
		CollectionID: [16]byte(desc.CollectionID),
		Name:         desc.Name,
		Dimension:    desc.Dimension,
		Metric:       uint8(desc.Metric),
	}); err != nil {
		stream.Close()
		return CollectionInfo{}, wrapErr("create_collection", KindPermanentIO, err)
	}

	db.mu.Lock()
	db.collections[desc.CollectionID] = state
	db.byName[desc.Name] = desc.CollectionID
	db.mu.Unlock()

	db.tieringCtl.Track([16]byte(desc.CollectionID))

	return CollectionInfo{
		CollectionID: desc.CollectionID,
		Name:         desc.Name,
		Dimension:    desc.Dimension,
		Metric:       desc.Metric,
		CreatedAt:    state.createdAt,
	}, nil
}

// DeleteCollection tombstones a collection: it records the deletion in the
// WAL, drops its in-memory state, and removes its on-disk WAL directory.
// Deleting an unknown collection is reported as KindNotFound, not treated
// as an idempotent no-op, since (unlike a single document) losing track of
// an entire collection is always a caller mistake worth surfacing.
func (db *DB) DeleteCollection(name string) error {
	db.mu.Lock()
	id, ok := db.byName[name]
	if !ok {
		db.mu.Unlock()
		return wrapErr("delete_collection", KindNotFound, ErrUnknownCollection)
	}
	state := db.collections[id]
	delete(db.byName, name)
	delete(db.collections, id)
	db.mu.Unlock()

	db.tieringCtl.Untrack([16]byte(id))

	state.mu.Lock()
	_, err := state.walStream.Append(wal.Entry{
		Kind:         wal.KindDeleteCollection,
		Timestamp:    time.Now(),
		CollectionID: [16]byte(id),
	})
	state.closed = true
	state.mu.Unlock()
	if err != nil {
		return wrapErr("delete_collection", KindPermanentIO, err)
	}

	if err := state.walStream.Close(); err != nil {
		return wrapErr("delete_collection", KindPermanentIO, err)
	}
	if err := os.RemoveAll(db.walDir(id)); err != nil {
		return wrapErr("delete_collection", KindPermanentIO, err)
	}
	_ = os.Remove(db.warmSnapshotPath(id))
	return nil
}

// ListCollections returns a summary of every live collection.
func (db *DB) ListCollections() []CollectionInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]CollectionInfo, 0, len(db.collections))
	for _, st := range db.collections {
		st.mu.RLock()
		out = append(out, CollectionInfo{
			CollectionID:  st.descriptor.CollectionID,
			Name:          st.descriptor.Name,
			Dimension:     st.descriptor.Dimension,
			Metric:        st.descriptor.Metric,
			DocumentCount: len(st.ordinalOf),
			CreatedAt:     st.createdAt,
		})
		st.mu.RUnlock()
	}
	return out
}

func (db *DB) collectionByName(name string) (*collectionState, error) {
	db.mu.RLock()
	id, ok := db.byName[name]
	state := db.collections[id]
	db.mu.RUnlock()

	if !ok {
		return nil, wrapErr("lookup_collection", KindNotFound, ErrUnknownCollection)
	}
	if !state.healthy() {
		return nil, wrapErr("lookup_collection", KindFatal, ErrQuarantined)
	}
	return state, nil
}

// Insert upserts doc into the named collection: if doc.DocID already exists
// it is replaced (old ordinal tombstoned in the ANN graph and dropped from
// the metadata postings) before the new vector is indexed. The WAL record
// is fsynced before Insert returns.
func (db *DB) Insert(collection string, doc VectorDocument) (WriteResult, error) {
	start := time.Now()

	state, err := db.collectionByName(collection)
	if err != nil {
		return WriteResult{}, err
	}
	if err := doc.Validate(state.descriptor.Dimension); err != nil {
		return WriteResult{}, wrapErr("insert", KindValidation, err)
	}
	if doc.DocID.IsZero() {
		doc.DocID = NewDocumentID()
	}
	if doc.InsertedAt.IsZero() {
		doc.InsertedAt = time.Now()
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if _, err := state.walStream.Append(wal.Entry{
		Kind:         wal.KindUpsert,
		Timestamp:    doc.InsertedAt,
		CollectionID: [16]byte(state.descriptor.CollectionID),
		DocID:        [16]byte(doc.DocID),
		ExternalID:   doc.ExternalID,
		Vector:       doc.Vector,
		Metadata:     doc.Metadata,
	}); err != nil {
		db.parkFailedWrite(state.descriptor.CollectionID, doc, "upsert", err)
		return WriteResult{}, wrapErr("insert", KindPermanentIO, err)
	}

	if oldOrd, exists := state.ordinalOf[doc.DocID]; exists {
		state.ann.Delete(oldOrd)
		state.metaIdx.Remove(oldOrd)
		delete(state.metadataOf, oldOrd)
		delete(state.insertedAtOf, oldOrd)
	}
	ord := state.allocateOrdinal()
	state.ordinalOf[doc.DocID] = ord
	state.docOf[ord] = doc.DocID
	state.externalOf[ord] = doc.ExternalID
	state.metadataOf[ord] = doc.Metadata
	state.insertedAtOf[ord] = doc.InsertedAt
	if err := state.ann.Insert(ord, [16]byte(doc.DocID), doc.Vector); err != nil {
		state.quarantined = true
		return WriteResult{}, wrapErr("insert", KindCorruption, err)
	}
	state.metaIdx.IndexMetadata(ord, doc.Metadata)
	state.epoch++

	return WriteResult{DocID: doc.DocID, LatencyMS: msSince(start)}, nil
}

// Delete soft-deletes a document. Deleting an absent document is a no-op,
// unlike DeleteCollection: a single document's absence is routine (a retry
// of an already-applied delete, a race with another deleter) rather than a
// caller mistake.
func (db *DB) Delete(collection string, docID DocumentID) error {
	state, err := db.collectionByName(collection)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	ord, exists := state.ordinalOf[docID]
	if !exists {
		return nil
	}

	if _, err := state.walStream.Append(wal.Entry{
		Kind:         wal.KindDelete,
		Timestamp:    time.Now(),
		CollectionID: [16]byte(state.descriptor.CollectionID),
		DocID:        [16]byte(docID),
	}); err != nil {
		return wrapErr("delete", KindPermanentIO, err)
	}

	state.ann.Delete(ord)
	state.metaIdx.Remove(ord)
	delete(state.ordinalOf, docID)
	delete(state.docOf, ord)
	delete(state.externalOf, ord)
	delete(state.metadataOf, ord)
	delete(state.insertedAtOf, ord)
	state.epoch++

	return nil
}

// Get returns the live vector and metadata for docID, or ErrNotFound.
func (db *DB) Get(collection string, docID DocumentID) (VectorDocument, error) {
	state, err := db.collectionByName(collection)
	if err != nil {
		return VectorDocument{}, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	ord, exists := state.ordinalOf[docID]
	if !exists {
		return VectorDocument{}, wrapErr("get", KindNotFound, ErrNotFound)
	}
	vec, ok := state.ann.Vector(ord)
	if !ok {
		return VectorDocument{}, wrapErr("get", KindNotFound, ErrNotFound)
	}
	return VectorDocument{
		DocID:      docID,
		ExternalID: state.externalOf[ord],
		Vector:     vec,
		Metadata:   state.metadataOf[ord],
		InsertedAt: state.insertedAtOf[ord],
	}, nil
}

// Count returns the live document count of a collection.
func (db *DB) Count(collection string) (int, error) {
	state, err := db.collectionByName(collection)
	if err != nil {
		return 0, err
	}
	return state.documentCount(), nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// parkFailedWrite records a write that the WAL rejected into the
// dead-letter queue so an operator can inspect and retry it rather than
// lose it silently. Marshal failures here are swallowed: losing the
// payload bytes of an already-failed write is strictly better than
// panicking inside a write path.
func (db *DB) parkFailedWrite(collID CollectionID, doc VectorDocument, op string, cause error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		payload = nil
	}
	db.deadLetter.Push(deadletter.Entry{
		CollectionID: [16]byte(collID),
		DocID:        [16]byte(doc.DocID),
		Operation:    op,
		Reason:       cause.Error(),
		Payload:      payload,
	})
}
