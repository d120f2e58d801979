package vectorkeep

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/vectorkeep/vectorkeep/internal/deadletter"
	"github.com/vectorkeep/vectorkeep/internal/logging"
	"github.com/vectorkeep/vectorkeep/internal/objectstore"
	"github.com/vectorkeep/vectorkeep/internal/querycache"
	"github.com/vectorkeep/vectorkeep/internal/tiering"
)

// DB is the embeddable vector database: the public entry point analogous
// to the teacher's SQLiteStore, composing the ANN index, WAL, tiering
// controller, object store, and caches behind collection CRUD and query
// operations.
type DB struct {
	cfg    Config
	logger logging.Logger

	objectStore objectstore.Store
	queryCache  *querycache.Cache
	deadLetter  *deadletter.Queue
	tieringCtl  *tiering.Controller

	mu          sync.RWMutex
	collections map[CollectionID]*collectionState
	byName      map[string]CollectionID

	closed    bool
	closeOnce sync.Once

	tieringCancel context.CancelFunc
}

// Open starts a DB from cfg, resuming every collection found under
// cfg.WAL.Directory by replaying its WAL from the beginning; warm snapshots
// are not read at startup.
func Open(cfg Config) (*DB, error) {
	return OpenWithLogger(cfg, logging.NewZapLogger(zapcore.InfoLevel))
}

// OpenWithLogger is Open with an explicit logger, used by tests and by
// callers that want vectorkeep's logs folded into their own sink.
func OpenWithLogger(cfg Config, logger logging.Logger) (*DB, error) {
	store, err := buildObjectStore(cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("vectorkeep: open object store: %w", err)
	}
	return OpenWithObjectStore(cfg, store, logger)
}

// OpenWithObjectStore is Open with a caller-constructed object store, the
// entry point for the S3 backend since an s3.Client needs AWS credential
// resolution the Config struct doesn't carry.
func OpenWithObjectStore(cfg Config, store objectstore.Store, logger logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	dlq := deadletter.New(cfg.DeadLetter.Capacity, cfg.DeadLetter.TTL, cfg.DeadLetter.Path)
	if err := dlq.Load(); err != nil {
		return nil, fmt.Errorf("vectorkeep: load dead-letter queue: %w", err)
	}

	db := &DB{
		cfg:         cfg,
		logger:      logger,
		objectStore: store,
		queryCache:  querycache.New(cfg.QueryCache.Capacity, cfg.QueryCache.TTL),
		deadLetter:  dlq,
		collections: make(map[CollectionID]*collectionState),
		byName:      make(map[string]CollectionID),
	}

	db.tieringCtl = tiering.NewController(tiering.Policy{
		HotTTL:       cfg.Tiering.HotTTL,
		WarmTTL:      cfg.Tiering.WarmTTL,
		HotThreshold: int64(cfg.Tiering.HotThreshold),
	}, db, logger)

	if err := db.recoverAll(); err != nil {
		return nil, fmt.Errorf("vectorkeep: recover collections: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	db.tieringCancel = cancel
	db.tieringCtl.Start(ctx, cfg.Tiering.WorkerInterval)
	go db.checkpointLoop(ctx)

	return db, nil
}

func buildObjectStore(cfg ObjectStoreConfig) (objectstore.Store, error) {
	switch cfg.Backend {
	case BackendLocalFS:
		return objectstore.NewLocalFS(cfg.LocalRoot), nil
	case BackendMemory:
		return objectstore.NewMemory(time.Now().UnixNano()), nil
	case BackendS3:
		return nil, fmt.Errorf("vectorkeep: S3 backend requires a pre-built client; use OpenWithObjectStore")
	default:
		return nil, fmt.Errorf("vectorkeep: unknown object store backend %d", cfg.Backend)
	}
}

// Close stops background work, persists the dead-letter queue, and closes
// every collection's WAL stream. Safe to call more than once.
func (db *DB) Close() error {
	var err error
	db.closeOnce.Do(func() {
		db.mu.Lock()
		db.closed = true
		states := make([]*collectionState, 0, len(db.collections))
		for _, st := range db.collections {
			states = append(states, st)
		}
		db.mu.Unlock()

		if db.tieringCancel != nil {
			db.tieringCancel()
		}
		db.tieringCtl.Stop()

		for _, st := range states {
			if walErr := st.walStream.Close(); walErr != nil {
				err = walErr
			}
		}
		if dlqErr := db.deadLetter.Persist(); dlqErr != nil {
			err = dlqErr
		}
	})
	return err
}

// IsReady reports whether db has finished recovery and is accepting
// requests: true from the moment Open returns successfully until Close is
// called. It exists as a distinct check from IsHealthy for callers wiring readiness
// probes ahead of a future network front end.
func (db *DB) IsReady() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return !db.closed
}

// IsHealthy reports whether every tracked collection is free of a
// quarantine flag. A single corrupted collection degrades this to false
// without making the rest of the database unusable.
func (db *DB) IsHealthy() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, st := range db.collections {
		if !st.healthy() {
			return false
		}
	}
	return true
}

func (db *DB) walDir(id CollectionID) string {
	return filepath.Join(db.cfg.WAL.Directory, id.String())
}

func (db *DB) warmSnapshotPath(id CollectionID) string {
	return filepath.Join(db.cfg.Snapshot.Directory, id.String()+".snap")
}

func (db *DB) coldSnapshotKey(id CollectionID, snapshotID string) string {
	return fmt.Sprintf("collections/%s/snapshots/%s.snap", id.String(), snapshotID)
}
