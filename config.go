package vectorkeep

import "time"

// Config is the process-wide option set. It is a plain struct with a
// DefaultConfig constructor rather than a config-loading library: see
// DESIGN.md for why no third-party config library is wired in here.
type Config struct {
	// WAL local directory and rotation/checkpoint policy.
	WAL WALConfig

	// Snapshot local (warm tier) directory and compression.
	Snapshot SnapshotConfig

	// ObjectStore backend selection for the cold tier.
	ObjectStore ObjectStoreConfig

	// Tiering policy knobs.
	Tiering TieringConfig

	// QueryCache sizing.
	QueryCache CacheConfig

	// FilterCache sizing (the filter-AST cache).
	FilterCache CacheConfig

	// Index defaults for newly created collections.
	Index IndexConfig

	// DeadLetter queue sizing.
	DeadLetter DeadLetterConfig

	// MaxUploadConcurrency defaults to 10. No code path reads it; object-store
	// uploads are not bounded by it.
	MaxUploadConcurrency int
}

// WALConfig controls the write-ahead log.
type WALConfig struct {
	Directory string
	// SegmentSizeBytes is the rotation trigger.
	SegmentSizeBytes int64
	// CheckpointEvery is the interval of the background checkpoint loop.
	// CheckpointEveryBytes (default 64MB) is carried here but no code path
	// reads it: checkpoints are triggered by time only.
	CheckpointEveryBytes int64
	CheckpointEvery      time.Duration
}

// SnapshotConfig controls the snapshot codec and the warm tier's local
// snapshot directory.
type SnapshotConfig struct {
	Directory string
	Codec     CompressionCodec
	Level     int
}

// CompressionCodec selects the snapshot payload compressor.
type CompressionCodec uint8

const (
	CodecZstd CompressionCodec = iota
	CodecGzip
)

// ObjectStoreConfig selects and configures the cold-tier backend.
type ObjectStoreConfig struct {
	Backend ObjectStoreBackend

	// Local filesystem backend.
	LocalRoot string

	// S3-compatible backend.
	S3Endpoint string
	S3Bucket   string
	S3Region   string
}

// ObjectStoreBackend names a concrete internal/objectstore implementation.
type ObjectStoreBackend uint8

const (
	BackendMemory ObjectStoreBackend = iota
	BackendLocalFS
	BackendS3
)

// TieringConfig controls the hot/warm/cold promotion and demotion policy.
type TieringConfig struct {
	HotTTL         time.Duration
	WarmTTL        time.Duration
	HotThreshold   int
	WorkerInterval time.Duration
}

// CacheConfig controls an LRU+TTL cache (query cache or filter-AST cache).
type CacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// IndexConfig controls ANN defaults.
type IndexConfig struct {
	M                int
	EfConstruction   int
	DefaultEfSearch  int
	TombstoneRebuildRatio float64
}

// DefaultConfig returns a configuration with defaults suitable for a
// single-node deployment, the same role the teacher's DefaultConfig plays
// for SQLiteStore.
func DefaultConfig() Config {
	return Config{
		WAL: WALConfig{
			Directory:            "./data/wal",
			SegmentSizeBytes:     64 << 20, // 64MB
			CheckpointEveryBytes: 64 << 20,
			CheckpointEvery:      10 * time.Minute,
		},
		Snapshot: SnapshotConfig{
			Directory: "./data/warm",
			Codec:     CodecZstd,
			Level:     3,
		},
		ObjectStore: ObjectStoreConfig{
			Backend: BackendMemory,
		},
		Tiering: TieringConfig{
			HotTTL:         6 * time.Hour,
			WarmTTL:        7 * 24 * time.Hour,
			HotThreshold:   10,
			WorkerInterval: 5 * time.Minute,
		},
		QueryCache: CacheConfig{
			Capacity: 10_000,
			TTL:      5 * time.Minute,
		},
		FilterCache: CacheConfig{
			Capacity: 10_000,
			TTL:      5 * time.Minute,
		},
		Index: IndexConfig{
			M:                     16,
			EfConstruction:        200,
			DefaultEfSearch:       200,
			TombstoneRebuildRatio: 0.2,
		},
		DeadLetter: DeadLetterConfig{
			Capacity: 1000,
			TTL:      24 * time.Hour,
			Path:     "./data/deadletter.json",
		},
		MaxUploadConcurrency: 10,
	}
}

// DeadLetterConfig controls the bounded dead-letter queue.
type DeadLetterConfig struct {
	Capacity int
	TTL      time.Duration
	Path     string
}
