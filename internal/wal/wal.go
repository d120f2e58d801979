package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vectorkeep/vectorkeep/internal/logging"
)

// ErrTornTail marks a record that failed its CRC or was cut short by a
// crash; Replay truncates at the first one and reports it.
var ErrTornTail = errors.New("wal: torn or corrupt tail record")

// ErrLSNOverflow is returned by Append/AppendBatch when an entry would need
// LSN 2^64-1 (maxLSN), which is never assigned. It is fatal and never
// recovered from.
var ErrLSNOverflow = errors.New("wal: LSN space exhausted")

const maxLSN = ^uint64(0)

// segmentSuffix implements the "{segment_index:016}.wal" naming scheme.
const segmentSuffix = ".wal"

func segmentName(index int) string {
	return fmt.Sprintf("%016d%s", index, segmentSuffix)
}

// segmentMeta tracks what Stream knows about one sealed or active segment.
type segmentMeta struct {
	index   int
	path    string
	minLSN  uint64
	maxLSN  uint64
	hasData bool
}

// Stream is one append-only WAL stream, one per collection. All
// append/rotate state is protected by a single mutex: assigning the next
// LSN and writing it durably must never interleave across goroutines.
type Stream struct {
	mu sync.Mutex

	dir              string
	segmentSizeBytes int64
	logger           logging.Logger

	segments     []segmentMeta
	activeFile   *os.File
	activeSize   int64
	nextLSN      uint64
	checkpointAt uint64 // durable snapshot boundary (UpToLSN of last Checkpoint entry)
}

// Open opens (or creates) the stream directory and resumes from whatever
// segments already exist, establishing nextLSN from the highest LSN found
// on disk and the checkpoint boundary from the Checkpoint entries found.
func Open(dir string, segmentSizeBytes int64, logger logging.Logger) (*Stream, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir %s: %w", dir, err)
	}

	s := &Stream{dir: dir, segmentSizeBytes: segmentSizeBytes, logger: logger, nextLSN: 1}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("wal: read dir %s: %w", dir, err)
	}
	var indices []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var idx int
		if _, scanErr := fmt.Sscanf(e.Name(), "%016d"+segmentSuffix, &idx); scanErr == nil {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	for _, idx := range indices {
		path := filepath.Join(dir, segmentName(idx))
		min, max, ckpt, has, err := scanSegmentBounds(path)
		if err != nil {
			return nil, err
		}
		s.segments = append(s.segments, segmentMeta{index: idx, path: path, minLSN: min, maxLSN: max, hasData: has})
		if has && max+1 > s.nextLSN {
			s.nextLSN = max + 1
		}
		if ckpt > s.checkpointAt {
			s.checkpointAt = ckpt
		}
	}

	nextIndex := 0
	if len(s.segments) > 0 {
		nextIndex = s.segments[len(s.segments)-1].index
	}
	if err := s.openActive(nextIndex); err != nil {
		return nil, err
	}
	return s, nil
}

func scanSegmentBounds(path string) (min, max, checkpoint uint64, hasData bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("wal: open %s: %w", path, err)
	}
	defer f.Close()

	for {
		e, _, rerr := readRecord(f)
		if rerr == nil {
			if e.Kind == KindCheckpoint && e.UpToLSN > checkpoint {
				checkpoint = e.UpToLSN
			}
			if !hasData || e.LSN < min {
				min = e.LSN
			}
			if e.LSN > max {
				max = e.LSN
			}
			hasData = true
			continue
		}
		break // clean EOF or torn tail: bounds scanning stops either way
	}
	return min, max, checkpoint, hasData, nil
}

func (s *Stream) openActive(index int) error {
	path := filepath.Join(s.dir, segmentName(index))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: open active segment %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("wal: stat active segment %s: %w", path, err)
	}
	s.activeFile = f
	s.activeSize = info.Size()

	if len(s.segments) == 0 || s.segments[len(s.segments)-1].index != index {
		s.segments = append(s.segments, segmentMeta{index: index, path: path})
	}
	return nil
}

// Append assigns the next LSN to entry, writes it durably (fsync before
// return), and rotates the active segment if it has grown past the
// configured threshold. Entry.LSN is overwritten with the assigned value.
func (s *Stream) Append(entry Entry) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry)
}

func (s *Stream) appendLocked(entry Entry) (uint64, error) {
	if s.nextLSN == maxLSN {
		return 0, ErrLSNOverflow
	}
	entry.LSN = s.nextLSN

	rec, err := encodeRecord(entry)
	if err != nil {
		return 0, err
	}
	if _, err := s.activeFile.Write(rec); err != nil {
		return 0, fmt.Errorf("wal: write record: %w", err)
	}
	if err := s.activeFile.Sync(); err != nil {
		return 0, fmt.Errorf("wal: fsync: %w", err)
	}
	s.activeSize += int64(len(rec))
	s.updateActiveBounds(entry.LSN)
	s.nextLSN++

	if s.activeSize >= s.segmentSizeBytes {
		if err := s.rotateLocked(); err != nil {
			return entry.LSN, err
		}
	}
	return entry.LSN, nil
}

func (s *Stream) updateActiveBounds(lsn uint64) {
	last := &s.segments[len(s.segments)-1]
	if !last.hasData || lsn < last.minLSN {
		last.minLSN = lsn
	}
	if lsn > last.maxLSN {
		last.maxLSN = lsn
	}
	last.hasData = true
}

// AppendBatch writes entries atomically: either all are durable with
// consecutive LSNs, or none are. It builds the whole batch's wire bytes
// before issuing a single write + fsync, so a mid-batch encode failure
// never touches the file.
func (s *Stream) AppendBatch(entries []Entry) ([]uint64, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(len(entries)) > maxLSN-s.nextLSN {
		return nil, ErrLSNOverflow
	}

	lsns := make([]uint64, len(entries))
	var buf []byte
	for i, e := range entries {
		e.LSN = s.nextLSN + uint64(i)
		rec, err := encodeRecord(e)
		if err != nil {
			return nil, fmt.Errorf("wal: encode batch entry %d: %w", i, err)
		}
		buf = append(buf, rec...)
		lsns[i] = e.LSN
	}

	if _, err := s.activeFile.Write(buf); err != nil {
		return nil, fmt.Errorf("wal: write batch: %w", err)
	}
	if err := s.activeFile.Sync(); err != nil {
		return nil, fmt.Errorf("wal: fsync batch: %w", err)
	}
	s.activeSize += int64(len(buf))
	for _, lsn := range lsns {
		s.updateActiveBounds(lsn)
	}
	s.nextLSN += uint64(len(entries))

	if s.activeSize >= s.segmentSizeBytes {
		if err := s.rotateLocked(); err != nil {
			return lsns, err
		}
	}
	return lsns, nil
}

// Checkpoint appends a Checkpoint entry recording upToLSN as the durable
// snapshot boundary. Idempotent: checkpointing the same upToLSN twice is
// harmless, it just appends another marker entry.
func (s *Stream) Checkpoint(upToLSN uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.appendLocked(Entry{Kind: KindCheckpoint, UpToLSN: upToLSN}); err != nil {
		return err
	}
	s.checkpointAt = upToLSN
	return nil
}

// rotateLocked seals the active segment and opens the next one. Must be
// called with mu held.
func (s *Stream) rotateLocked() error {
	if err := s.activeFile.Close(); err != nil {
		return fmt.Errorf("wal: close sealed segment: %w", err)
	}
	nextIndex := s.segments[len(s.segments)-1].index + 1
	return s.openActive(nextIndex)
}

// CompactSegments deletes sealed segments whose highest LSN is at or below
// the checkpoint boundary. The active (still-open) segment is never removed.
func (s *Stream) CompactSegments() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.segments[:0]
	for i, seg := range s.segments {
		isActive := i == len(s.segments)-1
		if !isActive && seg.hasData && seg.maxLSN <= s.checkpointAt {
			if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("wal: remove segment %s: %w", seg.path, err)
			}
			removed++
			continue
		}
		kept = append(kept, seg)
	}
	s.segments = kept
	return removed, nil
}

// NextLSN reports the LSN the next Append call will assign.
func (s *Stream) NextLSN() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLSN
}

// CheckpointLSN reports the last durable checkpoint boundary.
func (s *Stream) CheckpointLSN() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpointAt
}

// Close closes the active segment file.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeFile == nil {
		return nil
	}
	return s.activeFile.Close()
}
