package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Replay reads every segment in dir in index order and returns the
// concatenated entry sequence. If a torn tail is found in the last segment
// (the highest index, which is the active one), replay stops there and
// corrupted is reported true; a torn
// tail in any earlier segment is a hard error, since it means a sealed
// segment was damaged after rotation rather than mid-write.
func Replay(dir string) (entries []Entry, corrupted bool, err error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("wal: read dir %s: %w", dir, err)
	}

	var indices []int
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		var idx int
		if _, scanErr := fmt.Sscanf(e.Name(), "%016d"+segmentSuffix, &idx); scanErr == nil {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	for i, idx := range indices {
		path := filepath.Join(dir, segmentName(idx))
		segEntries, segTorn, rerr := replaySegment(path)
		if rerr != nil {
			return nil, false, rerr
		}
		entries = append(entries, segEntries...)
		if segTorn {
			if i != len(indices)-1 {
				return nil, false, fmt.Errorf("wal: torn tail in sealed segment %s", path)
			}
			corrupted = true
		}
	}
	return entries, corrupted, nil
}

func replaySegment(path string) ([]Entry, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("wal: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	for {
		e, _, err := readRecord(f)
		if err == nil {
			entries = append(entries, e)
			continue
		}
		if err == ErrTornTail {
			return entries, true, nil
		}
		break // clean io.EOF
	}
	return entries, false, nil
}
