package annindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// serialVersion is bumped whenever the gob-encoded node shape changes.
const serialVersion = 1

// gobNode is the wire form of node: exported fields so gob can see them,
// matching the teacher's pattern of encoding the concrete struct directly
// (pkg/index/hnsw.go Save/Load).
type gobNode struct {
	Ordinal   uint32
	DocID     [16]byte
	Vector    []float32
	Level     int
	Neighbors [][]uint32
	Tombstone bool
}

// Serialize writes a self-describing blob: deserializing it must behave
// identically to the original index for every subsequent op.
func (ix *Index) Serialize(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	enc := gob.NewEncoder(w)
	if err := enc.Encode(serialVersion); err != nil {
		return fmt.Errorf("annindex: encode version: %w", err)
	}
	if err := enc.Encode(ix.params); err != nil {
		return fmt.Errorf("annindex: encode params: %w", err)
	}
	if err := enc.Encode(ix.hasEntry); err != nil {
		return err
	}
	if err := enc.Encode(ix.entry); err != nil {
		return err
	}

	nodes := make([]gobNode, 0, len(ix.arena))
	for _, n := range ix.arena {
		if n == nil {
			continue
		}
		nodes = append(nodes, gobNode{
			Ordinal:   n.ordinal,
			DocID:     n.docID,
			Vector:    n.vector,
			Level:     n.level,
			Neighbors: n.neighbors,
			Tombstone: n.tombstone,
		})
	}
	if err := enc.Encode(len(nodes)); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := enc.Encode(n); err != nil {
			return fmt.Errorf("annindex: encode node: %w", err)
		}
	}
	return nil
}

// Deserialize replaces ix's state with a previously Serialize'd blob. The
// kernel must already match what the blob was built with; callers
// reconstruct the Index with New(kernel, ...) before calling Deserialize,
// the same way the teacher's HNSW.Load expects a pre-built receiver.
func (ix *Index) Deserialize(r io.Reader) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	dec := gob.NewDecoder(r)
	var version int
	if err := dec.Decode(&version); err != nil {
		return fmt.Errorf("annindex: decode version: %w", err)
	}
	if version != serialVersion {
		return fmt.Errorf("annindex: unsupported serial version %d", version)
	}
	if err := dec.Decode(&ix.params); err != nil {
		return fmt.Errorf("annindex: decode params: %w", err)
	}
	if err := dec.Decode(&ix.hasEntry); err != nil {
		return err
	}
	if err := dec.Decode(&ix.entry); err != nil {
		return err
	}

	var count int
	if err := dec.Decode(&count); err != nil {
		return err
	}

	ix.arena = nil
	ix.liveCount = 0
	ix.tombstoned = 0
	for i := 0; i < count; i++ {
		var gn gobNode
		if err := dec.Decode(&gn); err != nil {
			return fmt.Errorf("annindex: decode node %d: %w", i, err)
		}
		ix.growTo(gn.Ordinal)
		n := &node{
			ordinal:   gn.Ordinal,
			docID:     gn.DocID,
			vector:    gn.Vector,
			level:     gn.Level,
			neighbors: gn.Neighbors,
			tombstone: gn.Tombstone,
		}
		ix.arena[gn.Ordinal] = n
		if n.tombstone {
			ix.tombstoned++
		} else {
			ix.liveCount++
		}
	}
	return nil
}

// Bytes returns the Serialize output as a byte slice.
func (ix *Index) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := ix.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromBytes deserializes into ix from a Bytes()-produced blob.
func (ix *Index) FromBytes(b []byte) error {
	return ix.Deserialize(bytes.NewReader(b))
}
