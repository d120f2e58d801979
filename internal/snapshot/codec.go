// Package snapshot implements the columnar snapshot format used to persist
// a collection's live vectors to the warm tier: a fixed header followed by
// a compressed, gob-encoded columnar body, checksummed end to end.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// magic identifies a vectorkeep snapshot blob.
var magic = [4]byte{'A', 'K', 'S', 'N'}

const formatVersion = 1

// Codec selects the payload compressor.
type Codec uint8

const (
	CodecZstd Codec = iota
	CodecGzip
)

// Header is the fixed-size prefix of a snapshot blob.
type Header struct {
	Version   uint8
	Codec     Codec
	Metric    uint8
	Dimension uint32
	Count     uint64
	// PayloadCRC32 is the checksum of the compressed payload bytes, not the
	// decompressed columnar body; a truncated or bit-flipped download is
	// caught before decompression is even attempted.
	PayloadCRC32 uint32
}

const headerSize = 4 + 1 + 1 + 1 + 4 + 8 + 4 // magic + version + codec + metric + dim + count + crc

// Document is the columnar unit snapshot encodes; it mirrors
// vectorkeep.VectorDocument without importing the root package, so
// internal/snapshot has no dependency cycle back to it.
type Document struct {
	DocID      [16]byte
	ExternalID string
	Vector     []float32
	Metadata   map[string]any
	InsertedAt time.Time
}

// columnarBody is what gets gob-encoded and compressed. Column-major layout
// (all doc ids, then all external ids, then all vectors, then all metadata)
// groups like-typed, like-sized data together for the compressor.
type columnarBody struct {
	DocIDs      [][16]byte
	ExternalIDs []string
	Vectors     [][]float32
	Metadatas   []map[string]any
	InsertedAts []time.Time
}

// Encode serializes docs into a self-describing snapshot blob.
func Encode(docs []Document, metric uint8, dimension int, codec Codec) ([]byte, error) {
	body := columnarBody{
		DocIDs:      make([][16]byte, len(docs)),
		ExternalIDs: make([]string, len(docs)),
		Vectors:     make([][]float32, len(docs)),
		Metadatas:   make([]map[string]any, len(docs)),
		InsertedAts: make([]time.Time, len(docs)),
	}
	for i, d := range docs {
		body.DocIDs[i] = d.DocID
		body.ExternalIDs[i] = d.ExternalID
		body.Vectors[i] = d.Vector
		body.Metadatas[i] = d.Metadata
		body.InsertedAts[i] = d.InsertedAt
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(body); err != nil {
		return nil, fmt.Errorf("snapshot: encode columnar body: %w", err)
	}

	payload, err := compress(raw.Bytes(), codec)
	if err != nil {
		return nil, err
	}

	hdr := Header{
		Version:      formatVersion,
		Codec:        codec,
		Metric:       metric,
		Dimension:    uint32(dimension),
		Count:        uint64(len(docs)),
		PayloadCRC32: crc32.ChecksumIEEE(payload),
	}

	out := make([]byte, 0, headerSize+len(payload))
	out = append(out, magic[:]...)
	out = append(out, hdr.Version, byte(hdr.Codec), hdr.Metric)
	out = binary.LittleEndian.AppendUint32(out, hdr.Dimension)
	out = binary.LittleEndian.AppendUint64(out, hdr.Count)
	out = binary.LittleEndian.AppendUint32(out, hdr.PayloadCRC32)
	out = append(out, payload...)
	return out, nil
}

// Decode parses a snapshot blob produced by Encode, validating magic,
// version, and payload checksum before attempting decompression.
func Decode(blob []byte) ([]Document, Header, error) {
	if len(blob) < headerSize {
		return nil, Header{}, fmt.Errorf("snapshot: blob too short (%d bytes)", len(blob))
	}
	if !bytes.Equal(blob[0:4], magic[:]) {
		return nil, Header{}, fmt.Errorf("snapshot: bad magic %q", blob[0:4])
	}

	var hdr Header
	hdr.Version = blob[4]
	hdr.Codec = Codec(blob[5])
	hdr.Metric = blob[6]
	hdr.Dimension = binary.LittleEndian.Uint32(blob[7:11])
	hdr.Count = binary.LittleEndian.Uint64(blob[11:19])
	hdr.PayloadCRC32 = binary.LittleEndian.Uint32(blob[19:23])

	if hdr.Version != formatVersion {
		return nil, hdr, fmt.Errorf("snapshot: unsupported version %d", hdr.Version)
	}

	payload := blob[23:]
	if crc32.ChecksumIEEE(payload) != hdr.PayloadCRC32 {
		return nil, hdr, fmt.Errorf("snapshot: payload checksum mismatch")
	}

	raw, err := decompress(payload, hdr.Codec)
	if err != nil {
		return nil, hdr, err
	}

	var body columnarBody
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&body); err != nil {
		return nil, hdr, fmt.Errorf("snapshot: decode columnar body: %w", err)
	}
	if uint64(len(body.DocIDs)) != hdr.Count {
		return nil, hdr, fmt.Errorf("snapshot: header count %d does not match body length %d", hdr.Count, len(body.DocIDs))
	}

	docs := make([]Document, hdr.Count)
	for i := range docs {
		md := body.Metadatas[i]
		if len(md) == 0 {
			md = nil // gob decodes a nil map inside a slice as an empty map
		}
		docs[i] = Document{
			DocID:      body.DocIDs[i],
			ExternalID: body.ExternalIDs[i],
			Vector:     body.Vectors[i],
			Metadata:   md,
			InsertedAt: body.InsertedAts[i],
		}
	}
	return docs, hdr, nil
}

func compress(raw []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("snapshot: new zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil

	case CodecGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return nil, fmt.Errorf("snapshot: gzip write: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("snapshot: gzip close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("snapshot: unknown codec %d", codec)
	}
}

func decompress(payload []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot: new zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd decode: %w", err)
		}
		return out, nil

	case CodecGzip:
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("snapshot: gzip reader: %w", err)
		}
		defer gr.Close()
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: gzip read: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("snapshot: unknown codec %d", codec)
	}
}
