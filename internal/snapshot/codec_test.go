package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocs() []Document {
	return []Document{
		{DocID: [16]byte{1}, ExternalID: "a", Vector: []float32{1, 2, 3}, Metadata: map[string]any{"tag": "x"}, InsertedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{DocID: [16]byte{2}, ExternalID: "b", Vector: []float32{4, 5, 6}, Metadata: nil},
		{DocID: [16]byte{3}, ExternalID: "c", Vector: []float32{7, 8, 9}, Metadata: map[string]any{"n": 1.0}},
	}
}

func TestEncodeDecodeRoundtripZstd(t *testing.T) {
	docs := sampleDocs()
	blob, err := Encode(docs, 0, 3, CodecZstd)
	require.NoError(t, err)

	got, hdr, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), hdr.Count)
	assert.Equal(t, uint32(3), hdr.Dimension)
	assert.Equal(t, docs, got)
}

func TestEncodeDecodeRoundtripGzip(t *testing.T) {
	docs := sampleDocs()
	blob, err := Encode(docs, 1, 3, CodecGzip)
	require.NoError(t, err)

	got, hdr, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, CodecGzip, hdr.Codec)
	assert.Equal(t, docs, got)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	blob, err := Encode(sampleDocs(), 0, 3, CodecZstd)
	require.NoError(t, err)
	blob[0] = 'X'

	_, _, err = Decode(blob)
	assert.Error(t, err)
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	blob, err := Encode(sampleDocs(), 0, 3, CodecZstd)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF

	_, _, err = Decode(blob)
	assert.Error(t, err)
}

func TestEncodeEmptyDocs(t *testing.T) {
	blob, err := Encode(nil, 0, 3, CodecZstd)
	require.NoError(t, err)

	got, hdr, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), hdr.Count)
	assert.Empty(t, got)
}
