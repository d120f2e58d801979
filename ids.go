package vectorkeep

import (
	"fmt"

	"github.com/google/uuid"
)

// CollectionID, DocumentID and TenantID are 128-bit opaque identifiers with
// round-trippable text and byte forms. They are distinct Go types so a
// DocumentID can never be passed where a CollectionID is expected, even
// though both are backed by the same 16-byte layout.

// CollectionID identifies a collection for the lifetime of its existence.
// Ids are never recycled, even across a DeleteCollection followed by a
// CreateCollection reusing the same name.
type CollectionID [16]byte

// DocumentID identifies a VectorDocument within its owning collection.
type DocumentID [16]byte

// TenantID identifies the tenant whose object-store keys are prefixed by
// internal/objectstore's tenancy wrapper.
type TenantID [16]byte

// NewCollectionID generates a fresh random CollectionID.
func NewCollectionID() CollectionID { return CollectionID(uuid.New()) }

// NewDocumentID generates a fresh random DocumentID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// NewTenantID generates a fresh random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

func (id CollectionID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id TenantID) String() string     { return uuid.UUID(id).String() }

func (id CollectionID) Bytes() []byte { b := id; return b[:] }
func (id DocumentID) Bytes() []byte   { b := id; return b[:] }
func (id TenantID) Bytes() []byte     { b := id; return b[:] }

// IsZero reports whether id is the zero-value identifier (never assigned).
func (id CollectionID) IsZero() bool { return id == CollectionID{} }
func (id DocumentID) IsZero() bool   { return id == DocumentID{} }

// ParseCollectionID parses the text form produced by CollectionID.String.
func ParseCollectionID(s string) (CollectionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CollectionID{}, fmt.Errorf("parse collection id: %w", err)
	}
	return CollectionID(u), nil
}

// ParseDocumentID parses the text form produced by DocumentID.String.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DocumentID{}, fmt.Errorf("parse document id: %w", err)
	}
	return DocumentID(u), nil
}

// ParseTenantID parses the text form produced by TenantID.String.
func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, fmt.Errorf("parse tenant id: %w", err)
	}
	return TenantID(u), nil
}

// CollectionIDFromBytes reconstructs a CollectionID from its 16-byte form.
func CollectionIDFromBytes(b []byte) (CollectionID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return CollectionID{}, fmt.Errorf("collection id from bytes: %w", err)
	}
	return CollectionID(u), nil
}

// DocumentIDFromBytes reconstructs a DocumentID from its 16-byte form.
func DocumentIDFromBytes(b []byte) (DocumentID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return DocumentID{}, fmt.Errorf("document id from bytes: %w", err)
	}
	return DocumentID(u), nil
}

// LSN is a Log Sequence Number: a monotonic, never-reused identifier for a
// WAL entry within one stream. Exhausting the LSN space is a fatal error.
type LSN uint64

// MaxLSN is the top of the 64-bit LSN space. The WAL never assigns it: the
// highest LSN handed out is MaxLSN-1, and an append that would need MaxLSN
// fails with the WAL's overflow error.
const MaxLSN = LSN(1<<64 - 1)
