package vectorkeep

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error the way the engine reacts to it: whether it
// is reported to the caller untouched, retried, or escalated into
// quarantine.
type ErrorKind int

const (
	// KindValidation covers bad dimension, non-finite components, empty
	// input, unknown collection, invalid filter JSON. No state changes.
	KindValidation ErrorKind = iota
	// KindNotFound covers a missing collection or document. Deletes of an
	// absent id are not reported this way; they are idempotent no-ops.
	KindNotFound
	// KindConflict covers a duplicate collection name or an LSN collision.
	KindConflict
	// KindTransientIO covers object-store 5xx/timeouts; callers retry with
	// backoff.
	KindTransientIO
	// KindPermanentIO covers object-store 4xx and local ENOSPC.
	KindPermanentIO
	// KindCorruption covers WAL CRC mismatches beyond a truncatable tail,
	// snapshot checksum mismatches, and graph invariant violations. The
	// owning collection is quarantined.
	KindCorruption
	// KindFatal covers LSN overflow, lock poisoning, and allocation
	// failure. The process should terminate or degrade readiness.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransientIO:
		return "transient_io"
	case KindPermanentIO:
		return "permanent_io"
	case KindCorruption:
		return "corruption"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors, the way the teacher's errors.go defines ErrNotFound,
// ErrInvalidVector, etc. Use errors.Is against these, not string matching.
var (
	ErrNotFound          = errors.New("vectorkeep: not found")
	ErrCollectionExists  = errors.New("vectorkeep: collection already exists")
	ErrUnknownCollection = errors.New("vectorkeep: unknown collection")
	ErrInvalidVector     = errors.New("vectorkeep: invalid vector")
	ErrDimensionMismatch = errors.New("vectorkeep: dimension mismatch")
	ErrClosed            = errors.New("vectorkeep: store is closed")
	ErrLSNOverflow       = errors.New("vectorkeep: LSN space exhausted")
	ErrQuarantined       = errors.New("vectorkeep: collection quarantined")
	ErrInvalidFilter     = errors.New("vectorkeep: invalid filter")
)

// Error wraps an underlying error with an operation name and a kind,
// mirroring the teacher's StoreError{Op, Err} but adding a kind taxonomy.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectorkeep: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("vectorkeep: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

// wrapErr builds an *Error, the same call shape as the teacher's wrapError.
func wrapErr(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// IsKind reports whether err (or any error it wraps) is a *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
