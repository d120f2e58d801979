package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// FaultMode selects how an injected fault behaves.
type FaultMode int

const (
	// FaultTransient always fails with a retryable-looking error.
	FaultTransient FaultMode = iota
	// FaultPermanent always fails with a non-retryable error.
	FaultPermanent
	// FaultRandom fails a fraction of calls (Fault.Probability), chosen by
	// the store's own rand.Rand so injection is deterministic under a
	// fixed seed.
	FaultRandom
	// FaultLatency never fails but sleeps Fault.Latency before proceeding.
	FaultLatency
)

// ErrInjectedTransient and ErrInjectedPermanent are returned by the memory
// backend when a fault table entry fires.
var (
	ErrInjectedTransient = errors.New("objectstore: injected transient failure")
	ErrInjectedPermanent = errors.New("objectstore: injected permanent failure")
)

// Fault configures fault injection for one method name ("Put", "Get", ...)
// on the memory backend. An empty Method matches every call.
type Fault struct {
	Method      string
	Mode        FaultMode
	Probability float64 // used only by FaultRandom, in [0,1]
	Latency     time.Duration
}

// CallRecord is one observed call against the memory backend, kept for
// test inspection.
type CallRecord struct {
	Method string
	Key    string
}

// MemoryStore is an in-memory Store for tests, backed by afero.MemMapFs,
// with an injectable fault table and a call-history log.
type MemoryStore struct {
	*aferoStore

	mu      sync.Mutex
	faults  []Fault
	history []CallRecord
	rng     *rand.Rand
}

// NewMemory builds an in-memory Store. seed controls FaultRandom's
// determinism.
func NewMemory(seed int64) *MemoryStore {
	return &MemoryStore{
		aferoStore: newAferoStore(afero.NewMemMapFs(), "/"),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// InjectFault adds f to the fault table. Faults are evaluated in order;
// the first match for a method fires.
func (m *MemoryStore) InjectFault(f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, f)
}

// ClearFaults removes every injected fault.
func (m *MemoryStore) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = nil
}

// History returns every call observed so far, in order.
func (m *MemoryStore) History() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, len(m.history))
	copy(out, m.history)
	return out
}

func (m *MemoryStore) record(method, key string) error {
	m.mu.Lock()
	m.history = append(m.history, CallRecord{Method: method, Key: key})
	var matched *Fault
	for i := range m.faults {
		if m.faults[i].Method == "" || m.faults[i].Method == method {
			matched = &m.faults[i]
			break
		}
	}
	m.mu.Unlock()

	if matched == nil {
		return nil
	}
	switch matched.Mode {
	case FaultTransient:
		return ErrInjectedTransient
	case FaultPermanent:
		return ErrInjectedPermanent
	case FaultRandom:
		if m.rng.Float64() < matched.Probability {
			return ErrInjectedTransient
		}
		return nil
	case FaultLatency:
		time.Sleep(matched.Latency)
		return nil
	default:
		return fmt.Errorf("objectstore: unknown fault mode %d", matched.Mode)
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := m.record("Put", key); err != nil {
		return err
	}
	return m.aferoStore.Put(ctx, key, r, size)
}

func (m *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.record("Get", key); err != nil {
		return nil, err
	}
	return m.aferoStore.Get(ctx, key)
}

func (m *MemoryStore) Head(ctx context.Context, key string) (ObjectInfo, error) {
	if err := m.record("Head", key); err != nil {
		return ObjectInfo{}, err
	}
	return m.aferoStore.Head(ctx, key)
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.record("Exists", key); err != nil {
		return false, err
	}
	return m.aferoStore.Exists(ctx, key)
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := m.record("Delete", key); err != nil {
		return err
	}
	return m.aferoStore.Delete(ctx, key)
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := m.record("List", prefix); err != nil {
		return nil, err
	}
	return m.aferoStore.List(ctx, prefix)
}

func (m *MemoryStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := m.record("Copy", srcKey); err != nil {
		return err
	}
	return m.aferoStore.Copy(ctx, srcKey, dstKey)
}

func (m *MemoryStore) PutMultipart(ctx context.Context, key string, parts []io.Reader, partSize int64) error {
	if err := m.record("PutMultipart", key); err != nil {
		return err
	}
	return m.aferoStore.PutMultipart(ctx, key, parts, partSize)
}
