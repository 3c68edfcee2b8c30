package wirecodec

import (
	"fmt"
	"sync"
	"sync/atomic"

	reflect "github.com/goccy/go-reflect"
)

// registrySnapshot is an immutable view of the registry at some point in
// time. Registration builds a new snapshot and swaps it in atomically;
// readers never see a partially-updated map (spec.md §4.E, §5).
type registrySnapshot struct {
	byID   map[uint64]*TypeDescriptor
	byType map[reflect.Type]*TypeDescriptor
}

// TypeRegistry maps application types to stable ids and back (spec.md
// §4.E). Registration is expected to complete before first use, but
// remains safe afterward: every encode/decode call grabs one snapshot at
// the start and resolves against it for its whole duration.
type TypeRegistry struct {
	mu   sync.Mutex // serializes writers only; registration is rare
	snap atomic.Pointer[registrySnapshot]
}

// NewTypeRegistry builds an empty registry.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{}
	r.snap.Store(&registrySnapshot{
		byID:   map[uint64]*TypeDescriptor{},
		byType: map[reflect.Type]*TypeDescriptor{},
	})
	return r
}

// Register binds desc's stable id and the given Go type into the registry.
// It fails with ErrDuplicateRegistration if either is already bound, and
// with ErrReservedID if the caller asks for an id in the reserved range
// (ids 0-31, see SPEC_FULL.md Open Question resolutions #4) without going
// through registerReserved.
func (r *TypeRegistry) Register(t reflect.Type, desc *TypeDescriptor) error {
	if desc.StableID <= reservedIDCeiling {
		return ErrReservedID
	}
	return r.register(t, desc)
}

// registerReserved is used only by package init to seed the built-in
// primitive-kind descriptors into the reserved id range.
func (r *TypeRegistry) registerReserved(t reflect.Type, desc *TypeDescriptor) {
	if err := r.register(t, desc); err != nil {
		panic(err)
	}
}

func (r *TypeRegistry) register(t reflect.Type, desc *TypeDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()

	if _, ok := cur.byID[desc.StableID]; ok {
		return fmt.Errorf("stable id %d: %w", desc.StableID, ErrDuplicateRegistration)
	}
	if t != nil {
		if _, ok := cur.byType[t]; ok {
			return fmt.Errorf("type %v: %w", t, ErrDuplicateRegistration)
		}
	}

	next := &registrySnapshot{
		byID:   make(map[uint64]*TypeDescriptor, len(cur.byID)+1),
		byType: make(map[reflect.Type]*TypeDescriptor, len(cur.byType)+1),
	}
	for k, v := range cur.byID {
		next.byID[k] = v
	}
	for k, v := range cur.byType {
		next.byType[k] = v
	}
	next.byID[desc.StableID] = desc
	if t != nil {
		next.byType[t] = desc
	}

	r.snap.Store(next)
	return nil
}

// Snapshot captures the registry's current state for the duration of one
// top-level encode/decode call (spec.md §4.E, §5).
func (r *TypeRegistry) Snapshot() *RegistrySnapshot {
	return &RegistrySnapshot{s: r.snap.Load()}
}

// RegistrySnapshot is a stable, read-only view of a TypeRegistry captured
// at the start of one call.
type RegistrySnapshot struct {
	s *registrySnapshot
}

// ResolveByType looks up the descriptor for a Go type.
func (s *RegistrySnapshot) ResolveByType(t reflect.Type) (*TypeDescriptor, error) {
	d, ok := s.s.byType[t]
	if !ok {
		return nil, fmt.Errorf("%v: %w", t, ErrUnknownType)
	}
	return d, nil
}

// ResolveByID looks up the descriptor for a stable id, as read at decode
// time for OBJECT/ENUM/ARRAY/MAP payloads that carry one.
func (s *RegistrySnapshot) ResolveByID(id uint64) (*TypeDescriptor, error) {
	d, ok := s.s.byID[id]
	if !ok {
		return nil, fmt.Errorf("id %d: %w", id, ErrUnknownType)
	}
	return d, nil
}

// defaultRegistry is the process-wide registry used by the package-level
// Register/Encode/Decode/Precompile convenience functions.
var defaultRegistry = NewTypeRegistry()
