package wirecodec

import (
	"fmt"
	"unsafe"
)

// DefaultMaxDepth bounds composite nesting when a caller doesn't specify
// one explicitly (spec.md §4.F).
const DefaultMaxDepth = 1000

// serialContext is owned by exactly one encode call (spec.md §3) and never
// escapes it.
type serialContext struct {
	registry *RegistrySnapshot

	identity map[uintptr]uint64 // composite instance identity -> ref id
	nextRef  uint64

	strings map[string]uint64 // string content -> string id
	nextStr uint64

	depth    int
	maxDepth int
}

func newSerialContext(reg *RegistrySnapshot, maxDepth int) *serialContext {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &serialContext{
		registry: reg,
		identity: make(map[uintptr]uint64),
		strings:  make(map[string]uint64),
		maxDepth: maxDepth,
	}
}

// enterComposite checks the depth bound on entry to an object/collection/
// map/array value, per spec.md §4.F.
func (c *serialContext) enterComposite() error {
	c.depth++
	if c.depth > c.maxDepth {
		return ErrDepthLimitExceeded
	}
	return nil
}

func (c *serialContext) exitComposite() {
	c.depth--
}

// identify implements the encode-side cycle check (spec.md §4.F): if p has
// already been seen, it returns its existing ref id and ok=true, meaning
// the caller must emit REF and stop. Otherwise it allocates the next id,
// records it, and returns ok=false so the caller proceeds to encode the
// value's normal payload.
func (c *serialContext) identify(p unsafe.Pointer) (id uint64, seen bool) {
	key := identityOf(p)
	if id, ok := c.identity[key]; ok {
		return id, true
	}
	c.nextRef++
	c.identity[key] = c.nextRef
	return c.nextRef, false
}

// internString implements string interning by content equality: first
// occurrence gets a fresh id and is reported new=true (caller writes
// STRING); subsequent occurrences reuse the id and are reported new=false
// (caller writes STRING_REF).
func (c *serialContext) internString(s string) (id uint64, isNew bool) {
	if id, ok := c.strings[s]; ok {
		return id, false
	}
	c.nextStr++
	c.strings[s] = c.nextStr
	return c.nextStr, true
}

// refEntry is what a reference id resolves to on the decode side: the
// materializing instance's address plus (when known) the concrete
// TypeDescriptor it was built from - needed so a REF reached through a
// polymorphic-root field can re-box the right concrete type without
// re-deriving it (spec.md §4.F, §4.G).
type refEntry struct {
	ptr  unsafe.Pointer
	desc *TypeDescriptor
}

// deserialContext mirrors serialContext on the decode side.
type deserialContext struct {
	registry *RegistrySnapshot

	refs    map[uint64]refEntry // ref id -> materializing/materialized instance
	nextRef uint64

	strings  []string // string id (1-based) -> interned string
	depth    int
	maxDepth int
}

func newDeserialContext(reg *RegistrySnapshot, maxDepth int) *deserialContext {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &deserialContext{
		registry: reg,
		refs:     make(map[uint64]refEntry),
		maxDepth: maxDepth,
	}
}

func (c *deserialContext) enterComposite() error {
	c.depth++
	if c.depth > c.maxDepth {
		return ErrDepthLimitExceeded
	}
	return nil
}

func (c *deserialContext) exitComposite() {
	c.depth--
}

// reserveRef allocates the next reference id for a composite about to be
// filled and records its (not yet fully populated) address, so that a REF
// encountered while filling it resolves back to this same instance
// (spec.md §4.F). Must be called exactly once per composite entered, in
// the same traversal order as the encoder's identify() calls, so ids line
// up between the two sides without being carried on the wire.
func (c *deserialContext) reserveRef(p unsafe.Pointer, desc *TypeDescriptor) uint64 {
	c.nextRef++
	c.refs[c.nextRef] = refEntry{ptr: p, desc: desc}
	return c.nextRef
}

// resolveRefEntry looks up the instance materializing (or already
// materialized) for a given ref id.
func (c *deserialContext) resolveRefEntry(id uint64) (refEntry, error) {
	e, ok := c.refs[id]
	if !ok {
		return refEntry{}, fmt.Errorf("ref id %d: %w", id, ErrUnknownType)
	}
	return e, nil
}

// internString records s under the next 1-based string id and returns that
// id.
func (c *deserialContext) internString(s string) uint64 {
	c.strings = append(c.strings, s)
	return uint64(len(c.strings))
}

// lookupString resolves a STRING_REF id back to its interned content.
func (c *deserialContext) lookupString(id uint64) (string, error) {
	if id == 0 || int(id) > len(c.strings) {
		return "", ErrTypeMismatch
	}
	return c.strings[id-1], nil
}
