package wirecodec

import (
	"fmt"
	"unsafe"

	"golang.org/x/sync/singleflight"
)

// compiledCodec is the output of specialization (spec.md §4.I): a fixed
// pair of closures that drive encode/decode for one TypeDescriptor without
// re-deriving its field layout on every call.
type compiledCodec struct {
	encode func(ctx *serialContext, buf *Buffer, ptr unsafe.Pointer) error
	decode func(ctx *deserialContext, c *Cursor, ptr unsafe.Pointer) error
}

// fieldCodec is one precomputed object field slot: its accessor folded
// together with the branch (polymorphic-root / nullable-pointer /
// embedded-value) that the generic field loop in object.go would otherwise
// re-select on every single call.
type fieldCodec struct {
	name     string
	accessor FieldAccessor
	typ      *TypeDescriptor
	nullable bool
	poly     bool
}

func (f *fieldCodec) encode(ctx *serialContext, buf *Buffer, owner unsafe.Pointer) error {
	fp := f.accessor(owner)
	var err error
	switch {
	case f.poly:
		err = dispatchEncode(ctx, buf, f.typ, fp)
	case f.nullable:
		p := *(*unsafe.Pointer)(fp)
		if p == nil {
			buf.PutByte(byte(TagNull))
			return nil
		}
		err = dispatchEncode(ctx, buf, f.typ, p)
	default:
		err = dispatchEncode(ctx, buf, f.typ, fp)
	}
	if err != nil {
		return fieldError(f.name, err)
	}
	return nil
}

func (f *fieldCodec) decode(ctx *deserialContext, c *Cursor, owner unsafe.Pointer) error {
	fp := f.accessor(owner)
	var err error
	switch {
	case f.poly:
		err = dispatchDecode(ctx, c, f.typ, fp)
	case f.nullable:
		err = decodeObjectIndirect(ctx, c, f.typ, fp)
	default:
		err = dispatchDecode(ctx, c, f.typ, fp)
	}
	if err != nil {
		return fieldError(f.name, err)
	}
	return nil
}

// Specializer lazily compiles TypeDescriptors into compiledCodecs. desc.Codec
// itself is the published cache (an atomic.Pointer written at most once);
// the singleflight.Group only collapses concurrent first-requests for the
// same descriptor into a single build, per spec.md §5.
type Specializer struct {
	group singleflight.Group
}

// NewSpecializer returns a ready-to-use Specializer.
func NewSpecializer() *Specializer {
	return &Specializer{}
}

// Specialize returns the compiled codec for desc, building and installing
// it onto desc.Codec on first request. Concurrent callers for the same desc
// share one build and all receive the same *compiledCodec.
func (s *Specializer) Specialize(desc *TypeDescriptor) (*compiledCodec, error) {
	if c := desc.Codec.Load(); c != nil {
		return c, nil
	}

	key := fmt.Sprintf("%p", desc)
	v, err, _ := s.group.Do(key, func() (any, error) {
		if c := desc.Codec.Load(); c != nil {
			return c, nil
		}
		return s.build(desc)
	})
	if err != nil {
		return nil, err
	}
	return v.(*compiledCodec), nil
}

// build compiles desc. Object kinds get an inlined field loop (buildObject);
// every other kind gets a thin codec that forwards to the existing generic
// per-kind routines, which already run a tight descriptor-driven loop with
// no further inlining to gain (spec.md §4.I).
func (s *Specializer) build(desc *TypeDescriptor) (*compiledCodec, error) {
	slot := &compiledCodec{}

	switch desc.Kind {
	case KindObject:
		s.buildObject(desc, slot)
	default:
		slot.encode = func(ctx *serialContext, buf *Buffer, ptr unsafe.Pointer) error {
			return genericEncode(ctx, buf, desc, ptr)
		}
		slot.decode = func(ctx *deserialContext, c *Cursor, ptr unsafe.Pointer) error {
			return genericDecode(ctx, c, desc, ptr)
		}
	}

	desc.Codec.Store(slot)
	return slot, nil
}

// buildObject precomputes desc.Fields into fieldCodecs once, then closes
// over that fixed slice for every future encode/decode of this type. A
// self-referential struct (a linked-list Node with a *Node field) is safe
// without any extra recursion guard: the nested field still goes through
// dispatchEncode/dispatchDecode, which consult the nested descriptor's own
// desc.Codec at call time - by then its own specialization, if any, has
// long since completed.
func (s *Specializer) buildObject(desc *TypeDescriptor, slot *compiledCodec) {
	fields := make([]fieldCodec, len(desc.Fields))
	for i := range desc.Fields {
		f := &desc.Fields[i]
		fields[i] = fieldCodec{
			name:     f.Name,
			accessor: f.Accessor,
			typ:      f.Type,
			nullable: f.Nullable,
			poly:     f.Type.Kind == KindPolymorphicRoot,
		}
	}

	slot.encode = func(ctx *serialContext, buf *Buffer, ptr unsafe.Pointer) error {
		if err := ctx.enterComposite(); err != nil {
			return err
		}
		defer ctx.exitComposite()

		if id, seen := ctx.identify(ptr); seen {
			buf.PutByte(byte(TagRef))
			buf.appendVarintBuf(id)
			return nil
		}

		buf.PutByte(byte(TagObject))
		buf.appendVarintBuf(desc.StableID)
		buf.appendVarintBuf(uint64(len(fields)))

		for i := range fields {
			if err := fields[i].encode(ctx, buf, ptr); err != nil {
				return err
			}
		}
		return nil
	}

	slot.decode = func(ctx *deserialContext, c *Cursor, ptr unsafe.Pointer) error {
		tag, err := c.readTag()
		if err != nil {
			return err
		}
		switch tag {
		case TagNull:
			return nil
		case TagRef:
			id, err := readVarint(c)
			if err != nil {
				return err
			}
			entry, err := ctx.resolveRefEntry(id)
			if err != nil {
				return err
			}
			if entry.ptr == ptr {
				return nil
			}
			return ErrUnsupportedCycle
		case TagObject:
			stableID, err := readVarint(c)
			if err != nil {
				return err
			}
			if stableID != desc.StableID {
				return fmt.Errorf("wire object id %d, declared %d: %w", stableID, desc.StableID, ErrTypeMismatch)
			}
			return decodeObjectBodyFields(ctx, c, desc, fields, ptr)
		default:
			return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
		}
	}
}

// decodeObjectBodyFields is decodeObjectBody's specialized-path twin: it
// drives the precomputed fieldCodec slice instead of re-deriving each
// field's branch from desc.Fields on every call.
func decodeObjectBodyFields(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, fields []fieldCodec, instPtr unsafe.Pointer) error {
	ctx.reserveRef(instPtr, desc)

	if err := ctx.enterComposite(); err != nil {
		return err
	}
	defer ctx.exitComposite()

	n, err := readVarint(c)
	if err != nil {
		return err
	}
	if int(n) != len(fields) {
		return fmt.Errorf("object %q: wire field count %d, declared %d: %w", desc.Name, n, len(fields), ErrTypeMismatch)
	}

	for i := range fields {
		if err := fields[i].decode(ctx, c, instPtr); err != nil {
			return err
		}
	}
	return nil
}
