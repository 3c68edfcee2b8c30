package wirecodec

import (
	"fmt"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
)

// encodeObject writes an OBJECT value for the struct instance at ptr (ptr
// must be non-nil; nilability is the caller's concern via
// encodeNullableComposite). It performs the identity/cycle check required
// before writing any object/collection/map value (spec.md §4.F).
func encodeObject(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ptr unsafe.Pointer) error {
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
	buf.appendVarintBuf(uint64(len(desc.Fields)))

	for i := range desc.Fields {
		f := &desc.Fields[i]
		fp := f.Accessor(ptr)

		var err error
		switch {
		case f.Type.Kind == KindPolymorphicRoot:
			err = dispatchEncode(ctx, buf, f.Type, fp)
		case f.Nullable:
			p := *(*unsafe.Pointer)(fp)
			if p == nil {
				buf.PutByte(byte(TagNull))
				continue
			}
			err = dispatchEncode(ctx, buf, f.Type, p)
		default:
			err = dispatchEncode(ctx, buf, f.Type, fp)
		}
		if err != nil {
			return fieldError(f.Name, err)
		}
	}
	return nil
}

// decodeObject reads an OBJECT/REF/NULL value into the fixed struct
// address ptr. REF is only meaningful here in the degenerate case where it
// points back at this very instance (embedded value-semantics fields can
// never alias a second parent in valid Go data); any other REF cannot be
// honored against a fixed, non-pointer destination.
func decodeObject(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ptr unsafe.Pointer) error {
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
		return decodeObjectBody(ctx, c, desc, ptr)
	default:
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}
}

// decodeObjectIndirect reads an OBJECT/REF/NULL value into slot, a pointer
// variable (the storage for a Nullable *ConcreteStruct field, or a
// pointer-typed collection/map element).
func decodeObjectIndirect(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, slot unsafe.Pointer) error {
	tag, err := c.readTag()
	if err != nil {
		return err
	}
	switch tag {
	case TagNull:
		*(*unsafe.Pointer)(slot) = nil
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
		*(*unsafe.Pointer)(slot) = entry.ptr
		return nil
	case TagObject:
		stableID, err := readVarint(c)
		if err != nil {
			return err
		}
		cd := desc
		if stableID != desc.StableID {
			return fmt.Errorf("wire object id %d, declared %d: %w", stableID, desc.StableID, ErrTypeMismatch)
		}
		inst := cd.New()
		*(*unsafe.Pointer)(slot) = inst
		return decodeObjectBody(ctx, c, cd, inst)
	default:
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}
}

// decodeObjectBody reserves the next ref id for an already-allocated
// instance, then reads field_count + fields into it (the tag and stable id
// have already been consumed by the caller).
func decodeObjectBody(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, instPtr unsafe.Pointer) error {
	ctx.reserveRef(instPtr, desc)

	if err := ctx.enterComposite(); err != nil {
		return err
	}
	defer ctx.exitComposite()

	n, err := readVarint(c)
	if err != nil {
		return err
	}
	if int(n) != len(desc.Fields) {
		return fmt.Errorf("object %q: wire field count %d, declared %d: %w", desc.Name, n, len(desc.Fields), ErrTypeMismatch)
	}

	for i := range desc.Fields {
		f := &desc.Fields[i]
		fp := f.Accessor(instPtr)

		var ferr error
		switch {
		case f.Type.Kind == KindPolymorphicRoot:
			ferr = dispatchDecode(ctx, c, f.Type, fp)
		case f.Nullable:
			ferr = decodeObjectIndirect(ctx, c, f.Type, fp)
		default:
			ferr = dispatchDecode(ctx, c, f.Type, fp)
		}
		if ferr != nil {
			return fieldError(f.Name, ferr)
		}
	}
	return nil
}

// encodePolymorphic writes the value held in the `any` at ptr. The wire
// carries only the concrete type's own OBJECT framing (stable id included)
// - no extra polymorphic envelope is needed, since decodePolymorphic
// resolves the concrete descriptor straight from that stable id (spec.md
// §4.G).
func encodePolymorphic(ctx *serialContext, buf *Buffer, ptr unsafe.Pointer) error {
	v := *(*any)(ptr)
	if v == nil {
		buf.PutByte(byte(TagNull))
		return nil
	}
	rt := reflect.TypeOf(v)
	if rt.Kind() != reflect.Pointer {
		return fmt.Errorf("polymorphic field holds non-pointer %s: %w", rt, ErrTypeMismatch)
	}
	concrete, err := ctx.registry.ResolveByType(rt.Elem())
	if err != nil {
		return err
	}
	p := pointerFromIface(v)
	return dispatchEncode(ctx, buf, concrete, p)
}

// decodePolymorphic reads a NULL/REF/OBJECT value into the `any` at ptr,
// trusting the wire's stable id (not any declared type) to pick the
// concrete descriptor.
func decodePolymorphic(ctx *deserialContext, c *Cursor, ptr unsafe.Pointer) error {
	tag, err := c.readTag()
	if err != nil {
		return err
	}

	switch tag {
	case TagNull:
		*(*any)(ptr) = nil
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
		if entry.desc == nil {
			return ErrTypeMismatch
		}
		*(*any)(ptr) = boxPointer(entry.desc.typeWord, entry.ptr)
		return nil
	case TagObject:
		stableID, err := readVarint(c)
		if err != nil {
			return err
		}
		concrete, err := ctx.registry.ResolveByID(stableID)
		if err != nil {
			return err
		}
		inst := concrete.New()
		*(*any)(ptr) = boxPointer(concrete.typeWord, inst)
		return decodeObjectBody(ctx, c, concrete, inst)
	default:
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}
}

// encodeNullableComposite writes NULL for a nil pointer-typed element/value
// slot (object-kind collection/map entries), otherwise dispatches normally.
func encodeNullableComposite(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, p unsafe.Pointer) error {
	if p == nil {
		buf.PutByte(byte(TagNull))
		return nil
	}
	return dispatchEncode(ctx, buf, desc, p)
}
