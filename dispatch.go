package wirecodec

import (
	"fmt"
	"unsafe"
)

// dispatchEncode selects and drives the encode routine for desc, honoring
// a specialized codec when one has been installed (spec.md §4.G). ptr
// always points directly at the value's storage - nilability for
// pointer-indirected slots (Nullable fields, pointer-typed collection/map
// elements) is resolved by the caller before this is reached.
func dispatchEncode(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	if codec := desc.Codec.Load(); codec != nil {
		return codec.encode(ctx, buf, ptr)
	}
	return genericEncode(ctx, buf, desc, ptr)
}

// dispatchDecode mirrors dispatchEncode on the decode side. The branch is
// chosen from the declared kind (desc.Kind), not from the wire tag; each
// per-kind routine then reads its own leading tag and rejects a tag that
// does not fit the declared kind with ErrTypeMismatch.
func dispatchDecode(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	if codec := desc.Codec.Load(); codec != nil {
		return codec.decode(ctx, c, ptr)
	}
	return genericDecode(ctx, c, desc, ptr)
}

// genericEncode is the per-kind switch body dispatchEncode falls back to
// when no specialized codec is installed. specialize.go's non-object
// fallback calls this directly rather than going back through
// dispatchEncode, since by the time a specialized codec's fallback path
// runs, desc.Codec may already be in the process of being stored.
func genericEncode(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	switch desc.Kind {
	case KindPrimitive:
		if desc.Primitive == PrimString {
			encodeStringField(ctx, buf, ptr)
			return nil
		}
		writeTaggedScalar(buf, desc.Primitive, ptr)
		return nil
	case KindEnum:
		return encodeEnum(ctx, buf, desc, ptr)
	case KindObject:
		return encodeObject(ctx, buf, desc, ptr)
	case KindCollection, KindArray:
		return encodeCollection(ctx, buf, desc, ptr)
	case KindMap:
		return encodeMap(ctx, buf, desc, ptr)
	case KindPolymorphicRoot:
		return encodePolymorphic(ctx, buf, ptr)
	default:
		return fmt.Errorf("kind %v: %w", desc.Kind, ErrTypeMismatch)
	}
}

// genericDecode is genericEncode's decode-side counterpart.
func genericDecode(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	switch desc.Kind {
	case KindPrimitive:
		if desc.Primitive == PrimString {
			return decodeStringField(ctx, c, ptr)
		}
		ws, err := readTaggedScalar(c)
		if err != nil {
			return err
		}
		if ws.tag == TagNull {
			return nil
		}
		return coerceScalar(ws, desc.Primitive, ptr)
	case KindEnum:
		return decodeEnum(ctx, c, desc, ptr)
	case KindObject:
		return decodeObject(ctx, c, desc, ptr)
	case KindCollection, KindArray:
		return decodeCollection(ctx, c, desc, ptr)
	case KindMap:
		return decodeMap(ctx, c, desc, ptr)
	case KindPolymorphicRoot:
		return decodePolymorphic(ctx, c, ptr)
	default:
		return fmt.Errorf("kind %v: %w", desc.Kind, ErrTypeMismatch)
	}
}

// EncodeOptions configures a top-level encode call.
type EncodeOptions struct {
	MaxDepth int // 0 uses DefaultMaxDepth
}

// DecodeOptions configures a top-level decode call.
type DecodeOptions struct {
	MaxDepth int // 0 uses DefaultMaxDepth
}

// encodeTopLevel is the generic dispatcher's encode entry point (spec.md
// §4.G): fresh context, resolve the descriptor, drive the routine, snapshot
// the buffer. ptr must point directly at the root value's storage (e.g.
// the struct a *T points to).
func encodeTopLevel(reg *TypeRegistry, desc *TypeDescriptor, ptr unsafe.Pointer, opts EncodeOptions) ([]byte, error) {
	ctx := newSerialContext(reg.Snapshot(), opts.MaxDepth)
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()

	if err := dispatchEncode(ctx, buf, desc, ptr); err != nil {
		return nil, newEncodeError("", err)
	}

	out := make([]byte, buf.Length())
	copy(out, buf.Snapshot())
	return out, nil
}

// decodeTopLevel is the generic dispatcher's decode entry point, symmetric
// with encodeTopLevel.
func decodeTopLevel(reg *TypeRegistry, desc *TypeDescriptor, data []byte, ptr unsafe.Pointer, opts DecodeOptions) error {
	ctx := newDeserialContext(reg.Snapshot(), opts.MaxDepth)
	c := NewCursor(data)

	if err := dispatchDecode(ctx, &c, desc, ptr); err != nil {
		return newDecodeError(c.Position(), err)
	}
	return nil
}
