package wirecodec

import (
	"fmt"
	"unsafe"
)

// sliceHeader mirrors the Go runtime's slice header layout, the same
// unsafe reinterpretation trick the teacher's sliceencoder.go/slicedecoder.go
// use to walk a slice field without reflect on the hot path.
type sliceHeader struct {
	Data unsafe.Pointer
	Len  int
	Cap  int
}

// elemTypeID returns the type id written into ARRAY/LIST/MAP framing for a
// given element/key/value descriptor; nil means "dynamic per element"
// (id 0, spec.md §6).
func elemTypeID(d *TypeDescriptor) uint64 {
	if d == nil {
		return 0
	}
	if d.Kind == KindPrimitive {
		return primitiveStableID(d.Primitive)
	}
	return d.StableID
}

// elemStride reports the in-memory size of one element's storage slot for
// the homogeneous-element collection/map routines. Object elements are
// always stored as pointer-sized slots ([]*ConcreteStruct): see
// SPEC_FULL.md / DESIGN.md for the rationale. Enum elements take their
// declared storage width, and a nested fixed array takes its length times
// its own element stride. A nil descriptor (dynamic element) or a
// polymorphic-root element is stored as a 2-word `any`.
func elemStride(d *TypeDescriptor) uintptr {
	if d == nil {
		return unsafe.Sizeof(anyHeader{})
	}
	switch d.Kind {
	case KindPrimitive:
		switch d.Primitive {
		case PrimBool, PrimInt8, PrimUint8:
			return 1
		case PrimInt16, PrimUint16:
			return 2
		case PrimInt32, PrimUint32, PrimFloat32:
			return 4
		case PrimInt64, PrimUint64, PrimFloat64:
			return 8
		case PrimString:
			return unsafe.Sizeof("")
		}
	case KindEnum:
		return uintptr(enumStorageBits(d.EnumStorage) / 8)
	case KindObject:
		return unsafe.Sizeof(uintptr(0))
	case KindPolymorphicRoot:
		return unsafe.Sizeof(anyHeader{})
	case KindCollection:
		return unsafe.Sizeof(sliceHeader{})
	case KindArray:
		return uintptr(d.ArrayLen) * elemStride(d.Elem)
	case KindMap:
		return unsafe.Sizeof(uintptr(0))
	}
	panic(fmt.Sprintf("wirecodec: elemStride: unsupported descriptor %v/%v", d.Kind, d.Primitive))
}

// anyHeader is sized identically to an `any` value, used only to size a
// dynamic element's storage slot.
type anyHeader struct {
	typ, data unsafe.Pointer
}

func newBackingArray(stride uintptr, n int) unsafe.Pointer {
	if n == 0 {
		return nil
	}
	mem := make([]byte, int(stride)*n)
	return unsafe.Pointer(&mem[0])
}

// encodeCollection writes an ARRAY (fixed Go array) or LIST (Go slice)
// value. Slices participate in identity/cycle detection keyed on their
// backing array pointer; fixed arrays are value-semantics and never do
// (spec.md §3 invariants; SPEC_FULL.md Open Question-adjacent scoping
// decision, see DESIGN.md).
func encodeCollection(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	if desc.Kind == KindArray {
		buf.PutByte(byte(TagArray))
		buf.appendVarintBuf(elemTypeID(desc.Elem))
		buf.appendVarintBuf(uint64(desc.ArrayLen))
		return encodeElements(ctx, buf, desc.Elem, ptr, desc.ArrayLen)
	}

	sh := (*sliceHeader)(ptr)
	if sh.Data == nil {
		buf.PutByte(byte(TagNull))
		return nil
	}

	if err := ctx.enterComposite(); err != nil {
		return err
	}
	defer ctx.exitComposite()

	if id, seen := ctx.identify(sh.Data); seen {
		buf.PutByte(byte(TagRef))
		buf.appendVarintBuf(id)
		return nil
	}

	buf.PutByte(byte(TagList))
	buf.appendVarintBuf(elemTypeID(desc.Elem))
	buf.appendVarintBuf(uint64(sh.Len))
	return encodeElements(ctx, buf, desc.Elem, sh.Data, sh.Len)
}

func encodeElements(ctx *serialContext, buf *Buffer, elem *TypeDescriptor, data unsafe.Pointer, n int) error {
	stride := elemStride(elem)
	for i := 0; i < n; i++ {
		ep := unsafe.Add(data, uintptr(i)*stride)
		if err := encodeSlotValue(ctx, buf, elem, ep); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// encodeSlotValue writes the value at ep, whose declared kind is desc (nil
// meaning "dynamic per element"). Shared between homogeneous collection
// elements and map keys/values: both are a flat, stride-addressed run of
// identically-kinded slots (spec.md §4.D).
func encodeSlotValue(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ep unsafe.Pointer) error {
	if desc == nil {
		return encodePolymorphic(ctx, buf, ep)
	}
	switch desc.Kind {
	case KindPrimitive:
		if desc.Primitive == PrimString {
			encodeString(ctx, buf, *(*string)(ep))
			return nil
		}
		writeScalarPayload(buf, desc.Primitive, ep)
		return nil
	case KindObject:
		return encodeNullableComposite(ctx, buf, desc, *(*unsafe.Pointer)(ep))
	case KindPolymorphicRoot:
		return encodePolymorphic(ctx, buf, ep)
	default:
		return dispatchEncode(ctx, buf, desc, ep)
	}
}

// validateElemTypeID checks a wire-carried element/key/value type id
// against what desc declares (spec.md §4.D: "for reader-side type
// validation"), rather than reading and discarding it.
func validateElemTypeID(wireID uint64, desc *TypeDescriptor) error {
	if want := elemTypeID(desc); wireID != want {
		return fmt.Errorf("wire element type id %d, declared %d: %w", wireID, want, ErrTypeMismatch)
	}
	return nil
}

func decodeCollection(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	if desc.Kind == KindArray {
		tag, err := c.readTag()
		if err != nil {
			return err
		}
		if tag != TagArray {
			return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
		}
		elemID, err := readVarint(c)
		if err != nil {
			return err
		}
		if err := validateElemTypeID(elemID, desc.Elem); err != nil {
			return err
		}
		n, err := readVarint(c)
		if err != nil {
			return err
		}
		if int(n) != desc.ArrayLen {
			return fmt.Errorf("array length %d, declared %d: %w", n, desc.ArrayLen, ErrTypeMismatch)
		}
		return decodeElements(ctx, c, desc.Elem, ptr, int(n))
	}

	tag, err := c.readTag()
	if err != nil {
		return err
	}
	switch tag {
	case TagNull:
		*(*sliceHeader)(ptr) = sliceHeader{}
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
		*(*sliceHeader)(ptr) = *(*sliceHeader)(entry.ptr)
		return nil
	case TagList:
		elemID, err := readVarint(c)
		if err != nil {
			return err
		}
		if err := validateElemTypeID(elemID, desc.Elem); err != nil {
			return err
		}
		n, err := readVarint(c)
		if err != nil {
			return err
		}
		// Every element costs at least one wire byte, so a claimed count
		// past what's left in the input is always malformed - reject it
		// before sizing an allocation off an attacker-controlled count.
		if n > uint64(c.Remaining()) {
			return ErrUnexpectedEnd
		}
		stride := elemStride(desc.Elem)
		data := newBackingArray(stride, int(n))
		sh := sliceHeader{Data: data, Len: int(n), Cap: int(n)}
		*(*sliceHeader)(ptr) = sh

		shCopy := new(sliceHeader)
		*shCopy = sh
		ctx.reserveRef(unsafe.Pointer(shCopy), nil)

		if err := ctx.enterComposite(); err != nil {
			return err
		}
		defer ctx.exitComposite()
		return decodeElements(ctx, c, desc.Elem, data, int(n))
	default:
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}
}

func decodeElements(ctx *deserialContext, c *Cursor, elem *TypeDescriptor, data unsafe.Pointer, n int) error {
	stride := elemStride(elem)
	for i := 0; i < n; i++ {
		ep := unsafe.Add(data, uintptr(i)*stride)
		if err := decodeSlotValue(ctx, c, elem, ep); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// decodeSlotValue mirrors encodeSlotValue.
func decodeSlotValue(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ep unsafe.Pointer) error {
	if desc == nil {
		return decodePolymorphic(ctx, c, ep)
	}
	switch desc.Kind {
	case KindPrimitive:
		if desc.Primitive == PrimString {
			s, err := decodeString(ctx, c)
			if err != nil {
				return err
			}
			*(*string)(ep) = s
			return nil
		}
		return readScalarPayload(c, desc.Primitive, ep)
	case KindObject:
		return decodeObjectIndirect(ctx, c, desc, ep)
	case KindPolymorphicRoot:
		return decodePolymorphic(ctx, c, ep)
	default:
		return dispatchDecode(ctx, c, desc, ep)
	}
}
