package wirecodec

import (
	"fmt"
	"unsafe"
)

// enumStorageBits reports the bit width of an enum's declared Go field
// storage, derived from RegisterEnum/BuildEnumDescriptor's underlying-kind
// capture (reflectbind.go) rather than assumed uniformly int32: a
// `type E uint8`/`int16` field is only 1-2 bytes wide, and reading/writing
// 4 bytes there would run past the field into whatever struct member
// follows it.
func enumStorageBits(kind PrimitiveKind) int {
	switch kind {
	case PrimInt8, PrimUint8:
		return 8
	case PrimInt16, PrimUint16:
		return 16
	case PrimInt32, PrimUint32:
		return 32
	case PrimInt64, PrimUint64:
		return 64
	default:
		panic(fmt.Sprintf("wirecodec: enumStorageBits: unsupported storage kind %v", kind))
	}
}

// loadEnumOrdinal reads the raw bytes at ptr, sized per storage, as an
// unsigned value - the bit pattern is carried through unchanged regardless
// of whether the declared Go type is signed or unsigned, so this needs no
// separate signed path.
func loadEnumOrdinal(storage PrimitiveKind, ptr unsafe.Pointer) uint64 {
	switch enumStorageBits(storage) {
	case 8:
		return uint64(*(*uint8)(ptr))
	case 16:
		return uint64(*(*uint16)(ptr))
	case 32:
		return uint64(*(*uint32)(ptr))
	default:
		return *(*uint64)(ptr)
	}
}

// storeEnumOrdinal mirrors loadEnumOrdinal.
func storeEnumOrdinal(storage PrimitiveKind, ptr unsafe.Pointer, ord uint64) {
	switch enumStorageBits(storage) {
	case 8:
		*(*uint8)(ptr) = uint8(ord)
	case 16:
		*(*uint16)(ptr) = uint16(ord)
	case 32:
		*(*uint32)(ptr) = uint32(ord)
	default:
		*(*uint64)(ptr) = ord
	}
}

// encodeEnum writes an ENUM value: the type's stable id plus the ordinal,
// letting inspect.go print a name without needing the application's Go
// type (spec.md §4.D uses the stable id the same way OBJECT does).
func encodeEnum(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	ord := loadEnumOrdinal(desc.EnumStorage, ptr)
	buf.PutByte(byte(TagEnum))
	buf.appendVarintBuf(desc.StableID)
	buf.appendVarintBuf(ord)
	return nil
}

func decodeEnum(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	tag, err := c.readTag()
	if err != nil {
		return err
	}
	if tag == TagNull {
		return nil
	}
	if tag != TagEnum {
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}
	stableID, err := readVarint(c)
	if err != nil {
		return err
	}
	if stableID != desc.StableID {
		return fmt.Errorf("wire enum id %d, declared %d: %w", stableID, desc.StableID, ErrTypeMismatch)
	}
	ord, err := readVarint(c)
	if err != nil {
		return err
	}
	if desc.EnumNames != nil && int(ord) >= len(desc.EnumNames) {
		return fmt.Errorf("ordinal %d outside %q's %d names: %w", ord, desc.Name, len(desc.EnumNames), ErrRangeError)
	}
	if bits := enumStorageBits(desc.EnumStorage); bits < 64 && ord >= uint64(1)<<uint(bits) {
		return fmt.Errorf("ordinal %d overflows %q's %d-bit storage: %w", ord, desc.Name, bits, ErrRangeError)
	}
	storeEnumOrdinal(desc.EnumStorage, ptr, ord)
	return nil
}
