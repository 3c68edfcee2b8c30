package wirecodec

import (
	reflect "github.com/goccy/go-reflect"
)

// init seeds the reserved-id primitive descriptors into defaultRegistry.
// When binding a struct field of a plain primitive Go type against
// defaultRegistry, reflectbind.go's resolveElementDescriptor finds these by
// Go type before it would build an equivalent descriptor from the Go kind;
// both carry the same kind and reserved id.
func init() {
	seed := func(sample any, id uint64, prim PrimitiveKind) {
		t := reflect.TypeOf(sample)
		defaultRegistry.registerReserved(t, &TypeDescriptor{
			StableID:  id,
			Kind:      KindPrimitive,
			Name:      prim.String(),
			Primitive: prim,
		})
	}

	seed(false, idBool, PrimBool)
	seed(int8(0), idInt8, PrimInt8)
	seed(int16(0), idInt16, PrimInt16)
	seed(int32(0), idInt32, PrimInt32)
	seed(int64(0), idInt64, PrimInt64)
	seed(uint8(0), idUint8, PrimUint8)
	seed(uint16(0), idUint16, PrimUint16)
	seed(uint32(0), idUint32, PrimUint32)
	seed(uint64(0), idUint64, PrimUint64)
	seed(float32(0), idFloat32, PrimFloat32)
	seed(float64(0), idFloat64, PrimFloat64)
	seed("", idString, PrimString)
}
