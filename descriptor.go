package wirecodec

import (
	"sync/atomic"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
)

// Kind classifies a TypeDescriptor (spec.md §3).
type Kind int

const (
	KindPrimitive Kind = iota
	KindEnum
	KindObject
	KindCollection
	KindMap
	KindArray
	KindPolymorphicRoot
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindCollection:
		return "collection"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	case KindPolymorphicRoot:
		return "polymorphic-root"
	default:
		return "unknown"
	}
}

// PrimitiveKind enumerates the wire-level primitive value kinds (spec.md
// §4.D). Byte/Short carry a single tag; Int32/Int64 (and their unsigned
// counterparts, widened to the same wire width) carry positive/negative
// tag variants — see SPEC_FULL.md Open Question resolutions #2.
type PrimitiveKind int

const (
	PrimBool PrimitiveKind = iota
	PrimInt8
	PrimInt16
	PrimInt32
	PrimInt64
	PrimUint8
	PrimUint16
	PrimUint32
	PrimUint64
	PrimFloat32
	PrimFloat64
	PrimString
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBool:
		return "bool"
	case PrimInt8:
		return "int8"
	case PrimInt16:
		return "int16"
	case PrimInt32:
		return "int32"
	case PrimInt64:
		return "int64"
	case PrimUint8:
		return "uint8"
	case PrimUint16:
		return "uint16"
	case PrimUint32:
		return "uint32"
	case PrimUint64:
		return "uint64"
	case PrimFloat32:
		return "float32"
	case PrimFloat64:
		return "float64"
	case PrimString:
		return "string"
	default:
		return "unknown"
	}
}

// FieldAccessor is the opaque capability pair the core uses to read or
// write a field's storage within an owning instance. It never inspects the
// owner's type; it is handed an unsafe.Pointer to the owning instance and
// returns a pointer to the field itself, suitable for the primitive/
// composite routines in primitive.go, object.go, collection.go, mapcodec.go
// to dereference directly. reflectbind.go is the default implementation,
// built from struct offsets; a code-generation adapter (cmd/wiregen) could
// supply one without reflection at all.
type FieldAccessor func(owner unsafe.Pointer) unsafe.Pointer

// OffsetAccessor builds a FieldAccessor for a field at a fixed byte offset
// within its owning struct - the common case, and the one reflectbind.go
// uses for every plain Go struct field.
func OffsetAccessor(offset uintptr) FieldAccessor {
	return func(owner unsafe.Pointer) unsafe.Pointer {
		return unsafe.Add(owner, offset)
	}
}

// FieldDescriptor describes one field of an object-kind TypeDescriptor.
// Order is registration order and is part of the wire contract for that
// type (spec.md §3).
type FieldDescriptor struct {
	Name     string
	Type     *TypeDescriptor
	Accessor FieldAccessor
	Nullable bool // true for pointer-typed fields: a NULL tag is legal here
}

// TypeDescriptor is the resolved, immutable description of a registered
// application type (spec.md §3). TypeDescriptors are created at
// registration and live for the process.
type TypeDescriptor struct {
	StableID uint64
	Kind     Kind
	Name     string // for diagnostics and ENUM printing only

	// KindPrimitive
	Primitive PrimitiveKind

	// KindObject
	Fields  []FieldDescriptor
	New     func() unsafe.Pointer // allocates a zero-value instance
	Mutable bool                  // can a REF into this instance be filled in before it completes?

	// KindCollection / KindArray
	Elem *TypeDescriptor

	// KindArray only: the fixed element count. Go fixed-size arrays carry
	// their length in the type itself, unlike slices.
	ArrayLen int

	// KindMap
	Key, Value *TypeDescriptor
	MapType    reflect.Type // the Go map[K]V type itself; mapcodec.go uses
	// reflect here (mirroring the teacher's own mapencoder.go/mapdecoder.go
	// fallback path) rather than unsafe.Pointer+offset walking, since Go
	// maps have no stable element addresses to compute offsets against.

	// KindEnum
	EnumNames   []string     // ordinal -> name
	EnumStorage PrimitiveKind // the named type's real underlying integer width, so encode/decode read and write exactly that many bytes of field storage

	// KindPolymorphicRoot: no extra data needed. The decoder always trusts
	// the wire's OBJECT stable id over the declared type for these, per
	// spec.md §4.G.
	Polymorphic bool

	// typeWord is the runtime type word of "pointer to this object's Go
	// struct type", captured once at registration. It lets the decoder box
	// a freshly filled instance back into an `any` for a polymorphic-root
	// field without paying for reflect.New/.Interface() on every value
	// (see typeword.go).
	typeWord unsafe.Pointer

	// Codec is the optional compiled routine installed by the specializer
	// (specialize.go). A nil load means the generic dispatcher drives this
	// type; it is written at most once, after generation fully completes,
	// so a concurrent reader never observes a partially-built codec
	// (spec.md §5).
	Codec atomic.Pointer[compiledCodec]
}

// identityOf returns the reference-equality key the spec requires for
// cycle detection: the raw address the composite instance lives at, not
// its contents (spec.md §3 invariants).
func identityOf(p unsafe.Pointer) uintptr {
	return uintptr(p)
}
