package wirecodec

import (
	"fmt"
	"strings"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
)

// BindOptions configures populateObjectFields's struct scan.
type BindOptions struct {
	TagName string // default "wire"
}

func (o BindOptions) tagName() string {
	if o.TagName == "" {
		return "wire"
	}
	return o.TagName
}

var polymorphicRoot = &TypeDescriptor{Kind: KindPolymorphicRoot, Polymorphic: true, Name: "any"}

func primitiveKindForGoType(t reflect.Type) (PrimitiveKind, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return PrimBool, true
	case reflect.Int8:
		return PrimInt8, true
	case reflect.Int16:
		return PrimInt16, true
	case reflect.Int32:
		return PrimInt32, true
	case reflect.Int64, reflect.Int:
		return PrimInt64, true
	case reflect.Uint8:
		return PrimUint8, true
	case reflect.Uint16:
		return PrimUint16, true
	case reflect.Uint32:
		return PrimUint32, true
	case reflect.Uint64, reflect.Uint:
		return PrimUint64, true
	case reflect.Float32:
		return PrimFloat32, true
	case reflect.Float64:
		return PrimFloat64, true
	case reflect.String:
		return PrimString, true
	default:
		return 0, false
	}
}

func primitiveDescriptor(prim PrimitiveKind) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindPrimitive, Primitive: prim, StableID: primitiveStableID(prim), Name: prim.String()}
}

// newObjectSkeleton builds a KindObject TypeDescriptor with everything a
// pointer field elsewhere can already rely on - its stable id, New, and
// typeWord - but no Fields yet. Splitting the skeleton from the field scan
// (populateObjectFields) is what lets a self-referential struct (a field
// pointing back at its own type, e.g. a linked-list node) register at all:
// the skeleton is bound into the registry first, so the field scan can
// resolve the type against itself.
func newObjectSkeleton(t reflect.Type, stableID uint64) *TypeDescriptor {
	desc := &TypeDescriptor{
		StableID: stableID,
		Kind:     KindObject,
		Name:     t.Name(),
		Mutable:  true,
	}
	desc.New = func() unsafe.Pointer {
		return pointerFromIface(reflect.New(t).Interface())
	}
	desc.typeWord = typeWordOf(reflect.New(t).Interface())
	return desc
}

// populateObjectFields reflects over t's `wire:"..."` struct tags and fills
// desc.Fields in place, the way the teacher's buildStruct walks a struct
// once at NewEncoder[T] time (glint.go) - except our output is a descriptor
// the generic dispatcher drives, not a compiled instruction list. Fields
// without a tag (or whatever opts.TagName names) are skipped entirely,
// matching glint's own untagged-field behavior and spec.md §9's
// transient-skipping note.
//
// desc must already be reachable through reg under t (see newObjectSkeleton
// and Register) so a field referring back to t resolves. Dependencies -
// any other struct or enum type reachable through a field - must already be
// fully registered in reg.
func populateObjectFields(reg *TypeRegistry, desc *TypeDescriptor, t reflect.Type, opts BindOptions) error {
	tagName := opts.tagName()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup(tagName)
		if !ok || tag == "" {
			continue
		}

		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" {
			name = f.Name
		}
		isPoly := false
		for _, opt := range parts[1:] {
			if opt == "poly" {
				isPoly = true
			}
		}

		fieldDesc, nullable, err := resolveFieldDescriptor(reg, f.Type, isPoly)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}

		desc.Fields = append(desc.Fields, FieldDescriptor{
			Name:     name,
			Type:     fieldDesc,
			Accessor: OffsetAccessor(f.Offset),
			Nullable: nullable,
		})
	}
	return nil
}

// BuildEnumDescriptor registers a named Go integer type as a KindEnum
// descriptor. names[i] is the display name for ordinal i; a nil names
// slice disables ordinal-range validation at decode time. t's underlying
// Kind fixes the descriptor's EnumStorage width - enumcodec.go reads and
// writes exactly that many bytes of field storage, rather than always
// assuming int32, so a `type E uint8`/`int16` enum field round-trips
// without spilling into an adjacent struct field.
func BuildEnumDescriptor(t reflect.Type, stableID uint64, names []string) (*TypeDescriptor, error) {
	prim, ok := primitiveKindForGoType(t)
	if !ok || !isIntegerPrimitiveKind(prim) {
		return nil, fmt.Errorf("enum type %v: underlying type must be a fixed-width integer: %w", t, ErrTypeMismatch)
	}
	return &TypeDescriptor{StableID: stableID, Kind: KindEnum, Name: t.Name(), EnumNames: names, EnumStorage: prim}, nil
}

func isIntegerPrimitiveKind(k PrimitiveKind) bool {
	switch k {
	case PrimInt8, PrimInt16, PrimInt32, PrimInt64, PrimUint8, PrimUint16, PrimUint32, PrimUint64:
		return true
	default:
		return false
	}
}

func resolveFieldDescriptor(reg *TypeRegistry, ft reflect.Type, isPoly bool) (desc *TypeDescriptor, nullable bool, err error) {
	if isPoly {
		if ft.Kind() != reflect.Interface {
			return nil, false, fmt.Errorf("poly option requires an interface field, got %v: %w", ft, ErrTypeMismatch)
		}
		return polymorphicRoot, false, nil
	}

	if ft.Kind() == reflect.Pointer {
		pe := ft.Elem()
		if pe.Kind() != reflect.Struct {
			return nil, false, fmt.Errorf("pointer field must point to a registered struct, got %v: %w", ft, ErrTypeMismatch)
		}
		d, err := reg.Snapshot().ResolveByType(pe)
		if err != nil {
			return nil, false, err
		}
		return d, true, nil
	}

	d, err := resolveElementDescriptor(reg, ft)
	return d, false, err
}

// resolveElementDescriptor resolves the TypeDescriptor for a collection
// element / map key / map value shape. An interface{} element returns a
// nil descriptor, meaning "dynamic per element" (element-type id 0, spec.md
// §6); a pointer-to-struct element resolves to that struct's registered
// descriptor (always pointer-stored, see SPEC_FULL.md/DESIGN.md).
func resolveElementDescriptor(reg *TypeRegistry, t reflect.Type) (*TypeDescriptor, error) {
	if t.Kind() == reflect.Interface {
		return nil, nil
	}
	if t.Kind() == reflect.Pointer {
		pe := t.Elem()
		if pe.Kind() != reflect.Struct {
			return nil, fmt.Errorf("pointer element must point to a registered struct, got %v: %w", t, ErrTypeMismatch)
		}
		return reg.Snapshot().ResolveByType(pe)
	}
	// a previously registered enum, or a registered struct stored by value
	if d, err := reg.Snapshot().ResolveByType(t); err == nil {
		return d, nil
	}
	if prim, ok := primitiveKindForGoType(t); ok {
		return primitiveDescriptor(prim), nil
	}
	switch t.Kind() {
	case reflect.Slice:
		return buildCollectionDescriptor(reg, t)
	case reflect.Array:
		return buildArrayDescriptor(reg, t)
	case reflect.Map:
		return buildMapDescriptor(reg, t)
	default:
		return nil, fmt.Errorf("%v: %w", t, ErrTypeMismatch)
	}
}

func buildCollectionDescriptor(reg *TypeRegistry, t reflect.Type) (*TypeDescriptor, error) {
	elem, err := resolveElementDescriptor(reg, t.Elem())
	if err != nil {
		return nil, err
	}
	return &TypeDescriptor{Kind: KindCollection, Elem: elem, Name: t.String()}, nil
}

func buildArrayDescriptor(reg *TypeRegistry, t reflect.Type) (*TypeDescriptor, error) {
	elem, err := resolveElementDescriptor(reg, t.Elem())
	if err != nil {
		return nil, err
	}
	return &TypeDescriptor{Kind: KindArray, Elem: elem, ArrayLen: t.Len(), Name: t.String()}, nil
}

func buildMapDescriptor(reg *TypeRegistry, t reflect.Type) (*TypeDescriptor, error) {
	key, err := resolveElementDescriptor(reg, t.Key())
	if err != nil {
		return nil, err
	}
	val, err := resolveElementDescriptor(reg, t.Elem())
	if err != nil {
		return nil, err
	}
	return &TypeDescriptor{Kind: KindMap, Key: key, Value: val, MapType: t, Name: t.String()}, nil
}
