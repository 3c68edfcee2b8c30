package wirecodec

import (
	"fmt"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
)

// defaultSpecializer backs Precompile; ordinary Encode/Decode calls never
// touch it; a type with no installed codec simply runs the generic
// dispatcher (spec.md §4.I describes specialization as optional).
var defaultSpecializer = NewSpecializer()

// Register binds T to stableID in the process-wide registry, deriving its
// TypeDescriptor by reflecting over its `wire:"..."` struct tags
// (reflectbind.go). T must be a struct type. Dependent types - any struct
// or enum a field of T refers to - must already be registered, except T
// itself: the skeleton is bound before its fields are scanned, so a field
// pointing back at T (a linked-list Next, a tree Children) resolves fine.
// A field-scan failure leaves the skeleton registered under stableID with
// no fields; callers should treat a Register error as fatal to the
// process rather than retrying under the same id.
func Register[T any](stableID uint64) error {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%T: not a struct: %w", zero, ErrTypeMismatch)
	}

	desc := newObjectSkeleton(t, stableID)
	if err := defaultRegistry.Register(t, desc); err != nil {
		return err
	}
	return populateObjectFields(defaultRegistry, desc, t, BindOptions{})
}

// RegisterEnum binds a named Go integer type T to stableID as a KindEnum
// type, with names[i] naming ordinal i (nil disables range validation).
func RegisterEnum[T any](stableID uint64, names []string) error {
	var zero T
	t := reflect.TypeOf(zero)
	desc, err := BuildEnumDescriptor(t, stableID, names)
	if err != nil {
		return err
	}
	return defaultRegistry.Register(t, desc)
}

// Precompile specializes T's codec (spec.md §4.I) and installs it on T's
// descriptor, so later Encode/Decode calls for T run the specialized
// routine. Encode and Decode never specialize a type on their own; a type
// that was never precompiled always runs the generic dispatcher.
func Precompile[T any]() error {
	var zero T
	t := reflect.TypeOf(zero)
	desc, err := defaultRegistry.Snapshot().ResolveByType(t)
	if err != nil {
		return err
	}
	_, err = defaultSpecializer.Specialize(desc)
	return err
}

// Encode serializes *v using its registered TypeDescriptor.
func Encode[T any](v *T) ([]byte, error) {
	t := reflect.TypeOf(*v)
	desc, err := defaultRegistry.Snapshot().ResolveByType(t)
	if err != nil {
		return nil, err
	}
	return encodeTopLevel(defaultRegistry, desc, unsafe.Pointer(v), EncodeOptions{})
}

// Decode deserializes data into a freshly allocated *T.
func Decode[T any](data []byte) (*T, error) {
	var zero T
	t := reflect.TypeOf(zero)
	desc, err := defaultRegistry.Snapshot().ResolveByType(t)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := decodeTopLevel(defaultRegistry, desc, data, unsafe.Pointer(out), DecodeOptions{}); err != nil {
		return nil, err
	}
	return out, nil
}
