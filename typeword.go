package wirecodec

import "unsafe"

// ifaceHeader mirrors the in-memory layout of an empty-interface `any`
// value: a type word and a data word. Bypassing reflect.ValueOf lets
// polymorphic-root fields move a pointer in and out of an interface{} at
// dispatch speed - the same trick the teacher's glint.go uses for its own
// `iface` type, generalized here to also capture the type word so the core
// can *construct* an interface value, not just read one apart.
type ifaceHeader struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// pointerFromIface extracts the data word of an `any` known to hold a
// pointer-shaped value (a pointer, a map, or a slice header pointer is not
// applicable here - only used for pointer-to-struct concrete types).
func pointerFromIface(v any) unsafe.Pointer {
	return (*ifaceHeader)(unsafe.Pointer(&v)).data
}

// typeWordOf extracts the type word of a boxed value, used once at
// registration time to capture "pointer to this struct type" for later
// reuse by boxPointer.
func typeWordOf(v any) unsafe.Pointer {
	return (*ifaceHeader)(unsafe.Pointer(&v)).typ
}

// boxPointer builds an `any` value of the runtime type described by
// typeWord (which must be a pointer type) wrapping the address p.
func boxPointer(typeWord unsafe.Pointer, p unsafe.Pointer) any {
	var out any
	h := (*ifaceHeader)(unsafe.Pointer(&out))
	h.typ = typeWord
	h.data = p
	return out
}
