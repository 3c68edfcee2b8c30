package wirecodec

import (
	"bytes"
	"fmt"
	"sort"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
)

// mapEntry pairs one decoded key/value with the key's encoded wire bytes,
// used only to sort entries before the real write.
type mapEntry struct {
	key, val reflect.Value
	keyBytes []byte
}

// encodeMap writes a MAP value. Go maps have no stable per-entry address to
// compute offsets against, so - like the teacher's mapencoder.go generic
// fallback - this walks the map with reflect rather than unsafe.Pointer
// arithmetic. Maps are deliberately out of cycle detection scope (see
// DESIGN.md): value equality, not reference identity, governs repeats.
//
// Entries are written in ascending order of their encoded key bytes, not
// Go's randomized MapRange order, so two equal maps always produce
// identical wire output (spec.md §8.2). Key bytes are measured with a
// throwaway serialContext so the real ctx's string-interning/identity
// tables are only ever touched once per key, by the real write below.
func encodeMap(ctx *serialContext, buf *Buffer, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	mv := reflect.NewAt(desc.MapType, ptr).Elem()
	if mv.IsNil() {
		buf.PutByte(byte(TagNull))
		return nil
	}

	if err := ctx.enterComposite(); err != nil {
		return err
	}
	defer ctx.exitComposite()

	buf.PutByte(byte(TagMap))
	buf.appendVarintBuf(elemTypeID(desc.Key))
	buf.appendVarintBuf(elemTypeID(desc.Value))
	buf.appendVarintBuf(uint64(mv.Len()))

	keyType, valType := desc.MapType.Key(), desc.MapType.Elem()
	entries := make([]mapEntry, 0, mv.Len())
	scratch := newSerialContext(ctx.registry, 0)
	iter := mv.MapRange()
	for iter.Next() {
		kLocal := reflect.New(keyType).Elem()
		kLocal.Set(iter.Key())
		vLocal := reflect.New(valType).Elem()
		vLocal.Set(iter.Value())

		var kbuf Buffer
		if err := encodeSlotValue(scratch, &kbuf, desc.Key, kLocal.Addr().UnsafePointer()); err != nil {
			return fmt.Errorf("key: %w", err)
		}
		entries = append(entries, mapEntry{key: kLocal, val: vLocal, keyBytes: append([]byte(nil), kbuf.Snapshot()...)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].keyBytes, entries[j].keyBytes) < 0
	})

	for i, e := range entries {
		if err := encodeSlotValue(ctx, buf, desc.Key, e.key.Addr().UnsafePointer()); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		if err := encodeSlotValue(ctx, buf, desc.Value, e.val.Addr().UnsafePointer()); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
	}
	return nil
}

func decodeMap(ctx *deserialContext, c *Cursor, desc *TypeDescriptor, ptr unsafe.Pointer) error {
	dst := reflect.NewAt(desc.MapType, ptr).Elem()

	tag, err := c.readTag()
	if err != nil {
		return err
	}
	switch tag {
	case TagNull:
		dst.Set(reflect.Zero(desc.MapType))
		return nil
	case TagMap:
		// fall through below
	default:
		return fmt.Errorf("%s: %w", tag, ErrTypeMismatch)
	}

	keyID, err := readVarint(c)
	if err != nil {
		return err
	}
	if err := validateElemTypeID(keyID, desc.Key); err != nil {
		return err
	}
	valID, err := readVarint(c)
	if err != nil {
		return err
	}
	if err := validateElemTypeID(valID, desc.Value); err != nil {
		return err
	}
	n, err := readVarint(c)
	if err != nil {
		return err
	}
	// Every entry costs at least two wire bytes (one each for key and
	// value), so a claimed count past what's left in the input is always
	// malformed - reject it before sizing a map off an attacker-controlled
	// count.
	if n > uint64(c.Remaining())/2 {
		return ErrUnexpectedEnd
	}

	if err := ctx.enterComposite(); err != nil {
		return err
	}
	defer ctx.exitComposite()

	keyType, valType := desc.MapType.Key(), desc.MapType.Elem()
	m := reflect.MakeMapWithSize(desc.MapType, int(n))

	for i := uint64(0); i < n; i++ {
		kLocal := reflect.New(keyType).Elem()
		if err := decodeSlotValue(ctx, c, desc.Key, kLocal.Addr().UnsafePointer()); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		vLocal := reflect.New(valType).Elem()
		if err := decodeSlotValue(ctx, c, desc.Value, vLocal.Addr().UnsafePointer()); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		m.SetMapIndex(kLocal, vLocal)
	}

	dst.Set(m)
	return nil
}
