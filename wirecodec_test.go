package wirecodec

import (
	"testing"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
	"github.com/stretchr/testify/require"
)

func TestStringInterningEmitsRefOnRepeat(t *testing.T) {
	ctx := newSerialContext(NewTypeRegistry().Snapshot(), 0)
	var buf Buffer

	encodeString(ctx, &buf, "hello")
	encodeString(ctx, &buf, "hello")
	encodeString(ctx, &buf, "world")

	c := NewCursor(buf.Snapshot())

	tag, err := c.readTag()
	require.NoError(t, err)
	require.Equal(t, TagString, tag)

	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	c.Seek(0)

	s1, err := decodeString(dctx, &c)
	require.NoError(t, err)
	require.Equal(t, "hello", s1)

	next, err := c.PeekByte()
	require.NoError(t, err)
	require.Equal(t, byte(TagStringRef), next)

	s2, err := decodeString(dctx, &c)
	require.NoError(t, err)
	require.Equal(t, "hello", s2)

	s3, err := decodeString(dctx, &c)
	require.NoError(t, err)
	require.Equal(t, "world", s3)
}

func TestStringRefToUnknownIDFails(t *testing.T) {
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	var buf Buffer
	buf.PutByte(byte(TagStringRef))
	buf.appendVarintBuf(5)
	c := NewCursor(buf.Snapshot())

	_, err := decodeString(dctx, &c)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDecodeStringRejectsLengthExceedingInput(t *testing.T) {
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	var buf Buffer
	buf.PutByte(byte(TagString))
	buf.appendVarintBuf(1 << 62) // absurd length, far beyond any remaining bytes
	c := NewCursor(buf.Snapshot())

	_, err := decodeString(dctx, &c)
	require.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestEnterCompositeEnforcesMaxDepth(t *testing.T) {
	ctx := newSerialContext(NewTypeRegistry().Snapshot(), 2)
	require.NoError(t, ctx.enterComposite())
	require.NoError(t, ctx.enterComposite())
	require.ErrorIs(t, ctx.enterComposite(), ErrDepthLimitExceeded)
}

func TestEncodeDeeplyNestedSliceOfSlicesHitsDepthLimit(t *testing.T) {
	reg := NewTypeRegistry()
	inner := &TypeDescriptor{Kind: KindCollection, Elem: primitiveDescriptor(PrimInt32), Name: "[]int32"}
	outer := &TypeDescriptor{Kind: KindCollection, Elem: inner, Name: "[][]int32"}

	src := [][]int32{{1, 2}, {3, 4}}
	ctx := newSerialContext(reg.Snapshot(), 1) // only one composite level allowed
	var buf Buffer
	err := encodeCollection(ctx, &buf, outer, unsafe.Pointer(&src))
	require.ErrorIs(t, err, ErrDepthLimitExceeded)
}

func TestIdentifySameAddressReturnsSameID(t *testing.T) {
	ctx := newSerialContext(NewTypeRegistry().Snapshot(), 0)
	var x int32
	p := unsafe.Pointer(&x)

	id1, seen1 := ctx.identify(p)
	require.False(t, seen1)

	id2, seen2 := ctx.identify(p)
	require.True(t, seen2)
	require.Equal(t, id1, id2)
}

func TestEncodeDecodeCollectionOfInt32(t *testing.T) {
	reg := NewTypeRegistry()
	elemDesc := primitiveDescriptor(PrimInt32)
	desc := &TypeDescriptor{Kind: KindCollection, Elem: elemDesc, Name: "[]int32"}

	src := []int32{1, -2, 3, -4, 5}
	sh := (*sliceHeader)(unsafe.Pointer(&src))

	ctx := newSerialContext(reg.Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeCollection(ctx, &buf, desc, unsafe.Pointer(sh)))

	var dst []int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)))

	require.Equal(t, src, dst)
}

func TestEncodeDecodeFixedArrayOfInt32(t *testing.T) {
	reg := NewTypeRegistry()
	elemDesc := primitiveDescriptor(PrimInt32)
	desc := &TypeDescriptor{Kind: KindArray, Elem: elemDesc, ArrayLen: 3, Name: "[3]int32"}

	src := [3]int32{10, -20, 30}
	ctx := newSerialContext(reg.Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeCollection(ctx, &buf, desc, unsafe.Pointer(&src)))

	var dst [3]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)))

	require.Equal(t, src, dst)
}

func TestDecodeArrayRejectsLengthMismatch(t *testing.T) {
	reg := NewTypeRegistry()
	desc := &TypeDescriptor{Kind: KindArray, Elem: primitiveDescriptor(PrimInt32), ArrayLen: 3, Name: "[3]int32"}

	var buf Buffer
	buf.PutByte(byte(TagArray))
	buf.appendVarintBuf(idInt32)
	buf.appendVarintBuf(2) // declared length is 3

	var dst [3]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)), ErrTypeMismatch)
}

func TestDecodeListRejectsElementCountExceedingInput(t *testing.T) {
	reg := NewTypeRegistry()
	desc := &TypeDescriptor{Kind: KindCollection, Elem: primitiveDescriptor(PrimInt32), Name: "[]int32"}

	var buf Buffer
	buf.PutByte(byte(TagList))
	buf.appendVarintBuf(idInt32)
	buf.appendVarintBuf(1 << 40) // absurd element count, far beyond any remaining bytes

	var dst []int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)), ErrUnexpectedEnd)
}

func TestDecodeMapRejectsEntryCountExceedingInput(t *testing.T) {
	reg := NewTypeRegistry()
	var sample map[string]int32
	desc := &TypeDescriptor{
		Kind: KindMap, Key: primitiveDescriptor(PrimString), Value: primitiveDescriptor(PrimInt32),
		MapType: reflect.TypeOf(sample), Name: "map[string]int32",
	}

	var buf Buffer
	buf.PutByte(byte(TagMap))
	buf.appendVarintBuf(idString)
	buf.appendVarintBuf(idInt32)
	buf.appendVarintBuf(1 << 40)

	var dst map[string]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeMap(dctx, &c, desc, unsafe.Pointer(&dst)), ErrUnexpectedEnd)
}

func TestDecodeArrayRejectsMismatchedElementTypeID(t *testing.T) {
	reg := NewTypeRegistry()
	desc := &TypeDescriptor{Kind: KindArray, Elem: primitiveDescriptor(PrimInt32), ArrayLen: 1, Name: "[1]int32"}

	var buf Buffer
	buf.PutByte(byte(TagArray))
	buf.appendVarintBuf(idString) // declared element is int32, wire claims string
	buf.appendVarintBuf(1)

	var dst [1]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)), ErrTypeMismatch)
}

func TestDecodeListRejectsMismatchedElementTypeID(t *testing.T) {
	reg := NewTypeRegistry()
	desc := &TypeDescriptor{Kind: KindCollection, Elem: primitiveDescriptor(PrimInt32), Name: "[]int32"}

	var buf Buffer
	buf.PutByte(byte(TagList))
	buf.appendVarintBuf(idString) // declared element is int32, wire claims string
	buf.appendVarintBuf(0)

	var dst []int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)), ErrTypeMismatch)
}

func TestDecodeMapRejectsMismatchedKeyTypeID(t *testing.T) {
	reg := NewTypeRegistry()
	var sample map[string]int32
	desc := &TypeDescriptor{
		Kind: KindMap, Key: primitiveDescriptor(PrimString), Value: primitiveDescriptor(PrimInt32),
		MapType: reflect.TypeOf(sample), Name: "map[string]int32",
	}

	var buf Buffer
	buf.PutByte(byte(TagMap))
	buf.appendVarintBuf(idInt32) // declared key is string, wire claims int32
	buf.appendVarintBuf(idInt32)
	buf.appendVarintBuf(0)

	var dst map[string]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeMap(dctx, &c, desc, unsafe.Pointer(&dst)), ErrTypeMismatch)
}

func TestDecodeMapRejectsMismatchedValueTypeID(t *testing.T) {
	reg := NewTypeRegistry()
	var sample map[string]int32
	desc := &TypeDescriptor{
		Kind: KindMap, Key: primitiveDescriptor(PrimString), Value: primitiveDescriptor(PrimInt32),
		MapType: reflect.TypeOf(sample), Name: "map[string]int32",
	}

	var buf Buffer
	buf.PutByte(byte(TagMap))
	buf.appendVarintBuf(idString)
	buf.appendVarintBuf(idString) // declared value is int32, wire claims string
	buf.appendVarintBuf(0)

	var dst map[string]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeMap(dctx, &c, desc, unsafe.Pointer(&dst)), ErrTypeMismatch)
}

func TestEncodeMapProducesDeterministicByteOrderRegardlessOfInsertionOrder(t *testing.T) {
	reg := NewTypeRegistry()
	var sample map[string]int32
	desc := &TypeDescriptor{
		Kind: KindMap, Key: primitiveDescriptor(PrimString), Value: primitiveDescriptor(PrimInt32),
		MapType: reflect.TypeOf(sample), Name: "map[string]int32",
	}

	srcA := map[string]int32{"zebra": 1, "apple": 2, "mango": 3, "banana": 4}
	srcB := map[string]int32{}
	// Built via a different insertion order than srcA; Go's randomized
	// MapRange means the two maps' internal iteration orders need not
	// agree even when, as here, the insertion order is deliberately
	// reversed.
	for _, k := range []string{"banana", "mango", "apple", "zebra"} {
		srcB[k] = srcA[k]
	}

	encode := func(m map[string]int32) []byte {
		ctx := newSerialContext(reg.Snapshot(), 0)
		var buf Buffer
		require.NoError(t, encodeMap(ctx, &buf, desc, unsafe.Pointer(&m)))
		return buf.Snapshot()
	}

	require.Equal(t, encode(srcA), encode(srcB))
}

func TestEncodeDecodeNilSliceIsNull(t *testing.T) {
	reg := NewTypeRegistry()
	desc := &TypeDescriptor{Kind: KindCollection, Elem: primitiveDescriptor(PrimString), Name: "[]string"}

	var src []string
	ctx := newSerialContext(reg.Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeCollection(ctx, &buf, desc, unsafe.Pointer(&src)))
	require.Equal(t, []byte{byte(TagNull)}, buf.Snapshot())

	var dst []string
	dst = append(dst, "not nil") // starts non-nil so we can observe NULL resets it
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, decodeCollection(dctx, &c, desc, unsafe.Pointer(&dst)))
	require.Nil(t, dst)
}

func TestEncodeDecodeMapStringToInt32(t *testing.T) {
	reg := NewTypeRegistry()
	keyDesc := primitiveDescriptor(PrimString)
	valDesc := primitiveDescriptor(PrimInt32)

	var sample map[string]int32
	desc := &TypeDescriptor{Kind: KindMap, Key: keyDesc, Value: valDesc, MapType: reflect.TypeOf(sample), Name: "map[string]int32"}

	src := map[string]int32{"a": 1, "b": 2, "c": 3}
	ctx := newSerialContext(reg.Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeMap(ctx, &buf, desc, unsafe.Pointer(&src)))

	var dst map[string]int32
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, decodeMap(dctx, &c, desc, unsafe.Pointer(&dst)))

	require.Equal(t, src, dst)
}

func TestEncodeDecodeEnumRoundTrip(t *testing.T) {
	desc, err := BuildEnumDescriptor(reflect.TypeOf(int32(0)), 50, []string{"a", "b", "c"})
	require.NoError(t, err)

	var src int32 = 1
	ctx := newSerialContext(NewTypeRegistry().Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeEnum(ctx, &buf, desc, unsafe.Pointer(&src)))

	var dst int32
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, decodeEnum(dctx, &c, desc, unsafe.Pointer(&dst)))
	require.Equal(t, src, dst)
}

type narrowEnumHolder struct {
	Favorite narrowEnum
	Guard    uint8 // must survive encode/decode of Favorite untouched
}

type narrowEnum uint8

func TestEncodeDecodeNarrowEnumDoesNotClobberAdjacentField(t *testing.T) {
	desc, err := BuildEnumDescriptor(reflect.TypeOf(narrowEnum(0)), 52, []string{"a", "b", "c"})
	require.NoError(t, err)

	src := narrowEnumHolder{Favorite: 2, Guard: 0xAB}
	ctx := newSerialContext(NewTypeRegistry().Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeEnum(ctx, &buf, desc, unsafe.Pointer(&src.Favorite)))

	dst := narrowEnumHolder{Guard: 0xAB}
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, decodeEnum(dctx, &c, desc, unsafe.Pointer(&dst.Favorite)))

	require.Equal(t, src.Favorite, dst.Favorite)
	require.Equal(t, uint8(0xAB), dst.Guard, "decodeEnum must not write past its 1-byte declared storage")
}

func TestDecodeEnumRejectsOrdinalOverflowingStorageWidth(t *testing.T) {
	desc, err := BuildEnumDescriptor(reflect.TypeOf(narrowEnum(0)), 53, nil)
	require.NoError(t, err)

	var buf Buffer
	buf.PutByte(byte(TagEnum))
	buf.appendVarintBuf(53)
	buf.appendVarintBuf(1000) // overflows an 8-bit storage width

	var dst narrowEnum
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeEnum(dctx, &c, desc, unsafe.Pointer(&dst)), ErrRangeError)
}

func TestBuildEnumDescriptorRejectsNonIntegerUnderlyingType(t *testing.T) {
	_, err := BuildEnumDescriptor(reflect.TypeOf(""), 54, nil)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = BuildEnumDescriptor(reflect.TypeOf(float64(0)), 55, nil)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDecodeEnumRejectsMismatchedStableID(t *testing.T) {
	declared, err := BuildEnumDescriptor(reflect.TypeOf(int32(0)), 50, nil)
	require.NoError(t, err)
	onWire, err := BuildEnumDescriptor(reflect.TypeOf(int32(0)), 51, nil)
	require.NoError(t, err)

	var src int32 = 1
	ctx := newSerialContext(NewTypeRegistry().Snapshot(), 0)
	var buf Buffer
	require.NoError(t, encodeEnum(ctx, &buf, onWire, unsafe.Pointer(&src)))

	var dst int32
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.ErrorIs(t, decodeEnum(dctx, &c, declared, unsafe.Pointer(&dst)), ErrTypeMismatch)
}
