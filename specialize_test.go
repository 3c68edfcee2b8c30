package wirecodec

import (
	"sync"
	"testing"
	"unsafe"

	reflect "github.com/goccy/go-reflect"
	"github.com/stretchr/testify/require"
)

type specLeaf struct {
	Name string `wire:"name"`
}

type specOwner struct {
	Label string    `wire:"label"`
	Child *specLeaf `wire:"child"`
}

func registerSpecFixtures(t *testing.T) (*TypeRegistry, *TypeDescriptor, *TypeDescriptor) {
	t.Helper()
	reg := NewTypeRegistry()

	leafType := reflect.TypeOf(specLeaf{})
	leafDesc := newObjectSkeleton(leafType, 400)
	require.NoError(t, reg.Register(leafType, leafDesc))
	require.NoError(t, populateObjectFields(reg, leafDesc, leafType, BindOptions{}))

	ownerType := reflect.TypeOf(specOwner{})
	ownerDesc := newObjectSkeleton(ownerType, 401)
	require.NoError(t, reg.Register(ownerType, ownerDesc))
	require.NoError(t, populateObjectFields(reg, ownerDesc, ownerType, BindOptions{}))

	return reg, leafDesc, ownerDesc
}

func TestSpecializeProducesIdenticalWireBytesToGeneric(t *testing.T) {
	reg, _, ownerDesc := registerSpecFixtures(t)

	in := &specOwner{Label: "top", Child: &specLeaf{Name: "leaf"}}

	genCtx := newSerialContext(reg.Snapshot(), 0)
	var genBuf Buffer
	require.NoError(t, genericEncode(genCtx, &genBuf, ownerDesc, unsafe.Pointer(in)))

	s := NewSpecializer()
	codec, err := s.Specialize(ownerDesc)
	require.NoError(t, err)

	specCtx := newSerialContext(reg.Snapshot(), 0)
	var specBuf Buffer
	require.NoError(t, codec.encode(specCtx, &specBuf, unsafe.Pointer(in)))

	require.Equal(t, genBuf.Snapshot(), specBuf.Snapshot())
}

func TestSpecializeRoundTrip(t *testing.T) {
	reg, _, ownerDesc := registerSpecFixtures(t)

	s := NewSpecializer()
	codec, err := s.Specialize(ownerDesc)
	require.NoError(t, err)

	in := &specOwner{Label: "top", Child: &specLeaf{Name: "leaf"}}
	ctx := newSerialContext(reg.Snapshot(), 0)
	var buf Buffer
	require.NoError(t, codec.encode(ctx, &buf, unsafe.Pointer(in)))

	out := &specOwner{}
	dctx := newDeserialContext(reg.Snapshot(), 0)
	c := NewCursor(buf.Snapshot())
	require.NoError(t, codec.decode(dctx, &c, unsafe.Pointer(out)))

	require.Equal(t, in.Label, out.Label)
	require.NotNil(t, out.Child)
	require.Equal(t, in.Child.Name, out.Child.Name)
}

func TestSpecializeInstallsCodecOnDescriptorOnce(t *testing.T) {
	_, _, ownerDesc := registerSpecFixtures(t)
	require.Nil(t, ownerDesc.Codec.Load())

	s := NewSpecializer()
	first, err := s.Specialize(ownerDesc)
	require.NoError(t, err)
	require.NotNil(t, ownerDesc.Codec.Load())

	second, err := s.Specialize(ownerDesc)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestSpecializeConcurrentCallersShareOneBuild(t *testing.T) {
	_, _, ownerDesc := registerSpecFixtures(t)
	s := NewSpecializer()

	const n = 32
	results := make([]*compiledCodec, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			c, err := s.Specialize(ownerDesc)
			require.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestDecodeObjectBodyFieldsRejectsWireFieldCountMismatch(t *testing.T) {
	_, leafDesc, _ := registerSpecFixtures(t)

	// decodeObjectBodyFields is called after the OBJECT tag and stable id
	// have already been consumed, so the buffer here holds only the
	// wire field count.
	var buf Buffer
	buf.appendVarintBuf(99) // claims 99 fields, leafDesc only has 1

	dst := &specLeaf{}
	dctx := newDeserialContext(NewTypeRegistry().Snapshot(), 0)
	c := NewCursor(buf.Snapshot())

	fields := []fieldCodec{{name: "name", accessor: leafDesc.Fields[0].Accessor, typ: leafDesc.Fields[0].Type}}
	err := decodeObjectBodyFields(dctx, &c, leafDesc, fields, unsafe.Pointer(dst))
	require.ErrorIs(t, err, ErrTypeMismatch)
}
