package wirecodec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	wirecodec "github.com/hollowcore/wirecodec"
)

func TestPrinterWithoutRegistryWalksStructurally(t *testing.T) {
	registerFixtures(t)

	in := &Person{Name: "Ada", Age: 36, Tags: []string{"math"}}
	data, err := wirecodec.Encode(in)
	require.NoError(t, err)

	out, err := wirecodec.NewPrinter(nil).Sprint(data)
	require.NoError(t, err)

	require.Contains(t, out, `"Ada"`)
	require.Contains(t, out, "36")
	require.Contains(t, out, `"math"`)
	// field names aren't known without a registry
	require.Contains(t, out, "field0:")
}

func TestPrinterRejectsTrailingBytes(t *testing.T) {
	registerFixtures(t)

	in := &Person{Name: "X"}
	data, err := wirecodec.Encode(in)
	require.NoError(t, err)

	_, err = wirecodec.NewPrinter(nil).Sprint(append(data, 0xFF))
	require.Error(t, err)
}

func TestPrinterReportsNestedEnumAndNull(t *testing.T) {
	registerFixtures(t)

	in := &Person{Name: "Bare", Favorite: ColorGreen}
	data, err := wirecodec.Encode(in)
	require.NoError(t, err)

	out, err := wirecodec.NewPrinter(nil).Sprint(data)
	require.NoError(t, err)

	require.True(t, strings.Contains(out, "(1)"))
	require.True(t, strings.Contains(out, "null"))
}

func TestPrinterDepthLimitExceeded(t *testing.T) {
	registerFixtures(t)

	a := &Node{Value: 1}
	b := &Node{Value: 2}
	a.Next = b
	b.Next = a

	data, err := wirecodec.Encode(a)
	require.NoError(t, err)

	_, err = wirecodec.NewPrinterDepth(nil, 1).Sprint(data)
	require.ErrorIs(t, err, wirecodec.ErrDepthLimitExceeded)
}
