package wirecodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1, ^uint64(0)}

	for _, v := range values {
		dst := appendVarint(nil, v)
		c := NewCursor(dst)
		got, err := readVarint(&c)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(dst), c.Position())
	}
}

func TestVarintSmallValuesFitInOneByte(t *testing.T) {
	for v := uint64(0); v < 0x80; v++ {
		require.Len(t, appendVarint(nil, v), 1)
	}
	require.Len(t, appendVarint(nil, 0x80), 2)
}

func TestVarintOverflowOnTenthByteWithExtraBits(t *testing.T) {
	// nine continuation bytes, then a tenth byte that sets a bit beyond the
	// single remaining data bit a 64-bit value can carry.
	raw := make([]byte, 0, 10)
	for i := 0; i < 9; i++ {
		raw = append(raw, 0xFF)
	}
	raw = append(raw, 0x02)
	c := NewCursor(raw)
	_, err := readVarint(&c)
	require.ErrorIs(t, err, ErrVarintOverflow)
}

func TestVarintTruncatedInputIsUnexpectedEnd(t *testing.T) {
	raw := []byte{0x80} // continuation bit set, no following byte
	c := NewCursor(raw)
	_, err := readVarint(&c)
	require.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestZigzagRoundTrip(t *testing.T) {
	values := []int64{0, -1, 1, -2, 2, 1<<62 - 1, -(1 << 62)}
	for _, v := range values {
		dst := appendZigzagVarint(nil, v)
		c := NewCursor(dst)
		got, err := readZigzagVarint(&c)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestZigzagSmallNegativesStaySmall(t *testing.T) {
	require.Len(t, appendZigzagVarint(nil, -1), 1)
	require.Len(t, appendZigzagVarint(nil, 1), 1)
	require.Equal(t, uint64(1), zigzagEncode(-1))
	require.Equal(t, uint64(2), zigzagEncode(1))
}
