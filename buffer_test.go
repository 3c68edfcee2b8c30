package wirecodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPutByteAndSnapshot(t *testing.T) {
	var b Buffer
	for i := 0; i < 10; i++ {
		b.PutByte(byte(i))
	}
	require.Equal(t, 10, b.Length())
	require.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, b.Snapshot())
}

func TestBufferSpansMultipleChunks(t *testing.T) {
	var b Buffer
	src := make([]byte, defaultChunkSize*3+17)
	for i := range src {
		src[i] = byte(i)
	}
	b.PutBytes(src)

	require.Equal(t, len(src), b.Length())
	require.Equal(t, src, b.Snapshot())
}

func TestBufferPutBytesRange(t *testing.T) {
	var b Buffer
	b.PutBytesRange([]byte("hello world"), 6, 5)
	require.Equal(t, "world", string(b.Snapshot()))
}

func TestBufferReset(t *testing.T) {
	var b Buffer
	b.PutBytes([]byte("abc"))
	b.Reset()
	require.Equal(t, 0, b.Length())
	require.Nil(t, b.Snapshot())

	b.PutBytes([]byte("xyz"))
	require.Equal(t, "xyz", string(b.Snapshot()))
}

func TestBufferPoolRoundTrip(t *testing.T) {
	b := NewBufferFromPool()
	b.PutBytes([]byte("pooled"))
	require.Equal(t, "pooled", string(b.Snapshot()))
	b.ReturnToPool()

	b2 := NewBufferFromPool()
	require.Equal(t, 0, b2.Length())
}

func TestBufferAppendVarintMatchesStandaloneHelper(t *testing.T) {
	var b Buffer
	b.appendVarintBuf(300)
	require.Equal(t, appendVarint(nil, 300), b.Snapshot())
}

func TestBufferAppendZigzagMatchesStandaloneHelper(t *testing.T) {
	var b Buffer
	b.appendZigzagBuf(-42)
	require.Equal(t, appendZigzagVarint(nil, -42), b.Snapshot())
}

func TestCursorReadByteAndPeek(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	peeked, err := c.PeekByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), peeked)

	b, err := c.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), b)
	require.Equal(t, 1, c.Position())
	require.Equal(t, 2, c.Remaining())
}

func TestCursorReadBytesAliasesBacking(t *testing.T) {
	raw := []byte{10, 20, 30, 40}
	c := NewCursor(raw)
	got, err := c.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{10, 20}, got)
	require.Equal(t, 2, c.Position())

	raw[0] = 99
	require.Equal(t, byte(99), got[0])
}

func TestCursorReadPastEndFailsCleanly(t *testing.T) {
	c := NewCursor([]byte{1})
	_, err := c.ReadByte()
	require.NoError(t, err)
	_, err = c.ReadByte()
	require.ErrorIs(t, err, ErrUnexpectedEnd)

	c2 := NewCursor([]byte{1, 2})
	_, err = c2.ReadBytes(5)
	require.ErrorIs(t, err, ErrUnexpectedEnd)
}

func TestCursorSeek(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4})
	c.Seek(2)
	b, err := c.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(3), b)
}
