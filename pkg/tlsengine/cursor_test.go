package tlsengine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorAppendConsume(t *testing.T) {
	var c Cursor

	require.NoError(t, c.Append([]byte("hello")))
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, "hello", string(c.Bytes()))

	c.Consume(2)
	assert.Equal(t, "llo", string(c.Bytes()))

	buf := make([]byte, 2)
	n := c.Read(buf)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ll", string(buf))
	assert.Equal(t, "o", string(c.Bytes()))

	c.Consume(10)
	assert.Zero(t, c.Len())
	assert.Zero(t, c.head)
	assert.Zero(t, c.tail)
}

func TestCursorCompactsSmallRemainder(t *testing.T) {
	var c Cursor
	require.NoError(t, c.Append(bytes.Repeat([]byte{'a'}, 16)))
	capBefore := c.Cap()

	// Leave 2 of 16 bytes unread, then append into the freed prefix.
	c.Consume(14)
	require.NoError(t, c.Append([]byte("bcdefg")))

	assert.Equal(t, capBefore, c.Cap(), "buffer should compact instead of growing")
	assert.Equal(t, "aabcdefg", string(c.Bytes()))
	assert.Zero(t, c.head)
}

func TestCursorGrowsLargeRemainder(t *testing.T) {
	var c Cursor
	require.NoError(t, c.Append(bytes.Repeat([]byte{'a'}, 16)))
	capBefore := c.Cap()

	// 12 of 16 unread is more than half; must grow.
	c.Consume(4)
	require.NoError(t, c.Append([]byte("bcd")))

	assert.Equal(t, 2*capBefore, c.Cap())
	assert.Equal(t, 15, c.Len())
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 12), c.Bytes()[:12])
	assert.Equal(t, "bcd", string(c.Bytes()[12:]))
}

func TestCursorGrowsToFit(t *testing.T) {
	var c Cursor
	require.NoError(t, c.Append([]byte("ab")))
	big := bytes.Repeat([]byte{'z'}, 100)
	require.NoError(t, c.Append(big))

	assert.Equal(t, 102, c.Cap())
	assert.Equal(t, 102, c.Len())
}

func TestCursorBoundsAfterMixedOps(t *testing.T) {
	var c Cursor
	for i := 1; i < 200; i++ {
		require.NoError(t, c.Append(bytes.Repeat([]byte{byte(i)}, i%17+1)))
		c.Consume(i % 11)
		if c.head < 0 || c.head > c.tail || c.tail > c.Cap() {
			t.Fatalf("step %d: head=%d tail=%d cap=%d", i, c.head, c.tail, c.Cap())
		}
	}
}

func TestCursorFull(t *testing.T) {
	var c Cursor
	err := c.Append(make([]byte, MaxBufferSize+1))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Zero(t, c.Len())
}

func TestCursorReset(t *testing.T) {
	var c Cursor
	require.NoError(t, c.Append([]byte("data")))
	c.Reset()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Cap())
}
