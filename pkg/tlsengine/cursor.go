package tlsengine

import (
	"errors"
)

// MaxBufferSize bounds the unconsumed bytes a Cursor will hold.
const MaxBufferSize = 16 * 1024 * 1024

// ErrBufferFull is returned when an append would exceed MaxBufferSize.
var ErrBufferFull = errors.New("cursor buffer full")

// Cursor is a growable byte buffer with a read head and a write tail.
// Bytes in [head, tail) are unconsumed.
type Cursor struct {
	buf  []byte
	head int
	tail int
}

// Len returns the number of unconsumed bytes.
func (c *Cursor) Len() int {
	return c.tail - c.head
}

// Cap returns the capacity of the backing array.
func (c *Cursor) Cap() int {
	return len(c.buf)
}

// Bytes returns the unconsumed bytes. The slice aliases the buffer and is
// valid until the next Append, Consume or Reset.
func (c *Cursor) Bytes() []byte {
	return c.buf[c.head:c.tail]
}

// Append copies p behind the unconsumed bytes.
//
// When the tail has no room, the unconsumed region is moved to the front if
// it occupies at most half the capacity and that frees enough space;
// otherwise the buffer grows to max(2*cap, len+n).
func (c *Cursor) Append(p []byte) error {
	n := len(p)
	if n == 0 {
		return nil
	}
	if c.Len()+n > MaxBufferSize {
		return ErrBufferFull
	}

	if c.tail+n > len(c.buf) {
		unread := c.Len()
		if unread <= len(c.buf)/2 && len(c.buf)-unread >= n {
			copy(c.buf, c.buf[c.head:c.tail])
		} else {
			size := max(2*len(c.buf), unread+n)
			grown := make([]byte, size)
			copy(grown, c.buf[c.head:c.tail])
			c.buf = grown
		}
		c.head = 0
		c.tail = unread
	}

	copy(c.buf[c.tail:], p)
	c.tail += n
	return nil
}

// Consume discards the first n unconsumed bytes.
func (c *Cursor) Consume(n int) {
	if n > c.Len() {
		n = c.Len()
	}
	c.head += n
	if c.head == c.tail {
		c.head = 0
		c.tail = 0
	}
}

// Read copies unconsumed bytes into p and consumes them.
func (c *Cursor) Read(p []byte) int {
	n := copy(p, c.buf[c.head:c.tail])
	c.Consume(n)
	return n
}

// Reset drops all bytes and releases the backing array.
func (c *Cursor) Reset() {
	c.buf = nil
	c.head = 0
	c.tail = 0
}
