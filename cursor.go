package wirecodec

// Cursor is a bounded, primarily-sequential byte source with position
// tracking (spec.md §4.B). Reads past the end fail with ErrUnexpectedEnd
// rather than panicking, unlike the teacher's Reader, because decode-time
// input is attacker/peer controlled and must degrade to a typed error
// instead of a runtime panic.
type Cursor struct {
	bytes    []byte
	position int
}

// NewCursor wraps b for sequential reading from position 0.
func NewCursor(b []byte) Cursor {
	return Cursor{bytes: b}
}

// Position reports the current read offset.
func (c *Cursor) Position() int { return c.position }

// Remaining reports how many unread bytes are left.
func (c *Cursor) Remaining() int { return len(c.bytes) - c.position }

// Seek jumps to an absolute offset. Callers seek explicitly; the cursor is
// sequential otherwise.
func (c *Cursor) Seek(pos int) { c.position = pos }

// ReadByte consumes and returns the next byte.
func (c *Cursor) ReadByte() (byte, error) {
	if c.position >= len(c.bytes) {
		return 0, ErrUnexpectedEnd
	}
	b := c.bytes[c.position]
	c.position++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (c *Cursor) PeekByte() (byte, error) {
	if c.position >= len(c.bytes) {
		return 0, ErrUnexpectedEnd
	}
	return c.bytes[c.position], nil
}

// ReadBytes consumes and returns the next n bytes. The returned slice
// aliases the cursor's backing array; callers that need to retain it past
// the decode call must copy it.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.position+n > len(c.bytes) {
		return nil, ErrUnexpectedEnd
	}
	b := c.bytes[c.position : c.position+n]
	c.position += n
	return b, nil
}

// readTag reads the next byte as a wire Tag.
func (c *Cursor) readTag() (Tag, error) {
	b, err := c.ReadByte()
	return Tag(b), err
}
