package wirecodec

import "unsafe"

// encodeString writes s as STRING on first occurrence within this call, or
// STRING_REF on subsequent occurrences of the same content (spec.md §4.D,
// §4.F).
func encodeString(ctx *serialContext, buf *Buffer, s string) {
	id, isNew := ctx.internString(s)
	if !isNew {
		buf.PutByte(byte(TagStringRef))
		buf.appendVarintBuf(id)
		return
	}
	buf.PutByte(byte(TagString))
	buf.appendVarintBuf(uint64(len(s)))
	buf.PutBytes([]byte(s))
}

// encodeStringField writes the string found at ptr, as a full tagged wire
// value (STRING/STRING_REF). Go has no notion of a "null string"; NULL is
// never written here. Pointer-to-string fields are not supported:
// reflectbind.go rejects any pointer field whose pointee is not a struct.
func encodeStringField(ctx *serialContext, buf *Buffer, ptr unsafe.Pointer) {
	encodeString(ctx, buf, *(*string)(ptr))
}

// decodeString reads one STRING or STRING_REF wire value.
func decodeString(ctx *deserialContext, c *Cursor) (string, error) {
	tag, err := c.readTag()
	if err != nil {
		return "", err
	}
	switch tag {
	case TagString:
		n, err := readVarint(c)
		if err != nil {
			return "", err
		}
		// A claimed length past what's left in the input is always
		// malformed - reject it before it can overflow ReadBytes's own
		// bound check (c.position+n can wrap negative for a huge n) and
		// slice past the backing array (collection.go/mapcodec.go guard
		// their own attacker-controlled counts the same way).
		if n > uint64(c.Remaining()) {
			return "", ErrUnexpectedEnd
		}
		raw, err := c.ReadBytes(int(n))
		if err != nil {
			return "", err
		}
		s := string(raw)
		ctx.internString(s)
		return s, nil
	case TagStringRef:
		id, err := readVarint(c)
		if err != nil {
			return "", err
		}
		return ctx.lookupString(id)
	default:
		return "", ErrTypeMismatch
	}
}

func decodeStringField(ctx *deserialContext, c *Cursor, ptr unsafe.Pointer) error {
	s, err := decodeString(ctx, c)
	if err != nil {
		return err
	}
	*(*string)(ptr) = s
	return nil
}
