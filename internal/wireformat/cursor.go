package wireformat

import "encoding/binary"

// cursor is a read-only view over a byte slice with an advancing offset.
// It never returns a partially read value: every read* helper either
// advances off past the full field or returns an error and leaves off
// pointing at the position where the failure was detected.
type cursor struct {
	b   []byte
	off int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) remaining() int {
	return len(c.b) - c.off
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, shortRead(c.off)
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out, nil
}

func (c *cursor) readU8() (uint8, error) {
	b, err := c.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU16LE() (uint16, error) {
	b, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readCompactSize decodes Bitcoin's CompactSize ("varuint") discriminator:
// values below 0xfd are inline; 0xfd/0xfe/0xff introduce a 2/4/8-byte
// little-endian payload.
func (c *cursor) readCompactSize() (uint64, error) {
	disc, err := c.readU8()
	if err != nil {
		return 0, err
	}
	switch disc {
	case 0xfd:
		v, err := c.readU16LE()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfe:
		v, err := c.readU32LE()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xff:
		v, err := c.readU64LE()
		if err != nil {
			return 0, err
		}
		return v, nil
	default:
		return uint64(disc), nil
	}
}

// AppendCompactSize encodes n as CompactSize and appends it to dst.
func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return binary.LittleEndian.AppendUint16(dst, uint16(n))
	case n <= 0xffffffff:
		dst = append(dst, 0xfe)
		return binary.LittleEndian.AppendUint32(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return binary.LittleEndian.AppendUint64(dst, n)
	}
}

// CompactSizeLen returns the number of bytes AppendCompactSize would write.
func CompactSizeLen(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
