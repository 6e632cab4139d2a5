package wireformat

import "io"

// ReadBlockIndexVarInt decodes the variable-length integer format used by
// the node's on-disk block-index store (CVarInt in Bitcoin Core's
// serialize.h). It is NOT CompactSize: each byte contributes seven bits,
// big-endian, with the high bit marking "more bytes follow" and a +1 carry
// added on every non-terminal byte. Confusing the two is a common source of
// bugs; they must never be used interchangeably.
func ReadBlockIndexVarInt(r io.ByteReader) (uint64, error) {
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, shortRead(-1)
		}
		if n > (1<<57)-1 {
			return 0, malformed(-1, "size too large")
		}
		n = (n << 7) | uint64(b&0x7f)
		if b&0x80 != 0 {
			if n == ^uint64(0) {
				return 0, malformed(-1, "size too large")
			}
			n++
		} else {
			return n, nil
		}
	}
}
