package wireformat

import (
	"bytes"
	"testing"
)

func TestAppendCompactSizeBoundaries(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0x00, []byte{0x00}},
		{0xfc, []byte{0xfc}},
		{0xfd, []byte{0xfd, 0xfd, 0x00}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
	}
	for _, c := range cases {
		got := AppendCompactSize(nil, c.n)
		if !bytes.Equal(got, c.want) {
			t.Errorf("AppendCompactSize(%d) = %x, want %x", c.n, got, c.want)
		}
		if len(got) != CompactSizeLen(c.n) {
			t.Errorf("CompactSizeLen(%d) = %d, want %d", c.n, CompactSizeLen(c.n), len(got))
		}
	}
}

func TestReadCompactSizeRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 0xfc, 0xfd, 0xfe, 0xffff, 0x10000, 1 << 40} {
		buf := AppendCompactSize(nil, n)
		c := newCursor(buf)
		got, err := c.readCompactSize()
		if err != nil {
			t.Fatalf("readCompactSize(%d): %v", n, err)
		}
		if got != n {
			t.Errorf("readCompactSize round trip = %d, want %d", got, n)
		}
		if c.remaining() != 0 {
			t.Errorf("readCompactSize(%d) left %d bytes unconsumed", n, c.remaining())
		}
	}
}

func TestReadCompactSizeShortRead(t *testing.T) {
	c := newCursor([]byte{0xfd, 0x01})
	if _, err := c.readCompactSize(); err == nil {
		t.Fatal("expected short read error")
	}
}
