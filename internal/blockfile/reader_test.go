package blockfile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ordlayer/ordindex/internal/wireformat"
)

func writeBlkFile(t *testing.T, dir string, idx int, magic [4]byte, payload []byte) int64 {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, blkFileName(idx))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(payload)))
	if _, err := f.Write(magic[:]); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(sizeBuf[:]); err != nil {
		t.Fatal(err)
	}
	dataOffset := int64(8)
	if _, err := f.Write(payload); err != nil {
		t.Fatal(err)
	}
	return dataOffset
}

func minimalBlockPayload() []byte {
	h := wireformat.Header{Timestamp: 1}
	out := h.Bytes()
	out = wireformat.AppendCompactSize(out, 0) // zero transactions
	return out
}

func TestStoreOpenReadClose(t *testing.T) {
	dir := t.TempDir()
	payload := minimalBlockPayload()
	offset := writeBlkFile(t, dir, 0, [4]byte{0xf9, 0xbe, 0xb4, 0xd9}, payload)

	s := NewStore(dir)
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Idempotent.
	if err := s.Open(0); err != nil {
		t.Fatalf("Open (idempotent): %v", err)
	}

	blk, err := s.ReadBlock(0, offset, wireformat.DefaultParams)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if len(blk.Txs) != 0 {
		t.Fatalf("expected 0 txs, got %d", len(blk.Txs))
	}

	if err := s.Close(0); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.ReadBlock(0, offset, wireformat.DefaultParams); err == nil {
		t.Fatal("expected error reading from a closed index")
	}
}

func TestStoreReadBlockNotOpen(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.ReadBlock(3, 8, wireformat.DefaultParams); err == nil {
		t.Fatal("expected error for unopened index")
	}
}
