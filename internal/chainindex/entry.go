package chainindex

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/ordlayer/ordindex/internal/wireformat"
)

// Block status bits, as stored alongside each block-index record. Only the
// two bits this indexer cares about are named; the rest of the node's
// status byte is opaque to us.
const (
	blockValidChain uint64 = 1 << 2 // 4
	blockHaveData   uint64 = 1 << 3 // 8
)

// IndexEntry is one row of the external block-index store, decoded and
// filtered to blocks whose status has the valid-chain bit or the have-data
// bit set (either one is enough).
type IndexEntry struct {
	BlockHash    chainhash.Hash
	Version      uint64
	Height       int64
	Status       uint64
	TxCount      uint64
	BlkFileIndex int
	DataOffset   int64
}

func (e IndexEntry) wantKept() bool {
	return e.Status&(blockValidChain|blockHaveData) != 0
}

// decodeIndexEntry decodes one block-record row: a 32-byte hash key suffix
// plus a value of six "Bitcoin varint" fields in fixed order.
func decodeIndexEntry(hashSuffix []byte, value []byte) (IndexEntry, error) {
	var e IndexEntry
	if len(hashSuffix) != chainhash.HashSize {
		return e, decodeFailed("block-record key has wrong hash length", nil)
	}
	copy(e.BlockHash[:], hashSuffix)

	r := bytes.NewReader(value)
	fields := make([]uint64, 6)
	for i := range fields {
		v, err := wireformat.ReadBlockIndexVarInt(r)
		if err != nil {
			return e, decodeFailed("block-record value truncated", err)
		}
		fields[i] = v
	}
	e.Version = fields[0]
	e.Height = int64(fields[1])
	e.Status = fields[2]
	e.TxCount = fields[3]
	e.BlkFileIndex = int(fields[4])
	e.DataOffset = int64(fields[5])
	return e, nil
}
