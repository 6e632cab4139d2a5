package wireformat

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const headerSize = 80

// Params carries the small set of chain parameters the wire codec needs to
// know about in order to decide whether a block header carries an AuxPoW
// extension. Real networks (e.g. merge-mined altcoins) signal this via a
// reserved high bit of the header version; mainnet Bitcoin never sets it,
// so AuxPowActivationVersion can be set above any real version to disable
// AuxPoW parsing entirely.
type Params struct {
	AuxPowActivationVersion int32
	AuxPowChainIDMask       int32
}

// DefaultParams parses an AuxPoW extension only for header versions at or
// above 1<<30, which is above the versions unmodified Bitcoin uses.
var DefaultParams = Params{
	AuxPowActivationVersion: 1 << 30,
	AuxPowChainIDMask:       0,
}

// Header is the 80-byte fixed block header.
type Header struct {
	Version    int32
	PrevHash   chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

func decodeHeader(c *cursor) (Header, error) {
	var h Header
	raw, err := c.readBytes(headerSize)
	if err != nil {
		return h, err
	}
	h.Version = int32(binary.LittleEndian.Uint32(raw[0:4]))
	copy(h.PrevHash[:], raw[4:36])
	copy(h.MerkleRoot[:], raw[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(raw[68:72])
	h.Bits = binary.LittleEndian.Uint32(raw[72:76])
	h.Nonce = binary.LittleEndian.Uint32(raw[76:80])
	return h, nil
}

// Bytes serializes the header to its canonical 80-byte wire form.
func (h Header) Bytes() []byte {
	out := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(h.Version))
	copy(out[4:36], h.PrevHash[:])
	copy(out[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(out[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(out[72:76], h.Bits)
	binary.LittleEndian.PutUint32(out[76:80], h.Nonce)
	return out
}

// Hash returns the double-SHA256 block identifier of the header.
func (h Header) Hash() chainhash.Hash {
	return DoubleSHA256(h.Bytes())
}

// MerkleBranch is a Merkle authentication path: a sequence of sibling
// hashes plus a bitmask telling, at each level, whether the sibling is the
// left or right child.
type MerkleBranch struct {
	Hashes   []chainhash.Hash
	SideMask uint32
}

func decodeMerkleBranch(c *cursor) (MerkleBranch, error) {
	var mb MerkleBranch
	n, err := c.readCompactSize()
	if err != nil {
		return mb, err
	}
	hashes := make([]chainhash.Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := c.readBytes(chainhash.HashSize)
		if err != nil {
			return mb, err
		}
		var h chainhash.Hash
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	mask, err := c.readU32LE()
	if err != nil {
		return mb, err
	}
	mb.Hashes = hashes
	mb.SideMask = mask
	return mb, nil
}

func (mb MerkleBranch) bytes() []byte {
	out := AppendCompactSize(nil, uint64(len(mb.Hashes)))
	for _, h := range mb.Hashes {
		out = append(out, h[:]...)
	}
	out = binary.LittleEndian.AppendUint32(out, mb.SideMask)
	return out
}

// AuxPow is the merged-mining proof-of-work extension appended to a block
// header when the header's version carries the AuxPoW activation bit. It
// proves the block was also mined as a coinbase output of a separate
// "parent" chain.
type AuxPow struct {
	CoinbaseTx       Tx
	ParentBlockHash  chainhash.Hash
	CoinbaseBranch   MerkleBranch
	BlockchainBranch MerkleBranch
	ParentHeader     Header
}

func decodeAuxPow(c *cursor) (AuxPow, error) {
	var ap AuxPow
	tx, err := decodeTx(c)
	if err != nil {
		return ap, err
	}
	ap.CoinbaseTx = tx
	raw, err := c.readBytes(chainhash.HashSize)
	if err != nil {
		return ap, err
	}
	copy(ap.ParentBlockHash[:], raw)
	cb, err := decodeMerkleBranch(c)
	if err != nil {
		return ap, err
	}
	ap.CoinbaseBranch = cb
	bb, err := decodeMerkleBranch(c)
	if err != nil {
		return ap, err
	}
	ap.BlockchainBranch = bb
	ph, err := decodeHeader(c)
	if err != nil {
		return ap, err
	}
	ap.ParentHeader = ph
	return ap, nil
}

func (ap AuxPow) bytes() []byte {
	out := ap.CoinbaseTx.Bytes()
	out = append(out, ap.ParentBlockHash[:]...)
	out = append(out, ap.CoinbaseBranch.bytes()...)
	out = append(out, ap.BlockchainBranch.bytes()...)
	out = append(out, ap.ParentHeader.Bytes()...)
	return out
}

// Block is a fully decoded block: header, optional AuxPoW extension, and
// its ordered sequence of transactions.
type Block struct {
	Size   uint32
	Header Header
	AuxPow *AuxPow
	Txs    []Tx
}

// DecodeBlock decodes a Block from b using params to decide whether an
// AuxPoW extension follows the header. Decoding never makes partial
// progress: on error the returned Block is the zero value.
func DecodeBlock(b []byte, params Params) (Block, error) {
	c := newCursor(b)
	var blk Block
	blk.Size = uint32(len(b))

	header, err := decodeHeader(c)
	if err != nil {
		return Block{}, err
	}
	blk.Header = header

	if hasAuxPow(header, params) {
		ap, err := decodeAuxPow(c)
		if err != nil {
			return Block{}, err
		}
		blk.AuxPow = &ap
	}

	txCount, err := c.readCompactSize()
	if err != nil {
		return Block{}, err
	}
	txs := make([]Tx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx, err := decodeTx(c)
		if err != nil {
			return Block{}, err
		}
		txs = append(txs, tx)
	}
	blk.Txs = txs
	return blk, nil
}

func hasAuxPow(h Header, params Params) bool {
	if params.AuxPowActivationVersion == 0 {
		return false
	}
	return h.Version >= params.AuxPowActivationVersion
}

// Bytes re-serializes the block to its canonical wire form. Used for
// round-trip property tests: DecodeBlock(Bytes()) must reproduce the
// original value byte-for-byte.
func (b Block) Bytes() []byte {
	out := append([]byte(nil), b.Header.Bytes()...)
	if b.AuxPow != nil {
		out = append(out, b.AuxPow.bytes()...)
	}
	out = AppendCompactSize(out, uint64(len(b.Txs)))
	for _, tx := range b.Txs {
		out = append(out, tx.Bytes()...)
	}
	return out
}
