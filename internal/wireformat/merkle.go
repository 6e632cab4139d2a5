package wireformat

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// ComputeMerkleRoot computes the Bitcoin-style merkle root over an ordered
// list of transaction ids: pairs are double-SHA256'd together bottom-up,
// and an odd trailing hash at any level is paired with itself.
func ComputeMerkleRoot(txids []chainhash.Hash) chainhash.Hash {
	if len(txids) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(txids))
	copy(level, txids)
	for len(level) > 1 {
		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			var buf [chainhash.HashSize * 2]byte
			copy(buf[:chainhash.HashSize], left[:])
			copy(buf[chainhash.HashSize:], right[:])
			next = append(next, DoubleSHA256(buf[:]))
		}
		level = next
	}
	return level[0]
}
