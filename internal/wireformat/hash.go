package wireformat

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// DoubleSHA256 returns SHA-256(SHA-256(b)), the identifier hash used for
// block headers and transactions throughout the wire format.
func DoubleSHA256(b []byte) chainhash.Hash {
	return chainhash.DoubleHashH(b)
}
