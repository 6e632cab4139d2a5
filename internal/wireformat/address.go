package wireformat

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ExtractAddress parses a script_pubkey into the single encoded address it
// pays to, if any. Multisig, bare OP_RETURN, and otherwise non-standard
// scripts have no single address and return ok=false, matching the data
// model's "optional address" field on TxOutput.
func ExtractAddress(pkScript []byte, params *chaincfg.Params) (string, bool) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil || len(addrs) != 1 {
		return "", false
	}
	return addrs[0].EncodeAddress(), true
}
