// Package envelope extracts ordinal inscription envelopes from taproot
// witness scripts: OP_FALSE OP_IF "ord" [tag value]* OP_0 bytes... OP_ENDIF.
package envelope

// Inscription is the payload recovered from one envelope.
type Inscription struct {
	Body        []byte
	ContentType []byte
}

// TransactionInscription locates an Inscription inside a transaction: which
// input carried it, and its position among the envelopes found in that
// input's witness script.
type TransactionInscription struct {
	Inscription Inscription
	TxInIndex   int
	Offset      int
}
