package envelope

import "github.com/btcsuite/btcd/txscript"

type token struct {
	opcode byte
	data   []byte
}

// tokenize walks script with the btcsuite opcode tokenizer and materializes
// it into a slice so envelope scanning can look ahead/behind freely. A
// malformed script (e.g. a truncated data push) yields no tokens rather
// than an error: witness scripts are attacker-controlled and a script that
// doesn't parse simply carries no inscriptions. OP_1..OP_16 carry the
// one-byte value they push, so a tag written as OP_1 reads as [0x01].
func tokenize(script []byte) []token {
	t := txscript.MakeScriptTokenizer(0, script)
	var toks []token
	for t.Next() {
		op, data := t.Opcode(), t.Data()
		if op >= txscript.OP_1 && op <= txscript.OP_16 {
			data = []byte{op - txscript.OP_1 + 1}
		}
		toks = append(toks, token{opcode: op, data: data})
	}
	if t.Err() != nil {
		return toks
	}
	return toks
}

const (
	opFalse = txscript.OP_FALSE
	opIf    = txscript.OP_IF
	opEndif = txscript.OP_ENDIF
)
