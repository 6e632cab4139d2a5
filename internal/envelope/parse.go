package envelope

import (
	"bytes"

	"github.com/ordlayer/ordindex/internal/wireformat"
)

var ordTag = []byte("ord")

// contentTypeTag is the single recognized non-body field tag; every other
// non-empty tag falls through to the even/odd soft-fork rule.
var contentTypeTag = []byte{0x01}

// selectWitnessScript applies the taproot script-path rules to a single
// input's witness stack and returns the script to scan for envelopes, if
// any.
func selectWitnessScript(witness [][]byte) ([]byte, bool) {
	if len(witness) == 0 {
		return nil, false // no witness at all.
	}
	if len(witness) == 1 {
		return nil, false // key-path spend.
	}
	last := witness[len(witness)-1]
	hasAnnex := len(last) > 0 && last[0] == 0x50
	if hasAnnex && len(witness) == 2 {
		return nil, false // annex with no script element.
	}
	if hasAnnex {
		return witness[len(witness)-1], true
	}
	return witness[len(witness)-2], true
}

// ParseTransactionInscriptions walks every input of tx, selects its witness
// script per the taproot rules, and scans it for inscription envelopes in
// order.
func ParseTransactionInscriptions(tx wireformat.Tx) []TransactionInscription {
	var out []TransactionInscription
	for i, in := range tx.Inputs {
		script, ok := selectWitnessScript(in.Witness)
		if !ok {
			continue
		}
		toks := tokenize(script)
		offset := 0
		pos := 0
		for pos < len(toks) {
			insc, next, err := scanEnvelopeFrom(toks, pos)
			pos = next
			if err == ErrNoInscription {
				break
			}
			if err != nil {
				continue // envelope found but invalid (duplicate or unrecognized even tag); keep scanning past it.
			}
			out = append(out, TransactionInscription{
				Inscription: *insc,
				TxInIndex:   i,
				Offset:      offset,
			})
			offset++
		}
	}
	return out
}

// scanEnvelopeFrom searches toks[pos:] for the next OP_FALSE OP_IF "ord"
// envelope start. err is ErrNoInscription if no further start pattern
// exists, ErrDuplicateTag/ErrUnrecognizedEvenField if a start pattern was
// found but the envelope itself is invalid (insc is nil in that case, but
// next still advances past it so scanning can resume), or nil on success.
func scanEnvelopeFrom(toks []token, pos int) (insc *Inscription, next int, err error) {
	for i := pos; i+2 < len(toks); i++ {
		if toks[i].opcode != opFalse {
			continue
		}
		if toks[i+1].opcode != opIf {
			continue
		}
		if !bytes.Equal(toks[i+2].data, ordTag) {
			continue
		}
		return parseEnvelopeFields(toks, i+3)
	}
	return nil, len(toks), ErrNoInscription
}

// parseEnvelopeFields consumes tag/value pairs starting at toks[start]
// until the body tag, OP_ENDIF, or the end of the token stream.
func parseEnvelopeFields(toks []token, start int) (*Inscription, int, error) {
	seen := make(map[string][]byte)
	var fieldErr error

	i := start
	for i < len(toks) {
		if toks[i].opcode == opEndif {
			return buildInscription(seen, fieldErr, nil), i + 1, fieldErr
		}
		tag := toks[i].data
		if len(tag) == 0 {
			// Body tag: everything up to OP_ENDIF is body data.
			var body []byte
			j := i + 1
			for j < len(toks) && toks[j].opcode != opEndif {
				body = append(body, toks[j].data...)
				j++
			}
			end := len(toks)
			if j < len(toks) {
				end = j + 1
			}
			return buildInscription(seen, fieldErr, body), end, fieldErr
		}
		if i+1 >= len(toks) {
			// Tag without a paired value: malformed, no envelope emitted.
			return nil, len(toks), ErrNoInscription
		}
		value := toks[i+1].data
		key := string(tag)
		if _, dup := seen[key]; dup {
			fieldErr = ErrDuplicateTag
		} else {
			seen[key] = value
		}
		if fieldErr == nil && !bytes.Equal(tag, contentTypeTag) && tag[0]%2 == 0 {
			fieldErr = ErrUnrecognizedEvenField
		}
		i += 2
	}
	// Ran out of tokens without an OP_ENDIF: no envelope.
	return nil, len(toks), ErrNoInscription
}

func buildInscription(fields map[string][]byte, fieldErr error, body []byte) *Inscription {
	if fieldErr != nil {
		return nil
	}
	insc := &Inscription{Body: body}
	if ct, ok := fields[string(contentTypeTag)]; ok {
		insc.ContentType = ct
	}
	return insc
}
