package wireformat

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutPoint identifies a previously created output by its creating
// transaction hash and output index.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// IsNull reports whether the outpoint is the coinbase sentinel: a
// null (all-zero) hash and index 0xFFFFFFFF.
func (o OutPoint) IsNull() bool {
	return o.Hash == chainhash.Hash{} && o.Index == 0xffffffff
}

// TxInput is one spend within a transaction.
type TxInput struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
	// Witness is nil unless the enclosing Tx carries a witness section
	// with bit 0 of Flag set; it is never nil-vs-empty-ambiguous for a
	// witness-bearing tx — an input with no witness data still gets an
	// (empty) stack.
	Witness [][]byte
}

// TxOutput is one newly created output.
type TxOutput struct {
	Value    uint64
	PkScript []byte
}

// Tx is a fully decoded transaction, including the raw SegWit marker/flag
// byte so an un-normalized wire form (e.g. a nonstandard flag value) still
// round-trips byte-for-byte.
type Tx struct {
	Version  uint32
	SegWit   bool
	Flag     byte
	Inputs   []TxInput
	Outputs  []TxOutput
	Locktime uint32
}

func decodeTx(c *cursor) (Tx, error) {
	var tx Tx

	version, err := c.readU32LE()
	if err != nil {
		return Tx{}, err
	}
	tx.Version = version

	inCount, err := c.readCompactSize()
	if err != nil {
		return Tx{}, err
	}
	if inCount == 0 {
		flag, err := c.readU8()
		if err != nil {
			return Tx{}, err
		}
		tx.SegWit = true
		tx.Flag = flag
		inCount, err = c.readCompactSize()
		if err != nil {
			return Tx{}, err
		}
	}

	inputs := make([]TxInput, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		in, err := decodeTxInput(c)
		if err != nil {
			return Tx{}, err
		}
		inputs = append(inputs, in)
	}
	tx.Inputs = inputs

	outCount, err := c.readCompactSize()
	if err != nil {
		return Tx{}, err
	}
	outputs := make([]TxOutput, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		out, err := decodeTxOutput(c)
		if err != nil {
			return Tx{}, err
		}
		outputs = append(outputs, out)
	}
	tx.Outputs = outputs

	// Witness section: present only when the marker/flag pair was read and
	// bit 0 of the flag is set. A nonstandard flag (tolerated per the wire
	// format's documented leniency) with bit 0 clear carries no witness
	// data at all, even though the marker/flag bytes were consumed.
	if tx.SegWit && tx.Flag&1 != 0 {
		for i := range tx.Inputs {
			stackCount, err := c.readCompactSize()
			if err != nil {
				return Tx{}, err
			}
			stack := make([][]byte, 0, stackCount)
			for j := uint64(0); j < stackCount; j++ {
				item, err := decodeWitnessItem(c)
				if err != nil {
					return Tx{}, err
				}
				stack = append(stack, item)
			}
			tx.Inputs[i].Witness = stack
		}
	}

	locktime, err := c.readU32LE()
	if err != nil {
		return Tx{}, err
	}
	tx.Locktime = locktime

	return tx, nil
}

func decodeTxInput(c *cursor) (TxInput, error) {
	var in TxInput
	hashBytes, err := c.readBytes(chainhash.HashSize)
	if err != nil {
		return in, err
	}
	copy(in.PrevOut.Hash[:], hashBytes)
	index, err := c.readU32LE()
	if err != nil {
		return in, err
	}
	in.PrevOut.Index = index

	scriptLen, err := c.readCompactSize()
	if err != nil {
		return in, err
	}
	if scriptLen > uint64(c.remaining()) {
		return in, tooLarge(c.off, "script_sig length exceeds remaining input")
	}
	script, err := c.readBytes(int(scriptLen))
	if err != nil {
		return in, err
	}
	in.ScriptSig = append([]byte(nil), script...)

	seq, err := c.readU32LE()
	if err != nil {
		return in, err
	}
	in.Sequence = seq
	return in, nil
}

func decodeTxOutput(c *cursor) (TxOutput, error) {
	var out TxOutput
	value, err := c.readU64LE()
	if err != nil {
		return out, err
	}
	out.Value = value

	scriptLen, err := c.readCompactSize()
	if err != nil {
		return out, err
	}
	if scriptLen > uint64(c.remaining()) {
		return out, tooLarge(c.off, "script_pubkey length exceeds remaining input")
	}
	script, err := c.readBytes(int(scriptLen))
	if err != nil {
		return out, err
	}
	out.PkScript = append([]byte(nil), script...)
	return out, nil
}

func decodeWitnessItem(c *cursor) ([]byte, error) {
	itemLen, err := c.readCompactSize()
	if err != nil {
		return nil, err
	}
	if itemLen > uint64(c.remaining()) {
		return nil, tooLarge(c.off, "witness item length exceeds remaining input")
	}
	item, err := c.readBytes(int(itemLen))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), item...), nil
}

// Bytes serializes the transaction to its canonical wire form, including
// the witness section when present.
func (tx Tx) Bytes() []byte {
	out := binary.LittleEndian.AppendUint32(nil, tx.Version)
	if tx.SegWit {
		out = append(out, 0x00, tx.Flag)
	}
	out = AppendCompactSize(out, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = appendTxInputCore(out, in)
	}
	out = AppendCompactSize(out, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = appendTxOutput(out, o)
	}
	if tx.SegWit && tx.Flag&1 != 0 {
		for _, in := range tx.Inputs {
			out = AppendCompactSize(out, uint64(len(in.Witness)))
			for _, item := range in.Witness {
				out = AppendCompactSize(out, uint64(len(item)))
				out = append(out, item...)
			}
		}
	}
	out = binary.LittleEndian.AppendUint32(out, tx.Locktime)
	return out
}

// CoreBytes serializes the transaction without any witness data — the form
// whose double-SHA256 is the txid.
func (tx Tx) CoreBytes() []byte {
	out := binary.LittleEndian.AppendUint32(nil, tx.Version)
	out = AppendCompactSize(out, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = appendTxInputCore(out, in)
	}
	out = AppendCompactSize(out, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = appendTxOutput(out, o)
	}
	out = binary.LittleEndian.AppendUint32(out, tx.Locktime)
	return out
}

func appendTxInputCore(dst []byte, in TxInput) []byte {
	dst = append(dst, in.PrevOut.Hash[:]...)
	dst = binary.LittleEndian.AppendUint32(dst, in.PrevOut.Index)
	dst = AppendCompactSize(dst, uint64(len(in.ScriptSig)))
	dst = append(dst, in.ScriptSig...)
	dst = binary.LittleEndian.AppendUint32(dst, in.Sequence)
	return dst
}

func appendTxOutput(dst []byte, o TxOutput) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, o.Value)
	dst = AppendCompactSize(dst, uint64(len(o.PkScript)))
	dst = append(dst, o.PkScript...)
	return dst
}

// TxID returns the double-SHA256 of the transaction's non-witness
// serialization.
func (tx Tx) TxID() chainhash.Hash {
	return DoubleSHA256(tx.CoreBytes())
}
