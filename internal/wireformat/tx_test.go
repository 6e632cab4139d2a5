package wireformat

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func sampleTx(segwit bool) Tx {
	tx := Tx{
		Version: 2,
		Inputs: []TxInput{
			{
				PrevOut:   OutPoint{Hash: chainhash.Hash{1, 2, 3}, Index: 0},
				ScriptSig: []byte{0x51},
				Sequence:  0xffffffff,
			},
		},
		Outputs: []TxOutput{
			{Value: 5000, PkScript: []byte{0x00, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}},
		},
		Locktime: 0,
	}
	if segwit {
		tx.SegWit = true
		tx.Flag = 0x01
		tx.Inputs[0].Witness = [][]byte{{0xde, 0xad}, {0xbe, 0xef}}
	}
	return tx
}

func TestTxRoundTrip(t *testing.T) {
	for _, segwit := range []bool{false, true} {
		tx := sampleTx(segwit)
		raw := tx.Bytes()
		c := newCursor(raw)
		got, err := decodeTx(c)
		if err != nil {
			t.Fatalf("decodeTx: %v", err)
		}
		if c.remaining() != 0 {
			t.Fatalf("decodeTx left %d bytes unconsumed", c.remaining())
		}
		if !bytes.Equal(got.Bytes(), raw) {
			t.Fatalf("round trip mismatch: got %x, want %x", got.Bytes(), raw)
		}
	}
}

func TestTxIDExcludesWitness(t *testing.T) {
	plain := sampleTx(false)
	witness := sampleTx(true)
	if plain.TxID() != witness.TxID() {
		t.Fatalf("txid must not depend on witness data: %x != %x", plain.TxID(), witness.TxID())
	}
}

func TestTxNonStandardFlagTolerated(t *testing.T) {
	tx := sampleTx(true)
	tx.Flag = 0x03 // bit 0 set, extra bits tolerated
	raw := tx.Bytes()
	c := newCursor(raw)
	got, err := decodeTx(c)
	if err != nil {
		t.Fatalf("decodeTx: %v", err)
	}
	if got.Flag != 0x03 {
		t.Fatalf("flag byte not preserved: got %x", got.Flag)
	}
	if len(got.Inputs[0].Witness) != 2 {
		t.Fatalf("expected witness to be parsed when bit0 set, got %v", got.Inputs[0].Witness)
	}
}

func TestTxFlagWithoutBit0SkipsWitness(t *testing.T) {
	tx := sampleTx(false)
	tx.SegWit = true
	tx.Flag = 0x02 // marker present, bit0 clear: no witness section at all
	raw := tx.Bytes()
	c := newCursor(raw)
	got, err := decodeTx(c)
	if err != nil {
		t.Fatalf("decodeTx: %v", err)
	}
	if c.remaining() != 0 {
		t.Fatalf("decodeTx left %d bytes unconsumed", c.remaining())
	}
	if got.Inputs[0].Witness != nil {
		t.Fatalf("expected no witness data, got %v", got.Inputs[0].Witness)
	}
}

func TestOutPointIsNull(t *testing.T) {
	null := OutPoint{Index: 0xffffffff}
	if !null.IsNull() {
		t.Fatal("expected coinbase outpoint to be null")
	}
	notNull := OutPoint{Hash: chainhash.Hash{1}, Index: 0xffffffff}
	if notNull.IsNull() {
		t.Fatal("expected non-zero hash outpoint to not be null")
	}
}
