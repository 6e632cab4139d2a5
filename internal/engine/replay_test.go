package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/ordlayer/ordindex/internal/wireformat"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	e, err := New(store, nil, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func coinbaseTx(outputs ...wireformat.TxOutput) wireformat.Tx {
	return wireformat.Tx{
		Version: 1,
		Inputs: []wireformat.TxInput{{
			PrevOut:   wireformat.OutPoint{Index: 0xffffffff},
			ScriptSig: []byte{0x51},
			Sequence:  0xffffffff,
		}},
		Outputs: outputs,
	}
}

// envelopeScript builds the minimal inscription envelope
// OP_FALSE OP_IF "ord" OP_0 <body> OP_ENDIF with no extra fields.
func envelopeScript(body []byte) []byte {
	script := []byte{0x00, 0x63, 0x03, 'o', 'r', 'd', 0x00}
	script = append(script, byte(len(body)))
	script = append(script, body...)
	script = append(script, 0x68)
	return script
}

func TestIndexBlockInscribesAndCarriesFlotsam(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const subsidy0 = 50 * CoinValue
	block0 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 1000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: subsidy0, PkScript: []byte{0x6a}})},
	}
	if err := e.IndexBlock(ctx, 0, 1000, block0); err != nil {
		t.Fatalf("IndexBlock(0): %v", err)
	}

	genesisTxid := block0.Txs[0].TxID()

	var inscribed []InscribeEntry
	var transferred []TransferEntry
	e.RegisterInscribeHandler(func(ev InscribeEntry) { inscribed = append(inscribed, ev) })
	e.RegisterTransferHandler(func(ev TransferEntry) { transferred = append(transferred, ev) })

	spendTx := wireformat.Tx{
		Version: 2,
		Inputs: []wireformat.TxInput{{
			PrevOut:  wireformat.OutPoint{Hash: genesisTxid, Index: 0},
			Sequence: 0xffffffff,
			Witness:  [][]byte{envelopeScript([]byte("hello")), {0x01}},
		}},
		Outputs: []wireformat.TxOutput{
			{Value: 1000, PkScript: []byte{0x6a}},
			{Value: subsidy0 - 2000, PkScript: []byte{0x6a}},
		},
	}
	coinbase1 := coinbaseTx(wireformat.TxOutput{Value: SubsidyAt(1), PkScript: []byte{0x6a}})
	block1 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 2000},
		Txs:    []wireformat.Tx{coinbase1, spendTx},
	}
	if err := e.IndexBlock(ctx, 1, 2000, block1); err != nil {
		t.Fatalf("IndexBlock(1): %v", err)
	}

	if len(inscribed) != 1 {
		t.Fatalf("inscribed = %d entries, want 1: %+v", len(inscribed), inscribed)
	}
	ins := inscribed[0]
	if ins.ID != 0 {
		t.Errorf("inscription ID = %d, want 0 (first blessed)", ins.ID)
	}
	if string(ins.Inscription.Body) != "hello" {
		t.Errorf("inscription body = %q, want %q", ins.Inscription.Body, "hello")
	}
	if ins.Vout != 0 {
		t.Errorf("inscription landed on vout %d, want 0 (offset 0 is within the first output)", ins.Vout)
	}
	if ins.Unbound {
		t.Errorf("inscription should not be unbound: it rode a nonzero-value input at offset 0")
	}

	height, err := e.IndexedHeight()
	if err != nil {
		t.Fatalf("IndexedHeight: %v", err)
	}
	if height != 1 {
		t.Errorf("IndexedHeight() = %d, want 1", height)
	}
	if e.nextIDNumber != 1 {
		t.Errorf("nextIDNumber = %d, want 1", e.nextIDNumber)
	}

	// Now transfer the inscription by spending spendTx's output 0 entirely
	// into a fresh output in block 2; it must follow the sat, not stay put.
	spendTxid := spendTx.TxID()
	transferTx := wireformat.Tx{
		Version: 2,
		Inputs: []wireformat.TxInput{{
			PrevOut:  wireformat.OutPoint{Hash: spendTxid, Index: 0},
			Sequence: 0xffffffff,
		}},
		Outputs: []wireformat.TxOutput{{Value: 1000, PkScript: []byte{0x6a}}},
	}
	coinbase2 := coinbaseTx(wireformat.TxOutput{Value: SubsidyAt(2), PkScript: []byte{0x6a}})
	block2 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 3000},
		Txs:    []wireformat.Tx{coinbase2, transferTx},
	}
	if err := e.IndexBlock(ctx, 2, 3000, block2); err != nil {
		t.Fatalf("IndexBlock(2): %v", err)
	}
	if len(transferred) != 1 {
		t.Fatalf("transferred = %d entries, want 1: %+v", len(transferred), transferred)
	}
	if transferred[0].InscriptionID != ins.InscriptionID {
		t.Errorf("transferred inscription = %q, want %q", transferred[0].InscriptionID, ins.InscriptionID)
	}
	if transferred[0].Vout != 0 {
		t.Errorf("transferred to vout %d, want 0", transferred[0].Vout)
	}
}

func TestIndexBlockCursedWhenNotInFirstInput(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	block0 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 1000},
		Txs: []wireformat.Tx{coinbaseTx(
			wireformat.TxOutput{Value: 10000, PkScript: []byte{0x6a}},
			wireformat.TxOutput{Value: 10000, PkScript: []byte{0x6a}},
		)},
	}
	if err := e.IndexBlock(ctx, 0, 1000, block0); err != nil {
		t.Fatalf("IndexBlock(0): %v", err)
	}
	genesisTxid := block0.Txs[0].TxID()

	var inscribed []InscribeEntry
	e.RegisterInscribeHandler(func(ev InscribeEntry) { inscribed = append(inscribed, ev) })

	// input 0 carries no witness; the inscribed witness sits on input 1, so
	// the envelope must come out cursed under the NotInFirstInput rule.
	spendTx := wireformat.Tx{
		Version: 2,
		Inputs: []wireformat.TxInput{
			{PrevOut: wireformat.OutPoint{Hash: genesisTxid, Index: 0}, Sequence: 0xffffffff},
			{
				PrevOut:  wireformat.OutPoint{Hash: genesisTxid, Index: 1},
				Sequence: 0xffffffff,
				Witness:  [][]byte{envelopeScript([]byte("cursed")), {0x01}},
			},
		},
		Outputs: []wireformat.TxOutput{{Value: 1000, PkScript: []byte{0x6a}}},
	}
	block1 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 2000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: SubsidyAt(1), PkScript: []byte{0x6a}}), spendTx},
	}
	if err := e.IndexBlock(ctx, 1, 2000, block1); err != nil {
		t.Fatalf("IndexBlock(1): %v", err)
	}

	if len(inscribed) != 1 {
		t.Fatalf("inscribed = %d entries, want 1: %+v", len(inscribed), inscribed)
	}
	if inscribed[0].ID != -1 {
		t.Errorf("cursed inscription ID = %d, want -1 (first cursed)", inscribed[0].ID)
	}
	if e.nextCursedIDNumber != -2 {
		t.Errorf("nextCursedIDNumber = %d, want -2", e.nextCursedIDNumber)
	}
}

// TestIndexBlockReinscriptionBlessingEdgeCase covers spec scenario (f): the
// first reinscription atop a *blessed* initial inscription comes out
// cursed, since cursed = !(first_reinscription && initial_cursed) and a
// blessed initial inscription makes initial_cursed false.
func TestIndexBlockReinscriptionBlessingEdgeCase(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	block0 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 1000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: 10000, PkScript: []byte{0x6a}})},
	}
	if err := e.IndexBlock(ctx, 0, 1000, block0); err != nil {
		t.Fatalf("IndexBlock(0): %v", err)
	}
	genesisTxid := block0.Txs[0].TxID()

	// Block 1: bless an inscription at offset 0 of a fresh output.
	firstInscribeTx := wireformat.Tx{
		Version: 2,
		Inputs: []wireformat.TxInput{{
			PrevOut:  wireformat.OutPoint{Hash: genesisTxid, Index: 0},
			Sequence: 0xffffffff,
			Witness:  [][]byte{envelopeScript([]byte("first")), {0x01}},
		}},
		Outputs: []wireformat.TxOutput{{Value: 10000, PkScript: []byte{0x6a}}},
	}
	block1 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 2000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: SubsidyAt(1), PkScript: []byte{0x6a}}), firstInscribeTx},
	}
	if err := e.IndexBlock(ctx, 1, 2000, block1); err != nil {
		t.Fatalf("IndexBlock(1): %v", err)
	}
	if e.nextIDNumber != 1 {
		t.Fatalf("nextIDNumber after first blessing = %d, want 1", e.nextIDNumber)
	}
	firstInscribeTxid := firstInscribeTx.TxID()

	var inscribed []InscribeEntry
	var transferred []TransferEntry
	e.RegisterInscribeHandler(func(ev InscribeEntry) { inscribed = append(inscribed, ev) })
	e.RegisterTransferHandler(func(ev TransferEntry) { transferred = append(transferred, ev) })

	// Block 2: spend that same output, in the same input, carrying a brand
	// new envelope at offset 0 — the input's carried-forward inscription
	// already occupies offset 0, so this is the first reinscription there.
	reinscribeTx := wireformat.Tx{
		Version: 2,
		Inputs: []wireformat.TxInput{{
			PrevOut:  wireformat.OutPoint{Hash: firstInscribeTxid, Index: 0},
			Sequence: 0xffffffff,
			Witness:  [][]byte{envelopeScript([]byte("second")), {0x01}},
		}},
		Outputs: []wireformat.TxOutput{{Value: 10000, PkScript: []byte{0x6a}}},
	}
	block2 := wireformat.Block{
		Header: wireformat.Header{Timestamp: 3000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: SubsidyAt(2), PkScript: []byte{0x6a}}), reinscribeTx},
	}
	if err := e.IndexBlock(ctx, 2, 3000, block2); err != nil {
		t.Fatalf("IndexBlock(2): %v", err)
	}

	if len(transferred) != 1 {
		t.Fatalf("transferred = %d entries, want 1 (the carried-forward first inscription): %+v", len(transferred), transferred)
	}
	if len(inscribed) != 1 {
		t.Fatalf("inscribed = %d entries, want 1 (the reinscription): %+v", len(inscribed), inscribed)
	}
	if inscribed[0].ID != -1 {
		t.Errorf("reinscription atop a blessed initial inscription: ID = %d, want -1 (cursed, first cursed slot)", inscribed[0].ID)
	}
	if e.nextCursedIDNumber != -2 {
		t.Errorf("nextCursedIDNumber = %d, want -2", e.nextCursedIDNumber)
	}
	if e.nextIDNumber != 1 {
		t.Errorf("nextIDNumber should not have advanced: got %d, want 1", e.nextIDNumber)
	}
}

// TestIndexBlockLostSatsAccounting covers spec scenario (g): a coinbase
// whose outputs under-claim the available reward accumulates the shortfall
// into LOST_SATS.
func TestIndexBlockLostSatsAccounting(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const height = 800000
	subsidy := SubsidyAt(height)
	if subsidy != 625000000 {
		t.Fatalf("SubsidyAt(%d) = %d, want 625000000", height, subsidy)
	}

	const coinbaseOutputSum = 600000000 // strictly less than subsidy, fees are zero.
	block := wireformat.Block{
		Header: wireformat.Header{Timestamp: 9000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: coinbaseOutputSum, PkScript: []byte{0x6a}})},
	}
	if err := e.IndexBlock(ctx, height, 9000, block); err != nil {
		t.Fatalf("IndexBlock(%d): %v", height, err)
	}

	wantLost := subsidy - uint64(coinbaseOutputSum)
	if e.lostSats != wantLost {
		t.Errorf("lostSats = %d, want %d", e.lostSats, wantLost)
	}
	got, err := e.store.StatusUint64(statusLostSats)
	if err != nil {
		t.Fatalf("StatusUint64(LOST_SATS): %v", err)
	}
	if got != wantLost {
		t.Errorf("persisted LOST_SATS = %d, want %d", got, wantLost)
	}
}

// TestIndexBlockTransferSplitAcrossOutputs covers spec scenario (h): an
// output carrying two inscriptions at different sat offsets is spent as the
// sole input of a transaction with two outputs; each inscription follows
// its sat into whichever output contains it, offsets rebased to that
// output's start.
func TestIndexBlockTransferSplitAcrossOutputs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var prevHash chainhash.Hash
	copy(prevHash[:], bytes.Repeat([]byte{0xab}, chainhash.HashSize))
	prevOut := wireformat.OutPoint{Hash: prevHash, Index: 0}
	prevKey := outputKey(prevOut)

	seedBatch := e.store.NewBatch()
	e.store.PutOutputValue(seedBatch, prevKey, 700)
	e.store.PutOutputInscription(seedBatch, prevKey, "/id1:100/id2:300")
	if err := e.store.Commit(seedBatch); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	var transferred []TransferEntry
	e.RegisterTransferHandler(func(ev TransferEntry) { transferred = append(transferred, ev) })

	spendTx := wireformat.Tx{
		Version: 2,
		Inputs: []wireformat.TxInput{{
			PrevOut:  prevOut,
			Sequence: 0xffffffff,
		}},
		Outputs: []wireformat.TxOutput{
			{Value: 200, PkScript: []byte{0x6a}},
			{Value: 500, PkScript: []byte{0x6a}},
		},
	}
	block := wireformat.Block{
		Header: wireformat.Header{Timestamp: 4000},
		Txs:    []wireformat.Tx{coinbaseTx(wireformat.TxOutput{Value: SubsidyAt(0), PkScript: []byte{0x6a}}), spendTx},
	}
	if err := e.IndexBlock(ctx, 0, 4000, block); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	if len(transferred) != 2 {
		t.Fatalf("transferred = %d entries, want 2: %+v", len(transferred), transferred)
	}

	newTxid := spendTx.TxID().String()

	out0, err := e.store.OutputInscriptions(newTxid + ":0")
	if err != nil {
		t.Fatalf("OutputInscriptions(:0): %v", err)
	}
	if out0 != "/id1:100" {
		t.Errorf("output_inscription[%s:0] = %q, want %q", newTxid, out0, "/id1:100")
	}

	out1, err := e.store.OutputInscriptions(newTxid + ":1")
	if err != nil {
		t.Fatalf("OutputInscriptions(:1): %v", err)
	}
	if out1 != "/id2:100" {
		t.Errorf("output_inscription[%s:1] = %q, want %q", newTxid, out1, "/id2:100")
	}

	id1Output, _, err := e.store.getRaw(prefixInscriptionOutput, "id1")
	if err != nil {
		t.Fatalf("getRaw(inscription_output, id1): %v", err)
	}
	if string(id1Output) != newTxid+":0" {
		t.Errorf("inscription_output[id1] = %q, want %q", id1Output, newTxid+":0")
	}

	id2Output, _, err := e.store.getRaw(prefixInscriptionOutput, "id2")
	if err != nil {
		t.Fatalf("getRaw(inscription_output, id2): %v", err)
	}
	if string(id2Output) != newTxid+":1" {
		t.Errorf("inscription_output[id2] = %q, want %q", id2Output, newTxid+":1")
	}
}
