package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/ordlayer/ordindex/internal/envelope"
	"github.com/ordlayer/ordindex/internal/wireformat"
)

// curseKind is the reason, if any, a freshly parsed envelope is cursed.
type curseKind int

const (
	curseNone curseKind = iota
	curseNotInFirstInput
	curseNotAtOffsetZero
	curseReinscription
)

// txData is the result of the intra-block, data-parallel precomputation
// step: each transaction's hash and per-output address, computed once up
// front so the sequential replay never recomputes either.
type txData struct {
	hashHex   string
	addresses []string
}

// precomputeTxData hashes every transaction and evaluates every output's
// script_pubkey to an address, in parallel across transactions. Each
// goroutine only ever writes to its own slot of results, so there is no
// shared mutable state to synchronize beyond the WaitGroup.
func precomputeTxData(txs []wireformat.Tx, params *chaincfg.Params) []txData {
	results := make([]txData, len(txs))
	var wg sync.WaitGroup
	wg.Add(len(txs))
	for i := range txs {
		go func(i int) {
			defer wg.Done()
			tx := txs[i]
			addrs := make([]string, len(tx.Outputs))
			for j, out := range tx.Outputs {
				if a, ok := wireformat.ExtractAddress(out.PkScript, params); ok {
					addrs[j] = a
				}
			}
			results[i] = txData{hashHex: tx.TxID().String(), addresses: addrs}
		}(i)
	}
	wg.Wait()
	return results
}

// IndexBlock replays a single block at height, assigning inscription
// numbers, propagating existing inscriptions across sat-flows, and
// committing every resulting state transition. It must be called in
// strictly increasing height order.
func (e *Engine) IndexBlock(ctx context.Context, height int64, timestamp uint32, block wireformat.Block) error {
	if len(block.Txs) == 0 {
		return replayError(height, "block has no transactions", nil)
	}

	data := precomputeTxData(block.Txs, e.params)

	e.flotsam = e.flotsam[:0]
	e.idInscriptionBatch = e.store.NewBatch()
	e.inscriptionOutputBatch = e.store.NewBatch()
	e.statusBatch = e.store.NewBatch()
	e.pendingOutputValueBatch = e.store.NewBatch()

	subsidy := SubsidyAt(height)
	reward := subsidy

	// Replay order: non-coinbase transactions first, coinbase last. This
	// lets flotsam that escapes a non-coinbase tx's outputs accumulate into
	// e.flotsam for the coinbase pass to finally place.
	order := make([]int, 0, len(block.Txs))
	for i := 1; i < len(block.Txs); i++ {
		order = append(order, i)
	}
	order = append(order, 0)

	for _, txIdx := range order {
		tx := block.Txs[txIdx]
		isCoinbase := len(tx.Inputs) > 0 && tx.Inputs[0].PrevOut.IsNull()
		next, err := e.replayTx(ctx, height, timestamp, tx, data[txIdx], isCoinbase, subsidy, reward)
		if err != nil {
			return err
		}
		reward = next
	}

	return e.flushUpdate(height)
}

// replayTx replays one transaction's input pass, output pass, and
// fee/escape accounting, returning the block-level reward value to carry
// into the next transaction.
func (e *Engine) replayTx(ctx context.Context, height int64, timestamp uint32, tx wireformat.Tx, data txData, isCoinbase bool, subsidy, reward uint64) (uint64, error) {
	envelopes := envelope.ParseTransactionInscriptions(tx)
	envIdx := 0

	var floating []Flotsam
	inscribedOffsets := make(map[uint64]*offsetEntry)
	var inputValue uint64
	var idCounter uint32

	for i, in := range tx.Inputs {
		if in.PrevOut.IsNull() {
			inputValue += subsidy
			for envIdx < len(envelopes) && envelopes[envIdx].TxInIndex == i {
				envIdx++
			}
			continue
		}

		prevKey := outputKey(in.PrevOut)
		base := inputValue

		cur, err := e.cacheGet(prevKey)
		if err != nil {
			return reward, err
		}
		for _, old := range parseOutputInscriptionList(cur) {
			off := base + old.Offset
			floating = append(floating, Flotsam{
				Offset:    off,
				IsOld:     true,
				OldPrev:   prevKey,
				OldID:     old.ID,
				OldOffset: old.Offset,
			})
			bumpOffsetEntry(inscribedOffsets, off, old.ID)
		}
		offsetForNew := base

		value, ok, err := e.store.OutputValue(prevKey)
		if err != nil {
			return reward, err
		}
		if !ok {
			if e.rpc == nil {
				return reward, replayError(height, "missing output_value and no rpc configured for "+prevKey, nil)
			}
			value, err = e.rpc.GetOutputValue(ctx, in.PrevOut.Hash, in.PrevOut.Index)
			if err != nil {
				return reward, replayError(height, "rpc fallback for "+prevKey, err)
			}
		}
		inputValue += value
		e.store.DeleteOutputValue(e.pendingOutputValueBatch, prevKey)

		for envIdx < len(envelopes) && envelopes[envIdx].TxInIndex == i {
			te := envelopes[envIdx]
			envIdx++

			curse := classifyCurse(i, te.Offset, offsetForNew, inscribedOffsets)
			cursed, err := e.resolveCursed(curse, offsetForNew, inscribedOffsets)
			if err != nil {
				return reward, err
			}
			unbound := inputValue == 0 || te.Offset != 0

			id := fmt.Sprintf("%si%d", data.hashHex, idCounter)
			idCounter++

			floating = append(floating, Flotsam{
				Offset:      offsetForNew,
				IsOld:       false,
				NewID:       id,
				Cursed:      cursed,
				Unbound:     unbound,
				Inscription: te.Inscription,
			})
		}
	}

	if isCoinbase {
		floating = append(floating, e.flotsam...)
	}

	sort.SliceStable(floating, func(a, b int) bool { return floating[a].Offset < floating[b].Offset })

	var cursor uint64
	var pos int
	for vout, out := range tx.Outputs {
		end := cursor + out.Value
		addr := ""
		if vout < len(data.addresses) {
			addr = data.addresses[vout]
		}
		for pos < len(floating) && floating[pos].Offset < end {
			f := floating[pos]
			pos++
			localOffset := f.Offset - cursor
			if err := e.updateInscriptionState(height, timestamp, f, data.hashHex, uint32(vout), localOffset, addr); err != nil {
				return reward, err
			}
		}
		e.store.PutOutputValue(e.pendingOutputValueBatch, fmt.Sprintf("%s:%d", data.hashHex, vout), out.Value)
		cursor = end
	}
	if err := e.store.Commit(e.pendingOutputValueBatch); err != nil {
		return reward, err
	}
	e.pendingOutputValueBatch = e.store.NewBatch()

	if isCoinbase {
		for ; pos < len(floating); pos++ {
			f := floating[pos]
			localOffset := e.lostSats + f.Offset - cursor
			if err := e.updateInscriptionState(height, timestamp, f, nullTxidHex, 0xffffffff, localOffset, ""); err != nil {
				return reward, err
			}
		}
		e.lostSats += reward - cursor
		return reward, nil
	}

	for ; pos < len(floating); pos++ {
		f := floating[pos]
		f.Offset = reward + f.Offset - cursor
		e.flotsam = append(e.flotsam, f)
	}
	reward += inputValue - cursor
	return reward, nil
}

// updateInscriptionState lands one piece of flotsam at its final
// (txid, vout, offset) resting place: allocating a number for a brand-new
// inscription, rewriting the cache for a transferred one, and emitting the
// matching event.
func (e *Engine) updateInscriptionState(height int64, timestamp uint32, f Flotsam, newTxidHex string, vout uint32, offset uint64, address string) error {
	var id string
	if f.IsOld {
		id = f.OldID
		if err := e.cacheRemove(f.OldPrev, f.OldID, f.OldOffset); err != nil {
			return err
		}
		e.emitTransfer(TransferEntry{
			InscriptionID: f.OldID,
			FromOutput:    f.OldPrev,
			FromOffset:    f.OldOffset,
			To:            address,
			Txid:          newTxidHex,
			Vout:          vout,
			Offset:        offset,
			Height:        height,
			Timestamp:     timestamp,
		})
	} else {
		id = f.NewID
		var number int64
		if f.Cursed {
			number = e.nextCursedIDNumber
			e.nextCursedIDNumber--
			e.store.PutStatusInt64(e.statusBatch, f.NewID, number)
		} else {
			number = int64(e.nextIDNumber)
			e.nextIDNumber++
		}
		e.store.PutIDInscription(e.idInscriptionBatch, number, f.NewID)
		e.emitInscribe(InscribeEntry{
			ID:            number,
			InscriptionID: f.NewID,
			Inscription:   f.Inscription,
			Txid:          newTxidHex,
			Vout:          vout,
			ToAddress:     address,
			Unbound:       f.Unbound,
			Height:        height,
			Timestamp:     timestamp,
		})
	}

	var realOutput string
	if !f.IsOld && f.Unbound {
		realOutput = fmt.Sprintf("%s:%d", nullTxidHex, e.unboundInscriptions)
		e.unboundInscriptions++
	} else {
		realOutput = fmt.Sprintf("%s:%d", newTxidHex, vout)
	}

	if err := e.cacheAppend(realOutput, id, offset); err != nil {
		return err
	}
	e.store.PutInscriptionOutput(e.inscriptionOutputBatch, id, realOutput)
	return nil
}

// flushUpdate commits every batch accumulated over the block and updates
// the status metadata row last, so a crash leaves INDEXED_HEIGHT at the
// last fully durable block.
func (e *Engine) flushUpdate(height int64) error {
	if err := e.store.Commit(e.idInscriptionBatch); err != nil {
		return err
	}
	if err := e.store.Commit(e.inscriptionOutputBatch); err != nil {
		return err
	}

	outputInscriptionBatch := e.store.NewBatch()
	for key, dirty := range e.dirtyOutputInscription {
		if !dirty {
			continue
		}
		if val := e.outputInscriptionCache[key]; val == "" {
			e.store.DeleteOutputInscription(outputInscriptionBatch, key)
		} else {
			e.store.PutOutputInscription(outputInscriptionBatch, key, val)
		}
	}
	if err := e.store.Commit(outputInscriptionBatch); err != nil {
		return err
	}
	e.dirtyOutputInscription = make(map[string]bool)

	e.store.PutStatusUint64(e.statusBatch, statusUnboundInscriptions, e.unboundInscriptions)
	e.store.PutStatusUint64(e.statusBatch, statusNextIDNumber, e.nextIDNumber)
	e.store.PutStatusInt64(e.statusBatch, statusNextCursedIDNumber, e.nextCursedIDNumber)
	e.store.PutStatusUint64(e.statusBatch, statusLostSats, e.lostSats)
	e.store.PutStatusInt64(e.statusBatch, statusIndexedHeight, height)
	if err := e.store.Commit(e.statusBatch); err != nil {
		return err
	}

	e.idInscriptionBatch = nil
	e.inscriptionOutputBatch = nil
	e.statusBatch = nil
	return nil
}

func outputKey(op wireformat.OutPoint) string {
	return fmt.Sprintf("%s:%d", op.Hash.String(), op.Index)
}

func bumpOffsetEntry(m map[uint64]*offsetEntry, offset uint64, id string) {
	if e, ok := m[offset]; ok {
		e.Count++
		return
	}
	m[offset] = &offsetEntry{InitialID: id, Count: 0}
}

func classifyCurse(txInIndex, txInOffset int, offsetForNew uint64, inscribedOffsets map[uint64]*offsetEntry) curseKind {
	if txInIndex != 0 {
		return curseNotInFirstInput
	}
	if txInOffset != 0 {
		return curseNotAtOffsetZero
	}
	if _, ok := inscribedOffsets[offsetForNew]; ok {
		return curseReinscription
	}
	return curseNone
}

// resolveCursed applies the curse formula, including the case where a
// blessed inscription's absence from the status table is indistinguishable
// from "never heard of it" — both read back as initialCursed=false. This
// is deliberate; see DESIGN.md.
func (e *Engine) resolveCursed(curse curseKind, offsetForNew uint64, inscribedOffsets map[uint64]*offsetEntry) (bool, error) {
	if curse == curseReinscription {
		entry := inscribedOffsets[offsetForNew]
		first := entry.Count == 0
		initialCursedRaw, err := e.store.StatusInt64(entry.InitialID)
		if err != nil {
			return false, err
		}
		initialCursed := initialCursedRaw != 0
		return !(first && initialCursed), nil
	}
	return curse != curseNone, nil
}

