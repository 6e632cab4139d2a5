// Package engine implements the inscription tracking engine: the
// stateful, single-writer replay loop that turns a sequence of blocks into
// the five-table inscription index.
package engine

import (
	"context"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
)

// nullTxidHex is the all-zero txid used for inscriptions that end up lost
// to fees/unclaimed subsidy and for the synthetic outputs of unbound
// inscriptions.
var nullTxidHex = strings.Repeat("0", chainhash.HashSize*2)

// RawTxFetcher is the fallback the engine consults when output_value has
// no record of a spent output (typically because it predates this
// indexer's run, or indexing started mid-chain). It models the node RPC's
// getrawtransaction call, narrowed to the one field the engine needs.
type RawTxFetcher interface {
	GetOutputValue(ctx context.Context, txid chainhash.Hash, vout uint32) (uint64, error)
}

// Engine is the single-writer inscription tracking engine. It owns the
// five KV tables and the handler registries; all of its exported methods
// are meant to be called from one goroutine, sequentially, in block-height
// order.
type Engine struct {
	store  *Store
	rpc    RawTxFetcher
	params *chaincfg.Params

	inscribeHandlers []InscribeHandler
	transferHandlers []TransferHandler

	// Persistent counters, mirrored into the status table at the end of
	// every block.
	nextIDNumber        uint64
	nextCursedIDNumber  int64
	lostSats            uint64
	unboundInscriptions uint64

	// outputInscriptionCache is the write-through cache over the
	// output_inscription table. It is sparse: only keys touched so far
	// this process are present, and it is always a faithful mirror of
	// what is durably committed (or about to be, within the current
	// block's in-flight batch).
	outputInscriptionCache map[string]string
	dirtyOutputInscription map[string]bool

	// Block-scoped state, reset by IndexBlock.
	flotsam []Flotsam

	idInscriptionBatch      *leveldb.Batch
	inscriptionOutputBatch  *leveldb.Batch
	statusBatch             *leveldb.Batch
	pendingOutputValueBatch *leveldb.Batch
}

// New constructs an Engine over an already-open Store, loading its
// persistent counters from the status table.
func New(store *Store, rpc RawTxFetcher, params *chaincfg.Params) (*Engine, error) {
	e := &Engine{
		store:                  store,
		rpc:                    rpc,
		params:                 params,
		outputInscriptionCache: make(map[string]string),
		dirtyOutputInscription: make(map[string]bool),
	}
	var err error
	if e.nextIDNumber, err = store.StatusUint64(statusNextIDNumber); err != nil {
		return nil, err
	}
	if nc, err := store.StatusInt64(statusNextCursedIDNumber); err != nil {
		return nil, err
	} else if nc == 0 {
		e.nextCursedIDNumber = -1
	} else {
		e.nextCursedIDNumber = nc
	}
	if e.lostSats, err = store.StatusUint64(statusLostSats); err != nil {
		return nil, err
	}
	if e.unboundInscriptions, err = store.StatusUint64(statusUnboundInscriptions); err != nil {
		return nil, err
	}
	return e, nil
}

// IndexedHeight reports the last height whose flush_update fully
// committed, or -1 if nothing has been indexed yet.
func (e *Engine) IndexedHeight() (int64, error) {
	v, err := e.store.StatusInt64(statusIndexedHeight)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		ok, err := e.hasIndexedGenesis()
		if err != nil {
			return 0, err
		}
		if !ok {
			return -1, nil
		}
	}
	return v, nil
}

func (e *Engine) hasIndexedGenesis() (bool, error) {
	_, ok, err := e.store.getRaw(prefixStatus, statusIndexedHeight)
	return ok, err
}

func (e *Engine) cacheGet(key string) (string, error) {
	if v, ok := e.outputInscriptionCache[key]; ok {
		return v, nil
	}
	v, err := e.store.OutputInscriptions(key)
	if err != nil {
		return "", err
	}
	e.outputInscriptionCache[key] = v
	return v, nil
}

func (e *Engine) cacheAppend(key, id string, offset uint64) error {
	cur, err := e.cacheGet(key)
	if err != nil {
		return err
	}
	e.outputInscriptionCache[key] = appendOutputInscriptionEntry(cur, id, offset)
	e.dirtyOutputInscription[key] = true
	return nil
}

func (e *Engine) cacheRemove(key, id string, offset uint64) error {
	cur, err := e.cacheGet(key)
	if err != nil {
		return err
	}
	e.outputInscriptionCache[key] = removeOutputInscriptionEntry(cur, id, offset)
	e.dirtyOutputInscription[key] = true
	return nil
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}
