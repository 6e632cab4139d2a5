package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/ordlayer/ordindex/internal/chainindex"
	"github.com/ordlayer/ordindex/internal/wireformat"
)

// tipFollowBackoff is the fixed retry interval for a tip-follow
// get_block_hash failure: back off and retry indefinitely. A var, not a
// const, so tests can shrink it instead of sleeping for real.
var tipFollowBackoff = 10 * time.Second

// BlockSource is the node RPC surface the driver needs once the on-disk
// chain is exhausted: resolve a height to a hash, then fetch that block.
type BlockSource interface {
	GetBlockHash(ctx context.Context, height int64) (chainhash.Hash, error)
	GetBlock(ctx context.Context, hash chainhash.Hash) (wireformat.Block, error)
}

// Counter and Gauge are the narrow prometheus interfaces the driver reports
// through, kept local so this package does not need to import the metrics
// package; prometheus.Counter and prometheus.Gauge both satisfy them.
type Counter interface{ Inc() }
type Gauge interface{ Set(float64) }

// Driver is the per-block replay loop: it walks the on-disk chain in
// height order via the Height Index, then switches to RPC tip-following
// once that chain is exhausted, feeding every block to the same Engine.
type Driver struct {
	engine  *Engine
	index   *chainindex.Index
	rpc     BlockSource
	log     *zap.Logger
	sidecar *Sidecar

	blocksIndexed Counter
	rpcRetries    Counter
	lostSats      Gauge
}

// NewDriver constructs a Driver. rpc may be nil, in which case the driver
// stops once the on-disk chain is exhausted instead of tip-following.
// sidecar may also be nil, in which case tip watermarks and the
// pre-population marker are simply not recorded.
func NewDriver(e *Engine, index *chainindex.Index, rpc BlockSource, sidecar *Sidecar, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{engine: e, index: index, rpc: rpc, sidecar: sidecar, log: log}
}

// WithMetrics attaches the daemon's prometheus series to the driver. Any of
// the three may be nil to skip that particular counter/gauge.
func (d *Driver) WithMetrics(blocksIndexed, rpcRetries Counter, lostSats Gauge) *Driver {
	d.blocksIndexed = blocksIndexed
	d.rpcRetries = rpcRetries
	d.lostSats = lostSats
	return d
}

func (d *Driver) recordBlockIndexed() {
	if d.blocksIndexed != nil {
		d.blocksIndexed.Inc()
	}
	if d.lostSats != nil {
		d.lostSats.Set(float64(d.engine.lostSats))
	}
}

// Run replays every block from the engine's last indexed height through
// the on-disk chain's tip, then tip-follows via RPC until ctx is
// cancelled. A decode, index, or KV failure during the on-disk phase is
// fatal. During tip-following, a failed getblockhash or getblock call is
// logged and retried; a failure to index a fetched block is returned.
func (d *Driver) Run(ctx context.Context) error {
	indexed, err := d.engine.IndexedHeight()
	if err != nil {
		return err
	}
	height := indexed + 1

	maxHeight := d.index.MaxHeight()
	for height <= maxHeight {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		blk, err := d.index.CatchBlock(height)
		if err != nil {
			return fmt.Errorf("driver: catch block at height %d: %w", height, err)
		}
		if err := d.engine.IndexBlock(ctx, height, blk.Header.Timestamp, blk); err != nil {
			return fmt.Errorf("driver: index block at height %d: %w", height, err)
		}
		d.recordBlockIndexed()
		d.log.Info("indexed block", zap.Int64("height", height), zap.Int("txs", len(blk.Txs)))
		height++
	}

	if d.rpc == nil {
		return nil
	}
	return d.followTip(ctx, height)
}

// followTip polls the node for each successive height once the on-disk
// chain has been fully replayed. get_block_hash returning an error is
// treated as "not yet available" and is never fatal.
func (d *Driver) followTip(ctx context.Context, height int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hash, err := d.rpc.GetBlockHash(ctx, height)
		if err != nil {
			d.log.Warn("tip not yet available, retrying", zap.Int64("height", height), zap.Error(err))
			if d.rpcRetries != nil {
				d.rpcRetries.Inc()
			}
			if !sleepOrDone(ctx, tipFollowBackoff) {
				return ctx.Err()
			}
			continue
		}

		blk, err := d.rpc.GetBlock(ctx, hash)
		if err != nil {
			d.log.Warn("failed to fetch tip block, retrying", zap.Int64("height", height), zap.Error(err))
			if d.rpcRetries != nil {
				d.rpcRetries.Inc()
			}
			if !sleepOrDone(ctx, tipFollowBackoff) {
				return ctx.Err()
			}
			continue
		}

		if err := d.engine.IndexBlock(ctx, height, blk.Header.Timestamp, blk); err != nil {
			return fmt.Errorf("driver: index tip block at height %d: %w", height, err)
		}
		d.recordBlockIndexed()
		if d.sidecar != nil {
			if err := d.sidecar.SetTipWatermark(height, hash.String()); err != nil {
				d.log.Warn("failed to record tip watermark", zap.Int64("height", height), zap.Error(err))
			}
		}
		d.log.Info("indexed tip block", zap.Int64("height", height), zap.Int("txs", len(blk.Txs)))
		height++
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// PrePopulateOutputValues replays blocks [0, upToHeight) writing only the
// output_value table, with no envelope parsing or number assignment. One
// write batch is committed per block.
func (d *Driver) PrePopulateOutputValues(ctx context.Context, upToHeight int64) error {
	if d.sidecar != nil {
		done, err := d.sidecar.PrePopulationDone()
		if err != nil {
			return fmt.Errorf("driver: check prepopulate marker: %w", err)
		}
		if done {
			d.log.Info("pre-population already completed, skipping")
			return nil
		}
	}

	for h := int64(0); h < upToHeight; h++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, ok := d.index.EntryAt(h); !ok {
			continue
		}
		blk, err := d.index.CatchBlock(h)
		if err != nil {
			return fmt.Errorf("driver: prepopulate catch block at height %d: %w", h, err)
		}

		batch := d.engine.store.NewBatch()
		for _, tx := range blk.Txs {
			hashHex := tx.TxID().String()
			for _, in := range tx.Inputs {
				if in.PrevOut.IsNull() {
					continue
				}
				d.engine.store.DeleteOutputValue(batch, outputKey(in.PrevOut))
			}
			for vout, out := range tx.Outputs {
				d.engine.store.PutOutputValue(batch, fmt.Sprintf("%s:%d", hashHex, vout), out.Value)
			}
		}
		if err := d.engine.store.Commit(batch); err != nil {
			return fmt.Errorf("driver: prepopulate commit at height %d: %w", h, err)
		}
	}

	if d.sidecar != nil {
		if err := d.sidecar.MarkPrePopulationDone(); err != nil {
			return fmt.Errorf("driver: mark prepopulate done: %w", err)
		}
	}
	return nil
}
