// Package chainindex reads the node's external LevelDB block index and
// serves blocks to the engine in height order, opening each underlying
// blk*.dat file on demand and closing it once the highest-height block it
// holds has been read.
package chainindex

import (
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ordlayer/ordindex/internal/blockfile"
	"github.com/ordlayer/ordindex/internal/wireformat"
)

// blockRecordPrefix is the first byte of every block-record key in the
// node's LevelDB block index.
const blockRecordPrefix = 'b'

// Index is the loaded, filtered view over the node's block index: a
// height-ordered map of entries plus the machinery to read the block bytes
// each entry points at.
type Index struct {
	params wireformat.Params

	entries        map[int64]IndexEntry
	byHash         map[chainhash.Hash]IndexEntry
	maxHeight      int64
	maxHeightInBlk map[int]int64

	blks *blockfile.Store
}

// Open loads and filters the block index rooted at <datadir>/blocks/index,
// and prepares a lazy blk-file reader rooted at <datadir>/blocks.
func Open(datadir string, params wireformat.Params) (*Index, error) {
	idxPath := filepath.Join(datadir, "blocks", "index")
	db, err := leveldb.OpenFile(idxPath, &opt.Options{ReadOnly: true})
	if err != nil {
		return nil, openFailed("open block index at "+idxPath, err)
	}
	defer db.Close()

	idx := &Index{
		params:         params,
		entries:        make(map[int64]IndexEntry),
		byHash:         make(map[chainhash.Hash]IndexEntry),
		maxHeightInBlk: make(map[int]int64),
		maxHeight:      -1,
		blks:           blockfile.NewStore(datadir),
	}

	iter := db.NewIterator(util.BytesPrefix([]byte{blockRecordPrefix}), nil)
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if len(key) < 1+chainhash.HashSize {
			continue
		}
		entry, err := decodeIndexEntry(key[1:1+chainhash.HashSize], iter.Value())
		if err != nil {
			return nil, err
		}
		if !entry.wantKept() {
			continue
		}
		if _, ok := idx.entries[entry.Height]; ok {
			return nil, duplicateHeight(entry.Height)
		}
		idx.entries[entry.Height] = entry
		idx.byHash[entry.BlockHash] = entry
		if entry.Height > idx.maxHeight {
			idx.maxHeight = entry.Height
		}
		if cur, ok := idx.maxHeightInBlk[entry.BlkFileIndex]; !ok || entry.Height > cur {
			idx.maxHeightInBlk[entry.BlkFileIndex] = entry.Height
		}
	}
	if err := iter.Error(); err != nil {
		return nil, openFailed("iterate block index", err)
	}

	for height, entry := range idx.entries {
		if entry.Height != height {
			return nil, invalidHeight(height, entry.Height)
		}
	}

	return idx, nil
}

// MaxHeight reports the highest height present in the loaded index, or -1
// if the index is empty.
func (idx *Index) MaxHeight() int64 { return idx.maxHeight }

// EntryAt returns the index entry for height, if present.
func (idx *Index) EntryAt(height int64) (IndexEntry, bool) {
	e, ok := idx.entries[height]
	return e, ok
}

// GetBlockEntryByBlockHash returns the loaded index entry for the block
// with the given hash, or an EntryNotFound error.
func (idx *Index) GetBlockEntryByBlockHash(hash chainhash.Hash) (IndexEntry, error) {
	e, ok := idx.byHash[hash]
	if !ok {
		return IndexEntry{}, entryNotFound("no block-index entry for hash " + hash.String())
	}
	return e, nil
}

// CatchBlock reads the block at height, opening its blk file on demand and
// closing it once height is the last block that file holds.
func (idx *Index) CatchBlock(height int64) (wireformat.Block, error) {
	entry, ok := idx.entries[height]
	if !ok {
		return wireformat.Block{}, entryNotFound(fmt.Sprintf("no index entry at height %d", height))
	}
	if err := idx.blks.Open(entry.BlkFileIndex); err != nil {
		return wireformat.Block{}, openFailed("open blk file", err)
	}
	blk, err := idx.blks.ReadBlock(entry.BlkFileIndex, entry.DataOffset, idx.params)
	if err != nil {
		return wireformat.Block{}, decodeFailed("read block at height", err)
	}
	if idx.maxHeightInBlk[entry.BlkFileIndex] == height {
		if err := idx.blks.Close(entry.BlkFileIndex); err != nil {
			return blk, openFailed("close exhausted blk file", err)
		}
	}
	return blk, nil
}

// Close releases any blk files still open.
func (idx *Index) Close() error {
	return idx.blks.CloseAll()
}
