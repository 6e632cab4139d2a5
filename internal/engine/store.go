package engine

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Table prefixes simulate five column families inside one goleveldb.DB;
// LevelDB has no native notion of column families, so each table gets a
// one-byte keyspace prefix.
const (
	prefixStatus            byte = 's'
	prefixOutputValue       byte = 'v'
	prefixIDInscription     byte = 'n'
	prefixInscriptionOutput byte = 'o'
	prefixOutputInscription byte = 'i'
)

// Status metadata row names, alongside per-inscription cursed-number rows
// that are keyed by inscription ID instead.
const (
	statusNextIDNumber        = "NEXT_ID_NUMBER"
	statusNextCursedIDNumber  = "NEXT_CURSED_ID_NUMBER"
	statusLostSats            = "LOST_SATS"
	statusUnboundInscriptions = "UNBOUND_INSCRIPTIONS"
	statusIndexedHeight       = "INDEXED_HEIGHT"
)

// Store is the engine's five-table KV handle over one goleveldb database.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (creating if absent) the engine's LevelDB database.
func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, kvError("open store at "+path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return kvError("close store", err)
	}
	return nil
}

func prefixedKey(prefix byte, key string) []byte {
	out := make([]byte, 1+len(key))
	out[0] = prefix
	copy(out[1:], key)
	return out
}

func prefixedKeyRaw(prefix byte, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = prefix
	copy(out[1:], key)
	return out
}

func (s *Store) getRaw(prefix byte, key string) ([]byte, bool, error) {
	v, err := s.db.Get(prefixedKey(prefix, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kvError("get", err)
	}
	return v, true, nil
}

// StatusUint64 reads a status metadata row, defaulting to 0 if absent.
func (s *Store) StatusUint64(key string) (uint64, error) {
	v, ok, err := s.getRaw(prefixStatus, key)
	if err != nil {
		return 0, err
	}
	if !ok || len(v) != 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(v), nil
}

// StatusInt64 reads a status metadata or per-inscription row interpreted
// as a signed little-endian 64-bit integer, defaulting to 0 if absent. A
// blessed inscription's curse marker is never written here, so "not
// found" and "blessed" are indistinguishable by design.
func (s *Store) StatusInt64(key string) (int64, error) {
	v, ok, err := s.getRaw(prefixStatus, key)
	if err != nil {
		return 0, err
	}
	if !ok || len(v) != 8 {
		return 0, nil
	}
	return int64(binary.LittleEndian.Uint64(v)), nil
}

// OutputValue looks up the cached sat value of a spendable output by its
// "txid:vout" key. ok is false if the value has already been consumed or
// was never indexed (the caller falls back to node RPC).
func (s *Store) OutputValue(key string) (uint64, bool, error) {
	v, ok, err := s.getRaw(prefixOutputValue, key)
	if err != nil || !ok {
		return 0, false, err
	}
	if len(v) != 8 {
		return 0, false, decodeStoreError("output_value has wrong length")
	}
	return binary.LittleEndian.Uint64(v), true, nil
}

// OutputInscriptions returns the raw slash-delimited inscription list for
// an output key, or "" if none.
func (s *Store) OutputInscriptions(key string) (string, error) {
	v, ok, err := s.getRaw(prefixOutputInscription, key)
	if err != nil || !ok {
		return "", err
	}
	return string(v), nil
}

func (s *Store) commit(batch *leveldb.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return kvError("write batch", err)
	}
	return nil
}

// Commit writes batch atomically. A nil or empty batch is a no-op.
func (s *Store) Commit(batch *leveldb.Batch) error {
	return s.commit(batch)
}

// NewBatch returns a fresh, empty write batch.
func (s *Store) NewBatch() *leveldb.Batch {
	return new(leveldb.Batch)
}

// PutOutputValue stages out.value under key in the output_value table.
func (s *Store) PutOutputValue(batch *leveldb.Batch, key string, value uint64) {
	batch.Put(prefixedKey(prefixOutputValue, key), encodeUint64LE(value))
}

// DeleteOutputValue stages the removal of a consumed output's value row.
func (s *Store) DeleteOutputValue(batch *leveldb.Batch, key string) {
	batch.Delete(prefixedKey(prefixOutputValue, key))
}

// PutIDInscription stages id_inscription[number] = inscriptionID, matching
// the little-endian encoding used for every other fixed-width integer in
// this store; the table is only ever addressed by point lookup, so key
// ordering under iteration is not load-bearing.
func (s *Store) PutIDInscription(batch *leveldb.Batch, number int64, inscriptionID string) {
	batch.Put(prefixedKeyRaw(prefixIDInscription, encodeInt64LE(number)), []byte(inscriptionID))
}

// PutInscriptionOutput stages inscription_output[inscriptionID] = outputKey.
func (s *Store) PutInscriptionOutput(batch *leveldb.Batch, inscriptionID, outputKey string) {
	batch.Put(prefixedKey(prefixInscriptionOutput, inscriptionID), []byte(outputKey))
}

// PutOutputInscription stages a non-empty output_inscription row.
func (s *Store) PutOutputInscription(batch *leveldb.Batch, key, value string) {
	batch.Put(prefixedKey(prefixOutputInscription, key), []byte(value))
}

// DeleteOutputInscription stages the removal of an output_inscription row
// that has become empty; per the design notes it must be deleted rather
// than rewritten as an empty value, to keep the keyspace compact.
func (s *Store) DeleteOutputInscription(batch *leveldb.Batch, key string) {
	batch.Delete(prefixedKey(prefixOutputInscription, key))
}

// PutStatusUint64 stages a little-endian u64 status metadata row.
func (s *Store) PutStatusUint64(batch *leveldb.Batch, key string, v uint64) {
	batch.Put(prefixedKey(prefixStatus, key), encodeUint64LE(v))
}

// PutStatusInt64 stages a little-endian i64 status row: either block-level
// metadata (NEXT_CURSED_ID_NUMBER, INDEXED_HEIGHT) or a per-inscription
// cursed-number row keyed by inscription ID.
func (s *Store) PutStatusInt64(batch *leveldb.Batch, key string, v int64) {
	batch.Put(prefixedKey(prefixStatus, key), encodeInt64LE(v))
}

func encodeUint64LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func encodeInt64LE(v int64) []byte {
	return encodeUint64LE(uint64(v))
}

func decodeStoreError(msg string) error {
	return &KvError{Msg: msg}
}
