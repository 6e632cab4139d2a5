package engine

import (
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Sidecar is the small auxiliary store that sits beside the five primary
// LevelDB tables: a tip-follow watermark for cheap liveness checks, and a
// one-shot marker so index_previous_output_value's pre-population pass
// never repeats itself across restarts once it has completed.
type Sidecar struct {
	db *bolt.DB
}

var sidecarBucket = []byte("meta")

var (
	sidecarKeyTipHeight  = []byte("tip_height")
	sidecarKeyTipHash    = []byte("tip_hash")
	sidecarKeyPrePopDone = []byte("prepopulate_done")
)

// OpenSidecar opens (creating if absent) the sidecar bbolt database at path.
func OpenSidecar(path string) (*Sidecar, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, kvError("open sidecar at "+path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sidecarBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, kvError("init sidecar bucket", err)
	}
	return &Sidecar{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (s *Sidecar) Close() error {
	if err := s.db.Close(); err != nil {
		return kvError("close sidecar", err)
	}
	return nil
}

// SetTipWatermark records the height and hash of the most recently indexed
// tip-follow block, for diagnostics independent of the engine's own
// INDEXED_HEIGHT row.
func (s *Sidecar) SetTipWatermark(height int64, hash string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sidecarBucket)
		if err := b.Put(sidecarKeyTipHeight, encodeInt64LE(height)); err != nil {
			return err
		}
		return b.Put(sidecarKeyTipHash, []byte(hash))
	})
	if err != nil {
		return kvError("set tip watermark", err)
	}
	return nil
}

// TipWatermark reads back the last recorded tip-follow height and hash.
func (s *Sidecar) TipWatermark() (int64, string, error) {
	var height int64
	var hash string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sidecarBucket)
		if v := b.Get(sidecarKeyTipHeight); len(v) == 8 {
			height = int64(binary.LittleEndian.Uint64(v))
		}
		if v := b.Get(sidecarKeyTipHash); v != nil {
			hash = string(v)
		}
		return nil
	})
	if err != nil {
		return 0, "", kvError("read tip watermark", err)
	}
	return height, hash, nil
}

// PrePopulationDone reports whether a prior run already completed the
// index_previous_output_value replay.
func (s *Sidecar) PrePopulationDone() (bool, error) {
	var done bool
	err := s.db.View(func(tx *bolt.Tx) error {
		done = tx.Bucket(sidecarBucket).Get(sidecarKeyPrePopDone) != nil
		return nil
	})
	if err != nil {
		return false, kvError("read prepopulate marker", err)
	}
	return done, nil
}

// MarkPrePopulationDone records that the pre-population pass has finished.
func (s *Sidecar) MarkPrePopulationDone() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sidecarBucket).Put(sidecarKeyPrePopDone, []byte{1})
	})
	if err != nil {
		return kvError("mark prepopulate done", err)
	}
	return nil
}
