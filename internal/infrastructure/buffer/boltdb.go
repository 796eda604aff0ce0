package buffer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const indexSuffix = "_index"

// Store keeps pending writes in BoltDB while the primary storage is unavailable.
// Items are ordered by priority then age; a side index maps entity/key to the
// item so repeated writes for the same key collapse into the latest one.
type Store struct {
	db     *bolt.DB
	bucket []byte
	index  []byte
}

// Open initializes the BoltDB file and ensures both buckets exist.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "buffer"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		bucket: []byte(bucket),
		index:  []byte(bucket + indexSuffix),
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(s.index)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Enqueue stores item, replacing any pending item for the same entity and key.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()
	item.bucketKey = buildKey(item)

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		items, index := tx.Bucket(s.bucket), tx.Bucket(s.index)
		if prev := index.Get(item.indexKey()); prev != nil {
			if err := items.Delete(prev); err != nil {
				return err
			}
		}
		if err := items.Put(item.bucketKey, payload); err != nil {
			return err
		}
		return index.Put(item.indexKey(), item.bucketKey)
	})
}

// Pending returns the queued item for entity/key, if any.
func (s *Store) Pending(entity, key string) (Item, bool, error) {
	if s == nil || s.db == nil {
		return Item{}, false, bolt.ErrDatabaseNotOpen
	}
	var (
		item  Item
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		ref := tx.Bucket(s.index).Get([]byte(entity + "/" + key))
		if ref == nil {
			return nil
		}
		raw := tx.Bucket(s.bucket).Get(ref)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		item.bucketKey = append([]byte(nil), ref...)
		found = true
		return nil
	})
	return item, found, err
}

// Drop removes the pending item for entity/key. Missing items are ignored.
func (s *Store) Drop(entity, key string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		ik := []byte(entity + "/" + key)
		index := tx.Bucket(s.index)
		ref := index.Get(ik)
		if ref == nil {
			return nil
		}
		if err := tx.Bucket(s.bucket).Delete(ref); err != nil {
			return err
		}
		return index.Delete(ik)
	})
}

// GetBatch returns up to limit items in replay order without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes item if it is still the pending write for its key.
// A newer write enqueued after item was read is left in place.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		items, index := tx.Bucket(s.bucket), tx.Bucket(s.index)
		ref := index.Get(item.indexKey())
		if ref == nil || string(ref) != string(item.bucketKey) {
			return nil
		}
		if err := items.Delete(ref); err != nil {
			return err
		}
		return index.Delete(item.indexKey())
	})
}

// Requeue bumps the retry counter and timestamp of item unless a newer
// write for the same key has superseded it.
func (s *Store) Requeue(item Item) error {
	current, ok, err := s.Pending(item.Entity, item.Key)
	if err != nil || !ok || current.ID != item.ID {
		return err
	}
	item.Retries++
	item.Timestamp = time.Now()
	return s.Enqueue(item)
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes items older than the provided timestamp.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		items, index := tx.Bucket(s.bucket), tx.Bucket(s.index)
		var expired []Item
		err := items.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			if item.Timestamp.Before(olderThan) {
				item.bucketKey = append([]byte(nil), k...)
				expired = append(expired, item)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, item := range expired {
			if err := items.Delete(item.bucketKey); err != nil {
				return err
			}
			if err := index.Delete(item.indexKey()); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
