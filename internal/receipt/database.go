package receipt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const extractionBucketName = "extractions"

type boltEntry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Result    *Result   `json:"result"`
}

// BoltCache implements Cache on a BoltDB file so results survive restarts within the window
type BoltCache struct {
	db         *bbolt.DB
	ttl        time.Duration
	timeSource TimeSource
}

// NewBoltCache creates a new BoltCache instance
func NewBoltCache(path string, ttl time.Duration) (*BoltCache, error) {
	return NewBoltCacheWithDeps(path, ttl, &defaultTimeSource{})
}

// NewBoltCacheWithDeps creates a new BoltCache with a custom time source for testing
func NewBoltCacheWithDeps(path string, ttl time.Duration, timeSrc TimeSource) (*BoltCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(extractionBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltCache{db: db, ttl: ttl, timeSource: timeSrc}, nil
}

// Get returns the cached result for key if it has not expired
func (b *BoltCache) Get(key string) (*Result, bool) {
	var entry boltEntry
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(extractionBucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		slog.Warn("Failed to read cache entry", "error", err)
		return nil, false
	}
	if !found || entry.Result == nil {
		return nil, false
	}
	if !b.timeSource.Now().Before(entry.ExpiresAt) {
		if err := b.delete(key); err != nil {
			slog.Warn("Failed to delete expired cache entry", "error", err)
		}
		return nil, false
	}
	return entry.Result, true
}

// Set stores result under key. An existing live entry is left untouched.
func (b *BoltCache) Set(key string, result *Result) error {
	now := b.timeSource.Now()
	data, err := json.Marshal(boltEntry{ExpiresAt: now.Add(b.ttl), Result: result})
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(extractionBucketName))
		if existing := bucket.Get([]byte(key)); existing != nil {
			var entry boltEntry
			if err := json.Unmarshal(existing, &entry); err == nil && now.Before(entry.ExpiresAt) {
				return nil
			}
		}
		return bucket.Put([]byte(key), data)
	})
}

// Prune removes every expired entry and returns how many were removed
func (b *BoltCache) Prune() (int, error) {
	now := b.timeSource.Now()
	removed := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(extractionBucketName))
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry boltEntry
			if err := json.Unmarshal(v, &entry); err != nil || !now.Before(entry.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("deleting cache entry: %w", err)
			}
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}

func (b *BoltCache) delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(extractionBucketName)).Delete([]byte(key))
	})
}

// TTL returns the effective cache window
func (b *BoltCache) TTL() time.Duration {
	return b.ttl
}

// Close closes the database connection
func (b *BoltCache) Close() error {
	return b.db.Close()
}
