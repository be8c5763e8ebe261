// Package cache persists per-repository scan results in a bbolt database,
// keyed by a content fingerprint.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/repopulse/pkg/persist"
)

// DatabaseFile is the bbolt file created inside the cache directory.
const DatabaseFile = "repositories.db"

const (
	bucketName  = "repositories"
	dbFileMode  = 0o600
	dirMode     = 0o755
	openTimeout = 5 * time.Second
	keySep      = "\x00"
)

// ErrCache wraps storage failures.
var ErrCache = errors.New("cache error")

// LookupFunc observes every lookup outcome.
type LookupFunc func(hit bool)

// Store is a fingerprint-keyed record cache. Lookups for the same key are
// collapsed so at most one computation and one write happen per key.
type Store[T any] struct {
	db       *bbolt.DB
	codec    persist.Codec
	group    singleflight.Group
	onLookup LookupFunc

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens (or creates) the cache database in dir.
func Open[T any](dir string, onLookup LookupFunc) (*Store[T], error) {
	mkdirErr := os.MkdirAll(dir, dirMode)
	if mkdirErr != nil {
		return nil, fmt.Errorf("%w: create cache dir: %w", ErrCache, mkdirErr)
	}

	db, err := bbolt.Open(filepath.Join(dir, DatabaseFile), dbFileMode, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrCache, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, bucketErr := tx.CreateBucketIfNotExists([]byte(bucketName))

		return bucketErr
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("%w: create bucket: %w", ErrCache, err)
	}

	return &Store[T]{
		db:       db,
		codec:    persist.NewLZ4Codec(nil),
		onLookup: onLookup,
	}, nil
}

// Close releases the database.
func (s *Store[T]) Close() error {
	return s.db.Close()
}

// Get returns the cached value for key.
func (s *Store[T]) Get(key string) (T, bool, error) {
	var (
		value T
		found bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}

		found = true

		return s.codec.Decode(bytes.NewReader(data), &value)
	})
	if err != nil {
		var zero T

		return zero, false, fmt.Errorf("%w: read %s: %w", ErrCache, key, err)
	}

	return value, found, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store[T]) Put(key string, value T) error {
	var buf bytes.Buffer

	encodeErr := s.codec.Encode(&buf, value)
	if encodeErr != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrCache, key, encodeErr)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrCache, key, err)
	}

	return nil
}

type outcome[T any] struct {
	value T
	hit   bool
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result when compute reports it cacheable. Concurrent callers with the
// same key share one execution. A read or write failure is returned together
// with a usable value; callers may treat it as a warning.
func (s *Store[T]) GetOrCompute(key string, compute func() (T, bool)) (T, bool, error) {
	var storeErr error

	res, _, _ := s.group.Do(key, func() (any, error) {
		cached, found, getErr := s.Get(key)
		if getErr == nil && found {
			s.record(true)

			return outcome[T]{value: cached, hit: true}, nil
		}

		s.record(false)

		value, cacheable := compute()
		if cacheable {
			storeErr = s.Put(key, value)
		}

		if getErr != nil {
			storeErr = errors.Join(getErr, storeErr)
		}

		return outcome[T]{value: value}, nil
	})

	out, _ := res.(outcome[T])

	return out.value, out.hit, storeErr
}

// Stats returns hit and miss counts since Open.
func (s *Store[T]) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *Store[T]) record(hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}

	if s.onLookup != nil {
		s.onLookup(hit)
	}
}

// Fingerprint hashes the parts into a stable hex key. Parts are separated
// so that ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, keySep)))

	return hex.EncodeToString(sum[:])
}
