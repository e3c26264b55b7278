// Package cache is the persistent key/value store that maps canonical query
// keys to result paths.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache entry not found")

// Key is the sha1 hex digest of raw key material. Stores never see raw keys.
type Key string

func Hash(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func NewKey(raw string) Key {
	return Key(Hash(raw))
}

// ParseKey accepts a key that already went through Hash, e.g. from a URL.
func ParseKey(s string) (Key, bool) {
	if len(s) != sha1.Size*2 {
		return "", false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", false
	}
	return Key(s), true
}

type Entry struct {
	Key      Key
	Value    string
	Created  time.Time
	Modified time.Time
	Accessed time.Time
}

// Store is the cache contract. Set is an upsert and Get refreshes the access
// time of the entry it returns. Entry reads the row without touching it and
// fails with ErrNotFound on a miss. Entries never expire.
type Store interface {
	Has(ctx context.Context, key Key) (bool, error)
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string) (string, error)
	Remove(ctx context.Context, key Key) error
	Touch(ctx context.Context, key Key) error
	Entry(ctx context.Context, key Key) (*Entry, error)
}
