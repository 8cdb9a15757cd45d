package aitask

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/store"
)

// Cache memoizes AI results by task and payload. Entries never expire;
// identical requests are answered from the store without a network call.
type Cache struct {
	store *store.Store
}

func NewCache(s *store.Store) *Cache {
	return &Cache{store: s}
}

// Key derives the cache key for a task and payload. The payload is decoded
// and re-encoded so that key order and whitespace in the caller's JSON do
// not produce distinct keys. An absent payload keys the same as JSON null.
func Key(task string, payload json.RawMessage) (string, error) {
	canonical := []byte("null")
	if len(payload) > 0 {
		var decoded any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return "", apperr.Wrap(err, apperr.ErrParse, "decode payload for cache key").WithContext("task", task)
		}
		var err error
		canonical, err = json.Marshal(decoded)
		if err != nil {
			return "", apperr.Wrap(err, apperr.ErrParse, "canonicalize payload").WithContext("task", task)
		}
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("ai:%s:%s", task, hex.EncodeToString(sum[:])), nil
}

// Lookup returns the cached result for the request, if any.
func (c *Cache) Lookup(ctx context.Context, task string, payload json.RawMessage) (json.RawMessage, bool, error) {
	key, err := Key(task, payload)
	if err != nil {
		return nil, false, err
	}
	rec, ok, err := c.store.ReadOne(ctx, store.CollectionAICache, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec.Payload, true, nil
}

// Store records a result under the request's key, replacing any prior entry.
func (c *Cache) Store(ctx context.Context, task string, payload, result json.RawMessage) error {
	key, err := Key(task, payload)
	if err != nil {
		return err
	}
	return c.store.Write(ctx, store.CollectionAICache, store.Record{Key: key, Payload: result})
}
