package reader

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/store"
)

// Analytics manages local usage counters keyed by namespaced event tags
// (e.g. "gloss:heat", "ai:simplify").
type Analytics struct {
	store *store.Store
}

func NewAnalytics(s *store.Store) *Analytics {
	return &Analytics{store: s}
}

// Increment bumps the counter by one via read-increment-write and returns
// the new count.
func (a *Analytics) Increment(ctx context.Context, key string) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, apperr.New(apperr.ErrValidation, "analytics key is required")
	}

	counter := AnalyticsCounter{Key: key}
	rec, ok, err := a.store.ReadOne(ctx, store.CollectionAnalytics, key)
	if err != nil {
		return 0, err
	}
	if ok {
		if err := json.Unmarshal(rec.Payload, &counter); err != nil {
			return 0, apperr.Wrap(err, apperr.ErrParse, "decode analytics counter").WithContext("key", key)
		}
	}
	counter.Count++

	payload, err := json.Marshal(counter)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrParse, "encode analytics counter")
	}
	if err := a.store.Write(ctx, store.CollectionAnalytics, store.Record{Key: key, Payload: payload}); err != nil {
		return 0, err
	}
	return counter.Count, nil
}

// TopByPrefix returns up to n counters matching the prefix, highest count
// first.
func (a *Analytics) TopByPrefix(ctx context.Context, prefix string, n int) ([]AnalyticsCounter, error) {
	recs, err := a.store.ReadAll(ctx, store.CollectionAnalytics)
	if err != nil {
		return nil, err
	}

	ret := make([]AnalyticsCounter, 0, len(recs))
	for _, rec := range recs {
		if !strings.HasPrefix(rec.Key, prefix) {
			continue
		}
		var counter AnalyticsCounter
		if err := json.Unmarshal(rec.Payload, &counter); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrParse, "decode analytics counter").WithContext("key", rec.Key)
		}
		ret = append(ret, counter)
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Count != ret[j].Count {
			return ret[i].Count > ret[j].Count
		}
		return ret[i].Key < ret[j].Key
	})
	if n > 0 && len(ret) > n {
		ret = ret[:n]
	}
	return ret, nil
}
