package reader

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/store"
)

// Library holds the bundled sentence pairs in memory and pages them out on
// demand. The in-memory copy is not authoritative: simplified-translation
// overrides persist in the sentences collection and are re-applied on every
// bootstrap.
type Library struct {
	store    *store.Store
	pageSize int

	mu        sync.RWMutex
	sentences []SentencePair
	byID      map[int]int
}

func NewLibrary(s *store.Store, pageSize int) *Library {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Library{
		store:    s,
		pageSize: pageSize,
		byID:     make(map[int]int),
	}
}

func (l *Library) PageSize() int {
	return l.pageSize
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sentences)
}

// SetAll replaces the in-memory sentence list, then overlays any persisted
// overrides so accepted simplifications survive a reload of the bundled data.
func (l *Library) SetAll(ctx context.Context, sentences []SentencePair) error {
	overrides, err := l.loadOverrides(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sentences = make([]SentencePair, len(sentences))
	l.byID = make(map[int]int, len(sentences))
	for i, s := range sentences {
		if override, ok := overrides[s.ID]; ok {
			s = override
		}
		l.sentences[i] = s
		l.byID[s.ID] = i
	}
	return nil
}

// Page returns up to limit sentences starting at offset. A non-positive
// limit uses the configured page size.
func (l *Library) Page(offset, limit int) []SentencePair {
	if limit <= 0 {
		limit = l.pageSize
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if offset < 0 || offset >= len(l.sentences) {
		return []SentencePair{}
	}
	end := offset + limit
	if end > len(l.sentences) {
		end = len(l.sentences)
	}
	ret := make([]SentencePair, end-offset)
	copy(ret, l.sentences[offset:end])
	return ret
}

func (l *Library) Get(id int) (SentencePair, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return SentencePair{}, false
	}
	return l.sentences[i], true
}

// SaveSimplified records an accepted simplification for the sentence,
// retaining the original text, and persists the full override record.
func (l *Library) SaveSimplified(ctx context.Context, id int, result SimplifiedResult) (SentencePair, error) {
	l.mu.Lock()
	i, ok := l.byID[id]
	if !ok {
		l.mu.Unlock()
		return SentencePair{}, apperr.New(apperr.ErrValidation, "sentence not found").WithContext("id", id)
	}
	s := l.sentences[i]
	if s.TEOriginal == "" {
		s.TEOriginal = s.TE
	}
	if s.ENOriginal == "" {
		s.ENOriginal = s.EN
	}
	s.TESimplified = result.SimplifiedTE
	s.ENSimplified = result.SimplifiedEN
	s.Changes = result.Changes
	l.sentences[i] = s
	l.mu.Unlock()

	payload, err := json.Marshal(s)
	if err != nil {
		return SentencePair{}, apperr.Wrap(err, apperr.ErrParse, "encode sentence override")
	}
	if err := l.store.Write(ctx, store.CollectionSentences, store.Record{
		Key:     strconv.Itoa(id),
		Payload: payload,
	}); err != nil {
		return SentencePair{}, err
	}
	return s, nil
}

func (l *Library) loadOverrides(ctx context.Context) (map[int]SentencePair, error) {
	recs, err := l.store.ReadAll(ctx, store.CollectionSentences)
	if err != nil {
		return nil, err
	}
	ret := make(map[int]SentencePair, len(recs))
	for _, rec := range recs {
		var s SentencePair
		if err := json.Unmarshal(rec.Payload, &s); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrParse, "decode sentence override").WithContext("key", rec.Key)
		}
		ret[s.ID] = s
	}
	return ret, nil
}
