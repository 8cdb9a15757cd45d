package reader

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/store"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Glossary manages the bilingual term collection. Terms are keyed by the
// lower-cased English term; entries are only ever created or replaced, never
// deleted.
type Glossary struct {
	store *store.Store
	lower cases.Caser
}

func NewGlossary(s *store.Store) *Glossary {
	return &Glossary{
		store: s,
		lower: cases.Lower(language.English),
	}
}

// NormalizeTerm produces the storage key for an English term.
func (g *Glossary) NormalizeTerm(term string) string {
	return g.lower.String(strings.TrimSpace(term))
}

func (g *Glossary) All(ctx context.Context) ([]GlossaryTerm, error) {
	recs, err := g.store.ReadAll(ctx, store.CollectionGlossary)
	if err != nil {
		return nil, err
	}
	ret := make([]GlossaryTerm, 0, len(recs))
	for _, rec := range recs {
		var term GlossaryTerm
		if err := json.Unmarshal(rec.Payload, &term); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrParse, "decode glossary term").WithContext("key", rec.Key)
		}
		ret = append(ret, term)
	}
	return ret, nil
}

func (g *Glossary) Get(ctx context.Context, term string) (GlossaryTerm, bool, error) {
	rec, ok, err := g.store.ReadOne(ctx, store.CollectionGlossary, g.NormalizeTerm(term))
	if err != nil || !ok {
		return GlossaryTerm{}, false, err
	}
	var ret GlossaryTerm
	if err := json.Unmarshal(rec.Payload, &ret); err != nil {
		return GlossaryTerm{}, false, apperr.Wrap(err, apperr.ErrParse, "decode glossary term").WithContext("key", rec.Key)
	}
	return ret, true, nil
}

// Put upserts a term, typically an accepted AI-generated entry.
func (g *Glossary) Put(ctx context.Context, term GlossaryTerm) error {
	if strings.TrimSpace(term.TermEN) == "" {
		return apperr.New(apperr.ErrValidation, "term_en is required")
	}
	payload, err := json.Marshal(term)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrParse, "encode glossary term")
	}
	return g.store.Write(ctx, store.CollectionGlossary, store.Record{
		Key:     g.NormalizeTerm(term.TermEN),
		Payload: payload,
	})
}

// SeedIfEmpty loads the bundled terms into an empty glossary collection and
// reports how many were written. A non-empty collection is left untouched.
func (g *Glossary) SeedIfEmpty(ctx context.Context, terms []GlossaryTerm) (int, error) {
	existing, err := g.store.ReadAll(ctx, store.CollectionGlossary)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	recs := make([]store.Record, 0, len(terms))
	for _, term := range terms {
		if strings.TrimSpace(term.TermEN) == "" {
			log.Warn("Skipping bundled glossary entry without term_en")
			continue
		}
		payload, err := json.Marshal(term)
		if err != nil {
			return 0, apperr.Wrap(err, apperr.ErrParse, "encode glossary term")
		}
		recs = append(recs, store.Record{
			Key:     g.NormalizeTerm(term.TermEN),
			Payload: payload,
		})
	}
	if err := g.store.WriteBatch(ctx, store.CollectionGlossary, recs); err != nil {
		return 0, err
	}
	log.Info("Seeded %d glossary terms", len(recs))
	return len(recs), nil
}
