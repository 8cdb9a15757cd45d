package reader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Bootstrap drives initial state: it loads the bundled sentence data into
// the library and seeds the glossary collection when empty. One Bootstrap
// serves both the paginated and the full-load reading modes; pagination is
// a parameter of the library, not a separate code path.
type Bootstrap struct {
	Library  *Library
	Glossary *Glossary
	DataDir  string
}

// Run performs the one-time bootstrap sequence. The durable store (or the
// bundled JSON) stays the source of truth; the in-memory sentence list is a
// working copy.
func (b *Bootstrap) Run(ctx context.Context) error {
	sentences, err := b.loadSentences()
	if err != nil {
		return err
	}
	if err := b.Library.SetAll(ctx, sentences); err != nil {
		return err
	}
	log.Info("Loaded %d sentences", len(sentences))

	terms, err := b.loadGlossaryTerms()
	if err != nil {
		return err
	}
	if _, err := b.Glossary.SeedIfEmpty(ctx, terms); err != nil {
		return err
	}
	return nil
}

func (b *Bootstrap) loadSentences() ([]SentencePair, error) {
	path := filepath.Join(b.DataDir, "data", "sentences.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "read bundled sentences").WithContext("path", path)
	}
	var ret []SentencePair
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrParse, "decode bundled sentences").WithContext("path", path)
	}
	return ret, nil
}

func (b *Bootstrap) loadGlossaryTerms() ([]GlossaryTerm, error) {
	path := filepath.Join(b.DataDir, "data", "glossary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "read bundled glossary").WithContext("path", path)
	}
	var ret []GlossaryTerm
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrParse, "decode bundled glossary").WithContext("path", path)
	}
	return ret, nil
}
