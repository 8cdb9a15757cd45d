package reader

import "time"

// SentencePair is one bilingual sentence of the bundled reading material.
// The simplified fields are populated when a teacher accepts an AI-simplified
// rendering; the originals are retained alongside.
type SentencePair struct {
	ID int    `json:"id"`
	EN string `json:"en"`
	TE string `json:"te"`

	TEOriginal   string `json:"te_original,omitempty"`
	ENOriginal   string `json:"en_original,omitempty"`
	TESimplified string `json:"te_simplified,omitempty"`
	ENSimplified string `json:"en_simplified,omitempty"`
	Changes      string `json:"simplification_changes,omitempty"`
}

// GlossaryTerm is a bilingual glossary entry keyed by the lower-cased
// English term.
type GlossaryTerm struct {
	TermEN   string   `json:"term_en"`
	TermTE   string   `json:"term_te"`
	Defs     []string `json:"defs"`
	Examples []string `json:"examples"`
}

// FeedbackRecord is an append-only teacher feedback entry. The JSON field
// names match the export format consumed downstream.
type FeedbackRecord struct {
	ID         int64     `json:"id"`
	Category   string    `json:"type"`
	Text       string    `json:"text"`
	SentenceID *int      `json:"sentenceId,omitempty"`
	CreatedAt  time.Time `json:"tsISO"`
}

// AnalyticsCounter is a monotonically incremented usage counter.
type AnalyticsCounter struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// SimplifiedResult is the accepted output of a simplify_te task.
type SimplifiedResult struct {
	SimplifiedTE string `json:"simplified_te"`
	SimplifiedEN string `json:"simplified_en"`
	Changes      string `json:"changes"`
}
