package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/store"
)

// Feedback manages the append-only feedback log. Records are never mutated
// or deleted; export produces the full log as one JSON array.
type Feedback struct {
	store *store.Store
}

func NewFeedback(s *store.Store) *Feedback {
	return &Feedback{store: s}
}

// Submit appends a record and returns its assigned identifier.
func (f *Feedback) Submit(ctx context.Context, rec FeedbackRecord) (int64, error) {
	if strings.TrimSpace(rec.Text) == "" {
		return 0, apperr.New(apperr.ErrValidation, "feedback text is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ID = 0 // assigned by the store key
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrParse, "encode feedback record")
	}
	return f.store.Append(ctx, store.CollectionFeedback, payload)
}

func (f *Feedback) All(ctx context.Context) ([]FeedbackRecord, error) {
	recs, err := f.store.ReadAll(ctx, store.CollectionFeedback)
	if err != nil {
		return nil, err
	}
	ret := make([]FeedbackRecord, 0, len(recs))
	for _, rec := range recs {
		var item FeedbackRecord
		if err := json.Unmarshal(rec.Payload, &item); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrParse, "decode feedback record").WithContext("key", rec.Key)
		}
		if id, err := strconv.ParseInt(rec.Key, 10, 64); err == nil {
			item.ID = id
		}
		ret = append(ret, item)
	}
	return ret, nil
}

// Export renders the full feedback log as an indented JSON array together
// with a filename date-stamped at export time.
func (f *Feedback) Export(ctx context.Context, now time.Time) (string, []byte, error) {
	all, err := f.All(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return "", nil, apperr.Wrap(err, apperr.ErrParse, "encode feedback export")
	}
	filename := fmt.Sprintf("feedback-%s.json", now.UTC().Format("2006-01-02"))
	return filename, data, nil
}
