package reader

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedback_SubmitAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	f := NewFeedback(openReaderStore(t))
	ctx := context.Background()

	sid := 4
	first, err := f.Submit(ctx, FeedbackRecord{Category: "translation", Text: "Telugu wording is too formal", SentenceID: &sid})
	require.NoError(t, err)
	second, err := f.Submit(ctx, FeedbackRecord{Category: "general", Text: "Love the glossary"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	all, err := f.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, "translation", all[0].Category)
	require.NotNil(t, all[0].SentenceID)
	assert.Equal(t, 4, *all[0].SentenceID)
	assert.Nil(t, all[1].SentenceID)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func TestFeedback_ExportIsDateStampedJSONArray(t *testing.T) {
	t.Parallel()

	f := NewFeedback(openReaderStore(t))
	ctx := context.Background()

	_, err := f.Submit(ctx, FeedbackRecord{Category: "general", Text: "works offline, nice"})
	require.NoError(t, err)

	exportedAt := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	filename, data, err := f.Export(ctx, exportedAt)
	require.NoError(t, err)
	assert.Equal(t, "feedback-2026-03-14.json", filename)

	var decoded []FeedbackRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "works offline, nice", decoded[0].Text)
}

func TestFeedback_SubmitRequiresText(t *testing.T) {
	t.Parallel()

	f := NewFeedback(openReaderStore(t))
	_, err := f.Submit(context.Background(), FeedbackRecord{Category: "general"})
	require.Error(t, err)
}
