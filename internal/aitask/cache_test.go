package aitask

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telreader/telugu-science-reader/internal/store"
)

func openTaskStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "reader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCacheKey_IgnoresKeyOrderAndWhitespace(t *testing.T) {
	t.Parallel()

	a, err := Key(TaskSimplifyTE, json.RawMessage(`{"id":1,"te":"వేడి"}`))
	require.NoError(t, err)
	b, err := Key(TaskSimplifyTE, json.RawMessage(`{ "te": "వేడి", "id": 1 }`))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Key(TaskGenerateGloss, json.RawMessage(`{"id":1,"te":"వేడి"}`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different tasks must not share keys")
}

func TestCache_LookupAfterStore(t *testing.T) {
	t.Parallel()

	cache := NewCache(openTaskStore(t))
	ctx := context.Background()
	payload := json.RawMessage(`{"id":7}`)

	_, ok, err := cache.Lookup(ctx, TaskBackCheck, payload)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(ctx, TaskBackCheck, payload, json.RawMessage(`{"ok":true}`)))

	result, ok, err := cache.Lookup(ctx, TaskBackCheck, payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestCacheKey_AbsentPayloadKeysAsNull(t *testing.T) {
	t.Parallel()

	a, err := Key(TaskDialectalVariants, nil)
	require.NoError(t, err)
	b, err := Key(TaskDialectalVariants, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCache_RoundTripWithoutPayload(t *testing.T) {
	t.Parallel()

	cache := NewCache(openTaskStore(t))
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, TaskCulturalReview, nil, json.RawMessage(`{"notes":[]}`)))

	result, ok, err := cache.Lookup(ctx, TaskCulturalReview, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"notes":[]}`, string(result))
}

func TestCache_InvalidPayloadIsRejected(t *testing.T) {
	t.Parallel()

	cache := NewCache(openTaskStore(t))
	_, _, err := cache.Lookup(context.Background(), TaskBackCheck, json.RawMessage(`{broken`))
	require.Error(t, err)
}
