package aitask

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telreader/telugu-science-reader/internal/apperr"
)

func TestClient_PostsTaskAndPayload(t *testing.T) {
	t.Parallel()

	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"gloss":"ఉష్ణం"}`))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).Do(context.Background(), TaskGenerateGloss, json.RawMessage(`{"term":"heat"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"gloss":"ఉష్ణం"}`, string(result))
	assert.Equal(t, TaskGenerateGloss, got.Task)
	assert.JSONEq(t, `{"term":"heat"}`, string(got.Payload))
}

func TestClient_ErrorStatusIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream quota exceeded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Do(context.Background(), TaskBackCheck, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperr.IsErrorType(err, apperr.ErrNetwork))
}

func TestClient_UnreachableEndpointIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL).Do(context.Background(), TaskBackCheck, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperr.IsErrorType(err, apperr.ErrNetwork))
}

func TestClient_NonJSONBodyIsWrapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Sorry, I cannot answer that."))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).Do(context.Background(), TaskCulturalReview, json.RawMessage(`{}`))
	require.NoError(t, err)

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(result, &wrapped))
	assert.Equal(t, "Sorry, I cannot answer that.", wrapped["raw"])
	assert.NotEmpty(t, wrapped["error"])
}
