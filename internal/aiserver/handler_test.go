package aiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telreader/telugu-science-reader/internal/llm"
)

type fakeChat struct {
	lastMessages []llm.Message
	lastOpts     *llm.ChatCompletionOptions
	content      string
	tokens       int
	err          error
}

func (f *fakeChat) ChatCompletion(_ context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error) {
	f.lastMessages = messages
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{Role: "assistant", Content: f.content}}},
		Usage:   llm.Usage{TotalTokens: f.tokens},
	}, nil
}

func (f *fakeChat) Model() string { return "test-model" }

func newTestHandler(chat *fakeChat) *Handler {
	h := NewHandler(chat)
	h.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return h
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ai", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SimplifyTaskReturnsResultWithMeta(t *testing.T) {
	chat := &fakeChat{content: `{"simplified_te":"వేడి వెళుతుంది.","simplified_en":"Heat moves.","changes":"shorter"}`, tokens: 42}
	h := newTestHandler(chat)

	rec := post(t, h, `{"task":"simplify_te","payload":{"te":"వేడి వేడిగా ఉన్న వస్తువు నుండి చల్లని వస్తువుకు ప్రవహిస్తుంది.","en":"Heat flows."}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Heat moves.", result["simplified_en"])

	meta, ok := result["_meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "simplify_te", meta["task"])
	assert.Equal(t, "test-model", meta["model"])
	assert.Equal(t, "2026-03-14T09:30:00Z", meta["timestamp"])
	assert.EqualValues(t, 42, meta["tokens"])

	// The prompt carries the payload text and the system rules ride along.
	require.Len(t, chat.lastMessages, 1)
	assert.Contains(t, chat.lastMessages[0].Content, "వేడి వేడిగా")
	assert.Contains(t, chat.lastOpts.SystemPrompt, "Return ONLY valid JSON")
}

func TestHandler_NonJSONModelOutputIsWrapped(t *testing.T) {
	chat := &fakeChat{content: "I am sorry, I cannot help with that."}
	rec := post(t, newTestHandler(chat), `{"task":"back_check","payload":{"en":"Heat flows.","te":"వేడి ప్రవహిస్తుంది."}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "I am sorry, I cannot help with that.", result["raw"])
	assert.Equal(t, "Failed to parse JSON from AI", result["error"])
	assert.Contains(t, result, "_meta")
}

func TestHandler_EmptyModelOutputBecomesEmptyObject(t *testing.T) {
	chat := &fakeChat{content: "   "}
	rec := post(t, newTestHandler(chat), `{"task":"cultural_review","payload":{"en":"x","te":"y"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotContains(t, result, "raw")
	assert.Contains(t, result, "_meta")
}

func TestHandler_MissingTaskIsBadRequest(t *testing.T) {
	rec := post(t, newTestHandler(&fakeChat{content: "{}"}), `{"payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ai", nil)
	rec := httptest.NewRecorder()
	newTestHandler(&fakeChat{content: "{}"}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_OptionsPreflightSucceeds(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/ai", nil)
	rec := httptest.NewRecorder()
	newTestHandler(&fakeChat{content: "{}"}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_ProviderFailureIsBadGateway(t *testing.T) {
	chat := &fakeChat{err: assert.AnError}
	rec := post(t, newTestHandler(chat), `{"task":"generate_gloss","payload":{"term_en":"conduction"}}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBuildPrompt_DefaultsAndUnknownTask(t *testing.T) {
	prompt, err := buildPrompt("simplify_te", json.RawMessage(`{"te":"వేడి"}`))
	require.NoError(t, err)
	assert.Contains(t, prompt, "7th grade reading level")
	assert.Contains(t, prompt, "Not provided")

	prompt, err = buildPrompt("weird_task", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Contains(t, prompt, "weird_task")
	assert.Contains(t, prompt, `{"error": "unknown task"}`)
}
