package aiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/telreader/telugu-science-reader/internal/aitask"
	"github.com/telreader/telugu-science-reader/internal/llm"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// ChatClient is the slice of the LLM client the handler needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
	Model() string
}

// Handler serves the AI task endpoint. It turns a task request into a model
// prompt, forces the result into JSON, and stamps response metadata.
type Handler struct {
	client ChatClient
	now    func() time.Time
}

func NewHandler(client ChatClient) *Handler {
	return &Handler{client: client, now: time.Now}
}

type meta struct {
	Task      string `json:"task"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Tokens    int    `json:"tokens"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS,PATCH,DELETE,POST,PUT")
	w.Header().Set("Access-Control-Allow-Headers", "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	var req aitask.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Task == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing task parameter")
		return
	}

	prompt, err := buildPrompt(req.Task, req.Payload)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	resp, err := h.client.ChatCompletion(r.Context(), []llm.Message{
		{Role: "user", Content: prompt},
	}, llm.NewChatCompletionOptions().WithSystemPrompt(systemPrompt))
	if err != nil {
		log.Error("AI provider call failed for %s: %v", req.Task, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "AI provider error",
			"details": err.Error(),
		})
		return
	}

	content := "{}"
	if len(resp.Choices) > 0 {
		if trimmed := strings.TrimSpace(resp.Choices[0].Message.Content); trimmed != "" {
			content = trimmed
		}
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		result = map[string]any{
			"raw":   content,
			"error": "Failed to parse JSON from AI",
		}
	}

	h.checkScript(req.Task, result)

	result["_meta"] = meta{
		Task:      req.Task,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Model:     h.client.Model(),
		Tokens:    resp.Usage.TotalTokens,
	}

	writeJSON(w, http.StatusOK, result)
}

// checkScript logs when a Telugu field comes back in the wrong script. The
// response still goes out; the log is for prompt tuning.
func (h *Handler) checkScript(task string, result map[string]any) {
	var field string
	switch task {
	case aitask.TaskSimplifyTE:
		field = "simplified_te"
	case aitask.TaskGenerateGloss:
		field = "term_te"
	default:
		return
	}
	text, ok := result[field].(string)
	if !ok || text == "" {
		return
	}
	if info := whatlanggo.Detect(text); info.Lang != whatlanggo.Tel {
		log.Warn("%s.%s does not look like Telugu (detected %s)", task, field, whatlanggo.LangToString(info.Lang))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
