package webapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/telreader/telugu-science-reader/internal/aitask"
	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/reader"
)

func (s *Server) handleSentences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)
	writeJSON(w, http.StatusOK, sentencesResponse{
		Total:     s.library.Len(),
		Offset:    offset,
		Sentences: s.library.Page(offset, limit),
	})
}

type sentencesResponse struct {
	Total     int                   `json:"total"`
	Offset    int                   `json:"offset"`
	Sentences []reader.SentencePair `json:"sentences"`
}

// handleSentenceSimplified persists an accepted simplification:
// POST /api/sentences/{id}/simplified
func (s *Server) handleSentenceSimplified(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sentences/")
	idPart, ok := strings.CutSuffix(path, "/simplified")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.Atoi(strings.TrimSuffix(idPart, "/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sentence id")
		return
	}

	var result reader.SimplifiedResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := s.library.SaveSimplified(r.Context(), id, result)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if term := r.URL.Query().Get("term"); term != "" {
			entry, ok, err := s.glossary.Get(r.Context(), term)
			if err != nil {
				writeAppError(w, err)
				return
			}
			if !ok {
				writeError(w, http.StatusNotFound, "term not found")
				return
			}
			writeJSON(w, http.StatusOK, entry)
			return
		}
		terms, err := s.glossary.All(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, terms)

	case http.MethodPost:
		var term reader.GlossaryTerm
		if err := json.NewDecoder(r.Body).Decode(&term); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.glossary.Put(r.Context(), term); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, term)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var record reader.FeedbackRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.feedback.Submit(r.Context(), record)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleFeedbackExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename, data, err := s.feedback.Export(r.Context(), time.Now())
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Key string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key == "" {
			writeError(w, http.StatusBadRequest, "missing counter key")
			return
		}
		count, err := s.analytics.Increment(r.Context(), body.Key)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reader.AnalyticsCounter{Key: body.Key, Count: count})

	case http.MethodGet:
		top, err := s.analytics.TopByPrefix(r.Context(), r.URL.Query().Get("prefix"), queryInt(r, "n", 10))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, top)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAssist is the offline-aware AI entry point. Cached answers come
// back immediately; while offline the request lands in the replay queue
// and the client gets a 202 with the queued notice.
func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Task    string          `json:"task"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.dispatcher.Call(r.Context(), req.Task, req.Payload)
	if err != nil {
		if apperr.IsErrorType(err, apperr.ErrOffline) {
			writeJSON(w, http.StatusAccepted, map[string]any{
				"queued":  true,
				"message": appErrMessage(err),
			})
			return
		}
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobs, err := s.queue.All(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResponse{Online: s.monitor.Online(), Jobs: jobs})
}

type queueResponse struct {
	Online bool         `json:"online"`
	Jobs   []aitask.Job `json:"jobs"`
}

func (s *Server) handleQueueDrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	replayed, err := s.dispatcher.Drain(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"replayed": replayed})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pending, err := s.queue.Len(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"online":  s.monitor.Online(),
		"pending": pending,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsErrorType(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, appErrMessage(err))
	case apperr.IsErrorType(err, apperr.ErrNetwork):
		writeError(w, http.StatusBadGateway, appErrMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, appErrMessage(err))
	}
}

func appErrMessage(err error) string {
	var re *apperr.ReaderError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
