package webapp

import (
	"context"
	"net/http"
	"time"

	"github.com/telreader/telugu-science-reader/internal/aitask"
	"github.com/telreader/telugu-science-reader/internal/connectivity"
	"github.com/telreader/telugu-science-reader/internal/reader"
)

// Server wires the reading tool's HTTP API: sentences, glossary, feedback,
// analytics, the offline-aware AI entry point, and the replay queue.
type Server struct {
	library    *reader.Library
	glossary   *reader.Glossary
	feedback   *reader.Feedback
	analytics  *reader.Analytics
	queue      *aitask.Queue
	dispatcher *aitask.Dispatcher
	monitor    *connectivity.Monitor

	aiHandler http.Handler
	static    http.Handler

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithAIEndpoint mounts the AI provider forwarder at /api/ai.
func WithAIEndpoint(h http.Handler) Option {
	return func(s *Server) {
		s.aiHandler = h
	}
}

// WithStatic serves everything outside /api/ from the given handler,
// typically the cache-first asset proxy.
func WithStatic(h http.Handler) Option {
	return func(s *Server) {
		s.static = h
	}
}

func NewServer(
	library *reader.Library,
	glossary *reader.Glossary,
	feedback *reader.Feedback,
	analytics *reader.Analytics,
	queue *aitask.Queue,
	dispatcher *aitask.Dispatcher,
	monitor *connectivity.Monitor,
	opts ...Option,
) *Server {
	s := &Server{
		library:    library,
		glossary:   glossary,
		feedback:   feedback,
		analytics:  analytics,
		queue:      queue,
		dispatcher: dispatcher,
		monitor:    monitor,
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return requestLogging(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/sentences", s.handleSentences)
	s.mux.HandleFunc("/api/sentences/", s.handleSentenceSimplified)
	s.mux.HandleFunc("/api/glossary", s.handleGlossary)
	s.mux.HandleFunc("/api/feedback", s.handleFeedback)
	s.mux.HandleFunc("/api/feedback/export", s.handleFeedbackExport)
	s.mux.HandleFunc("/api/analytics", s.handleAnalytics)
	s.mux.HandleFunc("/api/assist", s.handleAssist)
	s.mux.HandleFunc("/api/queue", s.handleQueue)
	s.mux.HandleFunc("/api/queue/drain", s.handleQueueDrain)
	s.mux.HandleFunc("/api/queue/stream", s.handleQueueStream)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	if s.aiHandler != nil {
		s.mux.Handle("/api/ai", s.aiHandler)
	}
	if s.static != nil {
		s.mux.Handle("/", s.static)
	} else {
		s.mux.HandleFunc("/", http.NotFound)
	}
}
