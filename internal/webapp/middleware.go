package webapp

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telreader/telugu-science-reader/pkg/log"
)

// requestLogging tags each request with an ID and logs API calls on the
// way out. Static asset traffic is logged at debug to keep the log usable.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, recorder.status, elapsed, requestID)
		} else {
			log.Debug("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, recorder.status, elapsed, requestID)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE working through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
