package webproxy

import (
	"bytes"
	"io"
	"net/http"
)

// HandlerTransport executes requests against an in-process handler, so the
// proxy can front the app's own static file server without a network hop.
type HandlerTransport struct {
	Handler http.Handler
}

func (t HandlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := &bufferedResponse{header: make(http.Header), status: http.StatusOK}
	t.Handler.ServeHTTP(rec, req)
	return &http.Response{
		StatusCode:    rec.status,
		Status:        http.StatusText(rec.status),
		Header:        rec.header,
		Body:          io.NopCloser(bytes.NewReader(rec.body.Bytes())),
		ContentLength: int64(rec.body.Len()),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}, nil
}

type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *bufferedResponse) Header() http.Header { return r.header }

func (r *bufferedResponse) Write(p []byte) (int, error) { return r.body.Write(p) }

func (r *bufferedResponse) WriteHeader(status int) { r.status = status }
