package aitask

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/telreader/telugu-science-reader/internal/apperr"
)

// Client posts AI task requests to the local AI endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Do sends the request and returns the result body. Transport failures come
// back as network errors so callers can queue the request instead.
func (c *Client) Do(ctx context.Context, task string, payload json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(Request{Task: task, Payload: payload})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrParse, "encode AI request").WithContext("task", task)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUnknown, "build AI request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrNetwork, "AI endpoint unreachable").WithContext("task", task)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrNetwork, "read AI response").WithContext("task", task)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.New(apperr.ErrNetwork, "AI endpoint returned an error").
			WithContext("task", task).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(data))
	}

	if !json.Valid(data) {
		fallback, _ := json.Marshal(map[string]string{
			"raw":   string(data),
			"error": "Model did not return valid JSON",
		})
		return fallback, nil
	}
	return data, nil
}
