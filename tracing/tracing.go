// Package tracing forwards run feedback to a LangSmith-compatible collector.
package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Feedback is one scored observation attached to a run.
type Feedback struct {
	RunID   string  `json:"run_id"`
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

type Client interface {
	CreateFeedback(ctx context.Context, fb Feedback) error
}

type httpClient struct {
	endpoint string
	apiKey   string
	project  string
	client   *http.Client
}

type Options struct {
	Endpoint string
	APIKey   string
	Project  string
}

// NewClient builds a feedback client. With an empty API key a no-op client is
// returned so callers never need to branch.
func NewClient(opts Options) Client {
	if opts.APIKey == "" {
		return NewNoop()
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://api.smith.langchain.com"
	}

	return &httpClient{
		endpoint: endpoint,
		apiKey:   opts.APIKey,
		project:  opts.Project,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) CreateFeedback(ctx context.Context, fb Feedback) error {
	if fb.RunID == "" {
		return fmt.Errorf("feedback requires a run id")
	}

	body, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v1/feedback", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create feedback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call feedback API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("feedback API error: %s", string(data))
		}
		return fmt.Errorf("feedback API returned status %s", resp.Status)
	}

	return nil
}

type noopClient struct{}

// NewNoop returns a client that records nothing.
func NewNoop() Client {
	return noopClient{}
}

func (noopClient) CreateFeedback(ctx context.Context, fb Feedback) error {
	return nil
}
