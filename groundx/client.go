// Package groundx is a client for the GroundX content-search API. It returns
// ranked text snippets with relevance scores and originating filenames.
package groundx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
)

const (
	defaultBaseURL  = "https://api.groundx.ai"
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
)

// SearchResult is one ranked snippet from a content search. FileName may be
// empty when the backend cannot attribute the snippet to a document.
type SearchResult struct {
	Score         float64 `json:"score"`
	SuggestedText string  `json:"suggestedText"`
	FileName      string  `json:"fileName"`
}

// Searcher is the part of the client the retrieval pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, bucketID, query string, n int) ([]SearchResult, error)
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	N     int    `json:"n"`
}

type searchResponse struct {
	Search struct {
		Results []SearchResult `json:"results"`
	} `json:"search"`
	Message string `json:"message"`
}

// Search runs one content search against the given bucket, returning up to n
// ranked results. Transient failures are retried; the last error wins.
func (c *Client) Search(ctx context.Context, bucketID, query string, n int) ([]SearchResult, error) {
	results, err := retry.DoWithData(
		func() ([]SearchResult, error) {
			return c.search(ctx, bucketID, query, n)
		},
		retry.Context(ctx),
		retry.Attempts(defaultAttempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, bucketID, query string, n int) ([]SearchResult, error) {
	body, err := json.Marshal(searchRequest{Query: query, N: n})
	if err != nil {
		return nil, fmt.Errorf("marshal groundx search request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/search/%s", c.baseURL, bucketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create groundx search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call groundx search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read groundx error body: %w", readErr)
		}
		if len(data) > 0 {
			return nil, fmt.Errorf("groundx search API error: %s", string(data))
		}
		return nil, fmt.Errorf("groundx search API returned status %s", resp.Status)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode groundx search response: %w", err)
	}

	if parsed.Message != "" && len(parsed.Search.Results) == 0 {
		return nil, fmt.Errorf("groundx search error: %s", parsed.Message)
	}

	return parsed.Search.Results, nil
}
