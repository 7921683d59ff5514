package tracing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFeedback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/feedback", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var fb Feedback
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fb))
		assert.Equal(t, "run-1", fb.RunID)
		assert.Equal(t, "Total-RAG-score", fb.Key)
		assert.Equal(t, 380.0, fb.Score)
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, APIKey: "secret"})

	err := client.CreateFeedback(context.Background(), Feedback{
		RunID: "run-1",
		Key:   "Total-RAG-score",
		Score: 380,
	})
	assert.NoError(t, err)
}

func TestCreateFeedbackRequiresRunID(t *testing.T) {
	client := NewClient(Options{Endpoint: "http://localhost:1", APIKey: "secret"})

	err := client.CreateFeedback(context.Background(), Feedback{Key: "ui-feedback"})
	assert.Error(t, err)
}

func TestCreateFeedbackSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, APIKey: "secret"})

	err := client.CreateFeedback(context.Background(), Feedback{RunID: "run-1", Key: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestNewClientWithoutAPIKeyIsNoop(t *testing.T) {
	client := NewClient(Options{})

	err := client.CreateFeedback(context.Background(), Feedback{RunID: "run-1", Key: "k"})
	assert.NoError(t, err)
}
