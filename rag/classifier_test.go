package rag

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/mvalles/asistente/llm"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

var _ llm.Client = (*stubLLM)(nil)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestClassifierKeywordFastPathSkipsModel(t *testing.T) {
	model := &stubLLM{err: errors.New("should not be called")}
	classifier := NewClassifier(model, "Urufarma", "farmacia", []string{"horario"}, testLogger())

	if !classifier.ShouldRetrieve(context.Background(), "¿Cuál es el horario de atención?") {
		t.Fatal("expected keyword fast path to return true")
	}
	if model.calls != 0 {
		t.Fatalf("expected no model calls, got %d", model.calls)
	}
}

func TestClassifierUsesModelProbability(t *testing.T) {
	classifier := NewClassifier(&stubLLM{reply: "85"}, "Urufarma", "farmacia", nil, testLogger())
	if !classifier.ShouldRetrieve(context.Background(), "pregunta cualquiera") {
		t.Fatal("expected probability 85 to retrieve")
	}

	classifier = NewClassifier(&stubLLM{reply: "10"}, "Urufarma", "farmacia", nil, testLogger())
	if classifier.ShouldRetrieve(context.Background(), "pregunta cualquiera") {
		t.Fatal("expected probability 10 to skip retrieval")
	}
}

func TestClassifierDefaultsToFiftyOnUnparseableReply(t *testing.T) {
	classifier := NewClassifier(&stubLLM{reply: "no lo sé"}, "Urufarma", "farmacia", nil, testLogger())

	// 50 sits exactly on the threshold, so the default retrieves.
	if !classifier.ShouldRetrieve(context.Background(), "pregunta cualquiera") {
		t.Fatal("expected default probability 50 to retrieve")
	}
}

func TestClassifierDefaultsToFiftyOnModelFailure(t *testing.T) {
	classifier := NewClassifier(&stubLLM{err: errors.New("rate limited")}, "Urufarma", "farmacia", nil, testLogger())

	if !classifier.ShouldRetrieve(context.Background(), "pregunta cualquiera") {
		t.Fatal("expected model failure to degrade to retrieval")
	}
}
