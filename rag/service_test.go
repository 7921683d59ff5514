package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mvalles/asistente/groundx"
	"github.com/mvalles/asistente/history"
	"github.com/mvalles/asistente/llm"
	"github.com/mvalles/asistente/prompt"
)

type stubStreamLLM struct {
	answer   string
	usage    *llm.Usage
	err      error
	messages []llm.Message
}

func (s *stubStreamLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	s.messages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubStreamLLM) GenerateStream(ctx context.Context, messages []llm.Message, fn func(llm.Chunk) error) error {
	s.messages = messages
	if s.err != nil {
		return s.err
	}

	half := len(s.answer) / 2
	for _, part := range []string{s.answer[:half], s.answer[half:]} {
		if part == "" {
			continue
		}
		if err := fn(llm.Chunk{Kind: llm.ChunkText, Text: part}); err != nil {
			return err
		}
	}
	if s.usage != nil {
		return fn(llm.Chunk{Kind: llm.ChunkUsage, Usage: s.usage})
	}
	return nil
}

var _ llm.StreamClient = (*stubStreamLLM)(nil)

func boolPtr(v bool) *bool { return &v }

func TestAnswerStreamWithoutRetrievalUsesFallbackContext(t *testing.T) {
	model := &stubStreamLLM{answer: "Hola, puedo ayudarte.", usage: &llm.Usage{InputTokens: 12, OutputTokens: 7}}
	store := history.NewMemoryStore()
	svc := NewService(nil, nil, model, nil, nil, nil, store, 150, testLogger())

	var streamed strings.Builder
	result, err := svc.AnswerStream(context.Background(), Request{
		Query:          "hola",
		SystemTemplate: prompt.NewTemplate("Asistente de {company} sobre {domain}."),
		Company:        "Urufarma",
		Domain:         "farmacia",
		SessionID:      "s1",
		Decision:       boolPtr(false),
	}, func(chunk llm.Chunk) error {
		if chunk.Kind == llm.ChunkText {
			streamed.WriteString(chunk.Text)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if streamed.String() != "Hola, puedo ayudarte." {
		t.Fatalf("unexpected streamed text: %q", streamed.String())
	}
	if result.Answer != "Hola, puedo ayudarte." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.TotalScore != 0 {
		t.Fatalf("expected zero score without retrieval, got %.0f", result.TotalScore)
	}
	if result.RunID == "" {
		t.Fatal("expected a generated run id")
	}
	if result.Usage == nil || result.Usage.OutputTokens != 7 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}

	system := model.messages[0].Content
	if !strings.Contains(system, FallbackContext) {
		t.Fatalf("system message should carry the fallback context: %q", system)
	}
	if !strings.Contains(system, "Asistente de Urufarma sobre farmacia.") {
		t.Fatalf("system template was not filled: %q", system)
	}

	recorded, _ := store.Messages(context.Background(), "s1")
	if len(recorded) != 2 || recorded[0].Role != llm.RoleUser || recorded[1].Role != llm.RoleAssistant {
		t.Fatalf("expected the turn to be recorded, got %+v", recorded)
	}
}

func TestAnswerStreamWithRetrievalMergesContext(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]groundx.SearchResult{
		"consulta":   {{Score: 200, SuggestedText: "detalle en español", FileName: "plan.pdf"}},
		"translated": {{Score: 180, SuggestedText: "english detail", FileName: "manual.pdf"}},
	}}
	retriever := NewRetriever(searcher, &stubTranslator{translated: "translated"}, RetrieverOptions{BucketID: "123"}, testLogger())
	model := &stubStreamLLM{answer: "Respuesta."}
	svc := NewService(nil, retriever, model, nil, nil, nil, history.NewMemoryStore(), 150, testLogger())

	result, err := svc.Answer(context.Background(), Request{
		Query:          "consulta",
		SystemTemplate: prompt.NewTemplate("Asistente."),
		SessionID:      "s1",
		Decision:       boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalScore != 380 {
		t.Fatalf("expected total score 380, got %.0f", result.TotalScore)
	}

	system := model.messages[0].Content
	if !strings.Contains(system, "plan.pdf") || !strings.Contains(system, "manual.pdf") {
		t.Fatalf("merged context missing from prompt: %q", system)
	}
}

func TestAnswerStreamDegradesWhenOneBranchFails(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]groundx.SearchResult{
		"consulta": {{Score: 200, SuggestedText: "detalle", FileName: "plan.pdf"}},
	}}
	retriever := NewRetriever(searcher, &stubTranslator{err: errors.New("boom")}, RetrieverOptions{BucketID: "123"}, testLogger())
	model := &stubStreamLLM{answer: "Respuesta."}
	svc := NewService(nil, retriever, model, nil, nil, nil, history.NewMemoryStore(), 150, testLogger())

	result, err := svc.Answer(context.Background(), Request{
		Query:          "consulta",
		SystemTemplate: prompt.NewTemplate("Asistente."),
		Decision:       boolPtr(true),
	})
	if err != nil {
		t.Fatalf("one failed branch must not fail the request: %v", err)
	}
	if result.TotalScore != 200 {
		t.Fatalf("expected surviving branch score 200, got %.0f", result.TotalScore)
	}
}

func TestAnswerValidatesQuery(t *testing.T) {
	svc := NewService(nil, nil, &stubStreamLLM{answer: "x"}, nil, nil, nil, history.NewMemoryStore(), 150, testLogger())
	if _, err := svc.Answer(context.Background(), Request{Query: "   "}); err == nil {
		t.Fatal("expected an error for an empty query")
	}
}

func TestAnswerStreamPropagatesCallbackError(t *testing.T) {
	model := &stubStreamLLM{answer: "Hola."}
	svc := NewService(nil, nil, model, nil, nil, nil, history.NewMemoryStore(), 150, testLogger())

	wantErr := errors.New("client went away")
	_, err := svc.AnswerStream(context.Background(), Request{
		Query:          "hola",
		SystemTemplate: prompt.NewTemplate("Asistente."),
		Decision:       boolPtr(false),
	}, func(chunk llm.Chunk) error {
		return wantErr
	})
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Fatalf("expected callback error to stop the stream, got %v", err)
	}
}

func TestAnswerStreamIncludesHistoryInPrompt(t *testing.T) {
	store := history.NewMemoryStore()
	_ = store.Append(context.Background(), "s1",
		llm.Message{Role: llm.RoleUser, Content: "pregunta previa"},
		llm.Message{Role: llm.RoleAssistant, Content: "respuesta previa"},
	)

	model := &stubStreamLLM{answer: "Seguimos."}
	svc := NewService(nil, nil, model, nil, nil, nil, store, 150, testLogger())

	_, err := svc.Answer(context.Background(), Request{
		Query:          "otra pregunta",
		SystemTemplate: prompt.NewTemplate("Asistente."),
		SessionID:      "s1",
		Decision:       boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	system := model.messages[0].Content
	if !strings.Contains(system, "User: pregunta previa") || !strings.Contains(system, "Assistant: respuesta previa") {
		t.Fatalf("history missing from system message: %q", system)
	}
}
