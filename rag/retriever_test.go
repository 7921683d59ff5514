package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mvalles/asistente/groundx"
)

type stubSearcher struct {
	results map[string][]groundx.SearchResult
	err     error
	entered chan string
	release chan struct{}
}

func (s *stubSearcher) Search(ctx context.Context, bucketID, query string, n int) ([]groundx.SearchResult, error) {
	if s.entered != nil {
		s.entered <- query
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

var _ groundx.Searcher = (*stubSearcher)(nil)

type stubTranslator struct {
	translated string
	err        error
}

func (s *stubTranslator) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.translated, nil
}

func TestRetrieverSearchesBothLanguages(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]groundx.SearchResult{
		"consulta":   {{Score: 200, SuggestedText: "es"}},
		"translated": {{Score: 180, SuggestedText: "en"}},
	}}
	retriever := NewRetriever(searcher, &stubTranslator{translated: "translated"}, RetrieverOptions{BucketID: "123"}, testLogger())

	source, translated := retriever.Search(context.Background(), "consulta")

	if source.Err != nil || translated.Err != nil {
		t.Fatalf("unexpected branch errors: %v / %v", source.Err, translated.Err)
	}
	if len(source.Results) != 1 || source.Results[0].SuggestedText != "es" {
		t.Fatalf("unexpected source results: %+v", source.Results)
	}
	if len(translated.Results) != 1 || translated.Results[0].SuggestedText != "en" {
		t.Fatalf("unexpected translated results: %+v", translated.Results)
	}
}

func TestRetrieverDispatchesBranchesConcurrently(t *testing.T) {
	searcher := &stubSearcher{
		results: map[string][]groundx.SearchResult{},
		entered: make(chan string, 2),
		release: make(chan struct{}),
	}
	retriever := NewRetriever(searcher, &stubTranslator{translated: "translated"}, RetrieverOptions{BucketID: "123"}, testLogger())

	done := make(chan struct{})
	go func() {
		retriever.Search(context.Background(), "consulta")
		close(done)
	}()

	// Both branches must be in flight before either completes.
	for i := 0; i < 2; i++ {
		select {
		case <-searcher.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("branches were not dispatched concurrently")
		}
	}
	close(searcher.release)
	<-done
}

func TestRetrieverTranslationFailureFailsOnlyThatBranch(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]groundx.SearchResult{
		"consulta": {{Score: 200, SuggestedText: "es"}},
	}}
	retriever := NewRetriever(searcher, &stubTranslator{err: errors.New("boom")}, RetrieverOptions{BucketID: "123"}, testLogger())

	source, translated := retriever.Search(context.Background(), "consulta")

	if source.Err != nil {
		t.Fatalf("source branch should survive: %v", source.Err)
	}
	if len(source.Results) != 1 {
		t.Fatalf("expected source results, got %+v", source.Results)
	}
	if translated.Err == nil {
		t.Fatal("expected translated branch to fail")
	}
	if len(translated.Results) != 0 {
		t.Fatalf("failed branch must not return results: %+v", translated.Results)
	}
}

func TestRetrieverBackendFailureReportedPerBranch(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("unavailable")}
	retriever := NewRetriever(searcher, &stubTranslator{translated: "translated"}, RetrieverOptions{BucketID: "123"}, testLogger())

	source, translated := retriever.Search(context.Background(), "consulta")

	if source.Err == nil || translated.Err == nil {
		t.Fatalf("expected both branches to report the backend failure: %v / %v", source.Err, translated.Err)
	}
}
