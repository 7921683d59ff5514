package rag

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mvalles/asistente/groundx"
	"github.com/mvalles/asistente/translate"
)

// Branch is the outcome of one retrieval branch. A failed branch carries its
// error and no results; the caller decides how to degrade.
type Branch struct {
	Results []groundx.SearchResult
	Err     error
}

// Retriever issues the two language searches against the content backend. The
// translated branch converts the query first; a translation failure is a hard
// failure of that branch.
type Retriever struct {
	search     groundx.Searcher
	translator translate.Translator
	bucketID   string
	topN       int
	sourceLang string
	targetLang string
	logger     *log.Logger
}

type RetrieverOptions struct {
	BucketID   string
	TopN       int
	SourceLang string
	TargetLang string
}

func NewRetriever(search groundx.Searcher, translator translate.Translator, opts RetrieverOptions, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.Default()
	}
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.SourceLang == "" {
		opts.SourceLang = "Spanish"
	}
	if opts.TargetLang == "" {
		opts.TargetLang = "English"
	}

	return &Retriever{
		search:     search,
		translator: translator,
		bucketID:   opts.BucketID,
		topN:       opts.TopN,
		sourceLang: opts.SourceLang,
		targetLang: opts.TargetLang,
		logger:     logger,
	}
}

// SearchSource runs the native-language content search.
func (r *Retriever) SearchSource(ctx context.Context, query string) ([]groundx.SearchResult, error) {
	start := time.Now()
	results, err := r.search.Search(ctx, r.bucketID, query, r.topN)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", r.sourceLang, err)
	}

	r.logger.Printf("%s search took %.3fs for query=%q", r.sourceLang, time.Since(start).Seconds(), query)
	return results, nil
}

// SearchTranslated translates the query and runs the second-language search.
func (r *Retriever) SearchTranslated(ctx context.Context, query string) ([]groundx.SearchResult, error) {
	translated, err := r.translator.Translate(ctx, query, r.sourceLang, r.targetLang)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := r.search.Search(ctx, r.bucketID, translated, r.topN)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", r.targetLang, err)
	}

	r.logger.Printf("%s search took %.3fs for query=%q", r.targetLang, time.Since(start).Seconds(), translated)
	return results, nil
}

// Search dispatches both branches concurrently and joins them, bounding the
// end-to-end latency to the slower branch. Branches fail independently: one
// branch's error never cancels the other.
func (r *Retriever) Search(ctx context.Context, query string) (source, translated Branch) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		source.Results, source.Err = r.SearchSource(ctx, query)
	}()
	go func() {
		defer wg.Done()
		translated.Results, translated.Err = r.SearchTranslated(ctx, query)
	}()

	wg.Wait()
	return source, translated
}
