package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvalles/asistente/groundx"
)

// Language tags the retrieval branch an entry came from.
type Language string

const (
	LanguageSource     Language = "ES"
	LanguageTranslated Language = "EN"
)

// FallbackContext is the sentinel substituted when no retrieval result
// qualifies. The merged context is never empty.
const FallbackContext = "No documents retrieved for this question. " +
	"Respond using only your general knowledge."

type scoredEntry struct {
	lang   Language
	score  float64
	result groundx.SearchResult
}

// MergeResult carries the fused context document and the aggregate relevance
// score of everything that survived filtering.
type MergeResult struct {
	Context    string
	TotalScore float64
}

// Merge filters both branches by the score threshold, fuses them into one
// ranked context and sums the surviving scores. The sort is stable: entries
// with equal scores keep their per-branch order, and source-language entries
// stay ahead of translated ones because the source branch is walked first.
func Merge(source, translated []groundx.SearchResult, threshold float64) MergeResult {
	var entries []scoredEntry
	var total float64

	for _, res := range source {
		if res.Score >= threshold {
			total += res.Score
			entries = append(entries, scoredEntry{lang: LanguageSource, score: res.Score, result: res})
		}
	}
	for _, res := range translated {
		if res.Score >= threshold {
			total += res.Score
			entries = append(entries, scoredEntry{lang: LanguageTranslated, score: res.Score, result: res})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	if len(entries) == 0 {
		return MergeResult{Context: FallbackContext, TotalScore: 0}
	}

	blocks := make([]string, 0, len(entries))
	for _, entry := range entries {
		blocks = append(blocks, renderEntry(entry))
	}

	return MergeResult{
		Context:    strings.TrimSpace(strings.Join(blocks, "\n")),
		TotalScore: total,
	}
}

func renderEntry(entry scoredEntry) string {
	fileName := entry.result.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("Documento %s", entry.lang)
	}

	return fmt.Sprintf(
		"----------\nThe following text excerpt is from a document named %s:\n\n%s\n",
		fileName, entry.result.SuggestedText,
	)
}
