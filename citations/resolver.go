// Package citations rewrites bolded document mentions in a generated answer
// into numbered citations backed by files from the company document corpus.
package citations

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
)

// mentionPattern matches the emphasis convention the LLM uses to mark a
// document name.
var mentionPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// citationSpan is the marker appended after a resolved mention. It contains no
// emphasis delimiters, so re-running the resolver never re-matches emitted
// markers as new mentions.
const (
	citationSpanPrefix = ` <span class="doc-citation-number">[`
	citationSpanSuffix = `]</span>`
	referencesHeader   = "<b>Referencias:</b>"
)

// Detail records one resolved mention.
type Detail struct {
	Index           int
	RawMention      string
	MatchedFilename string
}

// Resolver fuzzy-matches answer mentions against a read-only snapshot of the
// document corpus taken at construction time. Files added to the directory
// later are not picked up until the process restarts.
type Resolver struct {
	corpus    []string
	threshold float64
	linkBase  string
	logger    *log.Logger
}

// NewResolver loads the corpus from docsDir. A missing directory is a
// configuration error.
func NewResolver(docsDir string, threshold int, linkBase string, logger *log.Logger) (*Resolver, error) {
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return nil, fmt.Errorf("load documents directory %s: %w", docsDir, err)
	}

	corpus := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		corpus = append(corpus, entry.Name())
	}

	return NewResolverWithCorpus(corpus, threshold, linkBase, logger), nil
}

// NewResolverWithCorpus builds a Resolver over an explicit filename set.
func NewResolverWithCorpus(corpus []string, threshold int, linkBase string, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}

	return &Resolver{
		corpus:    append([]string(nil), corpus...),
		threshold: float64(threshold),
		linkBase:  strings.TrimRight(linkBase, "/"),
		logger:    logger,
	}
}

// Corpus returns the filename snapshot.
func (r *Resolver) Corpus() []string {
	return append([]string(nil), r.corpus...)
}

// ClosestFilename returns the best-matching corpus filename for a mention and
// whether it cleared the similarity threshold.
func (r *Resolver) ClosestFilename(mention string) (string, bool) {
	normalized := normalizeMention(mention)

	best := ""
	bestScore := -1.0
	for _, name := range r.corpus {
		score := Ratio(normalized, name)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}

	if best == "" || bestScore < r.threshold {
		r.logger.Printf("no sufficiently similar document for %q (best %q at %.1f%%)", mention, best, bestScore)
		return "", false
	}
	return best, true
}

// Resolve rewrites every bolded mention that matches a corpus document with a
// numbered citation marker and appends a reference list with links. Indices
// are assigned in first-seen order; duplicate mentions share an index;
// unresolved mentions are left untouched. Text that already carries citation
// markers is not marked twice.
func (r *Resolver) Resolve(text string) string {
	matches := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	refMap := make(map[string]int)
	var details []Detail

	for _, m := range matches {
		mention := text[m[2]:m[3]]
		if _, seen := refMap[mention]; seen {
			continue
		}

		matched, ok := r.ClosestFilename(mention)
		if !ok {
			continue
		}

		index := len(details) + 1
		refMap[mention] = index
		details = append(details, Detail{
			Index:           index,
			RawMention:      mention,
			MatchedFilename: matched,
		})
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		full := text[m[0]:m[1]]
		mention := text[m[2]:m[3]]
		last = m[1]

		index, ok := refMap[mention]
		if !ok || strings.HasPrefix(text[m[1]:], citationSpanPrefix) {
			sb.WriteString(full)
			continue
		}

		sb.WriteString(full)
		sb.WriteString(citationSpanPrefix)
		sb.WriteString(fmt.Sprintf("%d", index))
		sb.WriteString(citationSpanSuffix)
	}
	sb.WriteString(text[last:])

	result := sb.String()
	if len(details) == 0 || strings.Contains(text, referencesHeader) {
		return result
	}

	sort.Slice(details, func(i, j int) bool { return details[i].Index < details[j].Index })

	var refs strings.Builder
	refs.WriteString("\n\n")
	refs.WriteString(referencesHeader)
	refs.WriteString("\n")
	for _, d := range details {
		link := r.linkBase + "/" + encodeFilename(d.MatchedFilename)
		refs.WriteString(fmt.Sprintf(`<li>[%d] <a href="%s" target="_blank">%s</a></li>`, d.Index, link, d.MatchedFilename))
	}

	return result + refs.String()
}

// normalizeMention undoes the URL-style escaping the model sometimes copies
// from document links.
func normalizeMention(mention string) string {
	return strings.NewReplacer(
		"+", " ",
		"%20", " ",
		"%28", "(",
		"%29", ")",
	).Replace(mention)
}

func encodeFilename(name string) string {
	return url.PathEscape(name)
}
