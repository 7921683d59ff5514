// Package localize rewrites numbers embedded in prose from one locale's
// decimal format to another's. It is a pure text transform: tokens that fail
// to parse are left exactly as they were.
package localize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// separators describe the numeric grammar of the source locale. Output
// formatting is fully delegated to x/text, which knows the target locale's
// conventions.
type separators struct {
	group   string
	decimal string
}

var sourceGrammars = map[string]separators{
	"en": {group: ",", decimal: "."},
	"es": {group: ".", decimal: ","},
	"pt": {group: ".", decimal: ","},
	"de": {group: ".", decimal: ","},
	"it": {group: ".", decimal: ","},
}

// Formatter converts standalone numbers from the source locale's written form
// to the target locale's.
type Formatter struct {
	source  separators
	pattern *regexp.Regexp
	printer *message.Printer
}

// NewFormatter builds a Formatter for a source/target locale pair, e.g.
// ("en-US", "es-ES").
func NewFormatter(sourceLocale, targetLocale string) (*Formatter, error) {
	sourceTag, err := language.Parse(sourceLocale)
	if err != nil {
		return nil, fmt.Errorf("parse source locale %q: %w", sourceLocale, err)
	}

	targetTag, err := language.Parse(targetLocale)
	if err != nil {
		return nil, fmt.Errorf("parse target locale %q: %w", targetLocale, err)
	}

	base, _ := sourceTag.Base()
	grammar, ok := sourceGrammars[base.String()]
	if !ok {
		return nil, fmt.Errorf("unsupported source locale %q", sourceLocale)
	}

	// 1-3 leading digits, optional groups of exactly 3, optional decimals.
	pattern := regexp.MustCompile(
		`\b\d{1,3}(?:` + regexp.QuoteMeta(grammar.group) + `\d{3})*(?:` + regexp.QuoteMeta(grammar.decimal) + `\d+)?\b`,
	)

	return &Formatter{
		source:  grammar,
		pattern: pattern,
		printer: message.NewPrinter(targetTag),
	}, nil
}

// Localize rewrites every standalone number in text. Tokens inside larger
// alphanumeric or dotted runs (identifiers, version strings) are never
// touched.
func (f *Formatter) Localize(text string) string {
	spans := f.pattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text
	}

	var sb strings.Builder
	last := 0
	for _, span := range spans {
		sb.WriteString(text[last:span[0]])
		token := text[span[0]:span[1]]
		last = span[1]

		if !f.standalone(text, span[0], span[1]) {
			sb.WriteString(token)
			continue
		}
		sb.WriteString(f.convert(token))
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// standalone rejects matches glued to a dotted or separator-joined run, such
// as the "0.1" inside "v2.0.1". The regexp's word boundaries already exclude
// matches touching letters or digits.
func (f *Formatter) standalone(text string, start, end int) bool {
	if start > 0 {
		prev := text[start-1 : start]
		if prev == f.source.decimal || prev == f.source.group {
			return false
		}
	}
	if end < len(text)-1 {
		next := text[end : end+1]
		after := text[end+1]
		if (next == f.source.decimal || next == f.source.group) && after >= '0' && after <= '9' {
			return false
		}
	}
	return true
}

func (f *Formatter) convert(token string) string {
	plain := strings.ReplaceAll(token, f.source.group, "")
	fraction := 0
	if idx := strings.Index(plain, f.source.decimal); idx >= 0 {
		fraction = len(plain) - idx - 1
		plain = plain[:idx] + "." + plain[idx+1:]
	}

	value, err := strconv.ParseFloat(plain, 64)
	if err != nil {
		return token
	}

	return f.printer.Sprint(number.Decimal(value, number.Scale(fraction)))
}
