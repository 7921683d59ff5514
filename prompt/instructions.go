// Package prompt loads the per-company instruction file and turns it into the
// system-prompt template used for answer generation.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// Template is a system prompt with {company} and {domain} placeholders still
// unfilled.
type Template struct {
	text string
}

func NewTemplate(text string) Template {
	return Template{text: text}
}

// Fill substitutes the company and domain placeholders.
func (t Template) Fill(company, domain string) string {
	return strings.NewReplacer(
		"{company}", company,
		"{domain}", domain,
	).Replace(t.text)
}

func (t Template) String() string {
	return t.text
}

// LoadInstructions reads an instructions JSON file and assembles the system
// template from its sections.
func LoadInstructions(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read instructions file: %w", err)
	}
	return ParseInstructions(data)
}

// ParseInstructions assembles the template from an instructions document:
//
//	{"instruction": {"general": ..., "response_guidelines": [...],
//	 "prioritization": ..., "examples": [...], "fallback": ...}}
func ParseInstructions(data []byte) (Template, error) {
	if !gjson.ValidBytes(data) {
		return Template{}, fmt.Errorf("instructions file is not valid JSON")
	}

	instr := gjson.GetBytes(data, "instruction")
	if !instr.Exists() {
		return Template{}, fmt.Errorf("instructions file has no \"instruction\" section")
	}

	general := instr.Get("general").String()
	if general == "" {
		return Template{}, fmt.Errorf("instruction.general is required")
	}

	guidelines := joinLines(instr.Get("response_guidelines"))
	prioritization := instr.Get("prioritization").String()
	examples := joinLines(instr.Get("examples"))
	fallback := instr.Get("fallback").String()

	text := fmt.Sprintf(
		"%s\n\nResponse Guidelines:\n%s\n\nPrioritization:\n%s\n\nExamples:\n%s\n\nFallback:\n%s\n",
		general, guidelines, prioritization, examples, fallback,
	)

	return Template{text: text}, nil
}

func joinLines(result gjson.Result) string {
	var lines []string
	for _, item := range result.Array() {
		lines = append(lines, item.String())
	}
	return strings.Join(lines, "\n")
}
