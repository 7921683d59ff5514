package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/mvalles/asistente/llm"
)

type llmTranslator struct {
	client llm.Client
}

// NewLLMTranslator builds a Translator that delegates to a chat-completion
// client. The client should be configured with temperature 0.
func NewLLMTranslator(client llm.Client) Translator {
	return &llmTranslator{client: client}
}

func (t *llmTranslator) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s.\nOutput only the translated text, nothing else.\nText to translate:\n%s",
		fromLang, toLang, text,
	)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf("You are a translator. You translate %s text into %s.", fromLang, toLang)},
		{Role: llm.RoleUser, Content: prompt},
	}

	translated, err := t.client.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("translate %s to %s: %w", fromLang, toLang, err)
	}

	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", fmt.Errorf("translator returned an empty result")
	}
	return translated, nil
}
