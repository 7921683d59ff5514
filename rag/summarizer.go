package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mvalles/asistente/llm"
)

// Summarizer collapses a long conversation into a single summary message so
// the prompt stays small. The stored history is untouched; condensation only
// affects the in-flight request.
type Summarizer struct {
	llm       llm.Client
	threshold int
	logger    *log.Logger
}

func NewSummarizer(client llm.Client, threshold int, logger *log.Logger) *Summarizer {
	if logger == nil {
		logger = log.Default()
	}
	if threshold <= 0 {
		threshold = 8
	}

	return &Summarizer{llm: client, threshold: threshold, logger: logger}
}

// Condense returns the history unchanged while it fits under the threshold.
// Beyond it, the whole transcript is summarized into one assistant message.
// A summarization failure degrades to the original history.
func (s *Summarizer) Condense(ctx context.Context, messages []llm.Message) []llm.Message {
	if len(messages) <= s.threshold {
		return messages
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := "Assistant"
		if msg.Role == llm.RoleUser {
			role = "Human"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	transcript := strings.Join(lines, "\n")

	summary, err := s.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Eres un asistente que resume sucintamente la conversación hasta ahora. " +
			"Concéntrate en los puntos esenciales; mantenlo coherente y breve. " +
			"Solo muestra el texto del resumen, sin comentarios adicionales."},
		{Role: llm.RoleUser, Content: transcript},
	})
	if err != nil {
		s.logger.Printf("history summarization failed, keeping full history: %v", err)
		return messages
	}

	s.logger.Printf("condensed %d history messages into a summary", len(messages))
	return []llm.Message{{Role: llm.RoleAssistant, Content: strings.TrimSpace(summary)}}
}
