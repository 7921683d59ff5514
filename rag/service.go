package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/mvalles/asistente/citations"
	"github.com/mvalles/asistente/history"
	"github.com/mvalles/asistente/llm"
	"github.com/mvalles/asistente/localize"
	"github.com/mvalles/asistente/prompt"
)

// Service composes the answer pipeline: classify, retrieve and merge (or skip
// straight to the fallback context), condense history, assemble the prompt,
// generate, then resolve citations and localize numbers. It is constructed
// once, immutable after init, and shared across requests; everything mutable
// is request-local.
type Service struct {
	classifier     *Classifier
	retriever      *Retriever
	chat           llm.StreamClient
	summarizer     *Summarizer
	resolver       *citations.Resolver
	formatter      *localize.Formatter
	store          history.Store
	scoreThreshold float64
	logger         *log.Logger
}

func NewService(
	classifier *Classifier,
	retriever *Retriever,
	chat llm.StreamClient,
	summarizer *Summarizer,
	resolver *citations.Resolver,
	formatter *localize.Formatter,
	store history.Store,
	scoreThreshold float64,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		classifier:     classifier,
		retriever:      retriever,
		chat:           chat,
		summarizer:     summarizer,
		resolver:       resolver,
		formatter:      formatter,
		store:          store,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

// Request is one user turn.
type Request struct {
	Query          string
	SystemTemplate prompt.Template
	Company        string
	Domain         string
	SessionID      string
	// RunID correlates the request with external tracing; generated when
	// empty.
	RunID string
	// Decision carries a pre-computed retrieval decision (e.g. cached by the
	// session layer) so the query is not re-classified.
	Decision *bool
}

// Result is the completed turn.
type Result struct {
	// Answer is the raw model output.
	Answer string
	// Final is the answer after citation resolution and number localization.
	Final string
	// TotalScore aggregates the retrieval scores that survived the merge.
	TotalScore float64
	RunID      string
	Usage      *llm.Usage
}

// Answer runs the pipeline without streaming.
func (s *Service) Answer(ctx context.Context, req Request) (Result, error) {
	return s.AnswerStream(ctx, req, nil)
}

// AnswerStream runs the pipeline, forwarding each generated chunk to fn as it
// arrives. fn may be nil. An error returned by fn stops upstream token
// consumption.
func (s *Service) AnswerStream(ctx context.Context, req Request, fn func(llm.Chunk) error) (Result, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return Result{}, fmt.Errorf("query cannot be empty")
	}
	if s.chat == nil {
		return Result{}, fmt.Errorf("chat model is not configured")
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	retrieve := false
	switch {
	case req.Decision != nil:
		retrieve = *req.Decision
	case s.classifier != nil:
		retrieve = s.classifier.ShouldRetrieve(ctx, req.Query)
	}

	contextText := FallbackContext
	totalScore := 0.0
	if retrieve && s.retriever != nil {
		source, translated := s.retriever.Search(ctx, req.Query)
		if source.Err != nil {
			s.logger.Printf("source retrieval branch degraded: %v", source.Err)
		}
		if translated.Err != nil {
			s.logger.Printf("translated retrieval branch degraded: %v", translated.Err)
		}

		merged := Merge(source.Results, translated.Results, s.scoreThreshold)
		contextText = merged.Context
		totalScore = merged.TotalScore
		s.logger.Printf("merged retrieval context, total score %.0f", totalScore)
	}

	past := s.loadHistory(ctx, req.SessionID)
	if s.summarizer != nil {
		past = s.summarizer.Condense(ctx, past)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: buildSystemMessage(req, contextText, past)},
		{Role: llm.RoleUser, Content: req.Query},
	}

	answer, usage, err := s.generate(ctx, messages, fn)
	if err != nil {
		return Result{}, err
	}
	answer = strings.TrimSpace(answer)

	s.recordTurn(ctx, req.SessionID, req.Query, answer)

	return Result{
		Answer:     answer,
		Final:      s.postProcess(answer),
		TotalScore: totalScore,
		RunID:      runID,
		Usage:      usage,
	}, nil
}

// ProcessReferences rewrites document mentions into citations without running
// the rest of the pipeline.
func (s *Service) ProcessReferences(text string) string {
	if s.resolver == nil {
		return text
	}
	return s.resolver.Resolve(text)
}

func (s *Service) generate(ctx context.Context, messages []llm.Message, fn func(llm.Chunk) error) (string, *llm.Usage, error) {
	if fn == nil {
		answer, err := s.chat.Generate(ctx, messages)
		if err != nil {
			return "", nil, fmt.Errorf("llm generate: %w", err)
		}
		return answer, nil, nil
	}

	var builder strings.Builder
	var usage *llm.Usage
	err := s.chat.GenerateStream(ctx, messages, func(chunk llm.Chunk) error {
		switch chunk.Kind {
		case llm.ChunkText:
			builder.WriteString(chunk.Text)
		case llm.ChunkUsage:
			usage = chunk.Usage
		}
		return fn(chunk)
	})
	if err != nil {
		return "", nil, fmt.Errorf("llm stream generate: %w", err)
	}

	if usage != nil {
		s.logger.Printf("token usage: input=%d output=%d", usage.InputTokens, usage.OutputTokens)
	}
	return builder.String(), usage, nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) []llm.Message {
	if s.store == nil || sessionID == "" {
		return nil
	}

	messages, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		s.logger.Printf("load history for session %q: %v", sessionID, err)
		return nil
	}
	return messages
}

func (s *Service) recordTurn(ctx context.Context, sessionID, query, answer string) {
	if s.store == nil || sessionID == "" {
		return
	}

	err := s.store.Append(ctx, sessionID,
		llm.Message{Role: llm.RoleUser, Content: query},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
	if err != nil {
		s.logger.Printf("record turn for session %q: %v", sessionID, err)
	}
}

func (s *Service) postProcess(answer string) string {
	processed := answer
	if s.resolver != nil {
		processed = s.resolver.Resolve(processed)
	}
	if s.formatter != nil {
		processed = s.formatter.Localize(processed)
	}
	return processed
}

func buildSystemMessage(req Request, contextText string, past []llm.Message) string {
	var conversation strings.Builder
	for _, msg := range past {
		role := "Assistant"
		if msg.Role == llm.RoleUser {
			role = "User"
		}
		conversation.WriteString(fmt.Sprintf("%s: %s\n", role, msg.Content))
	}

	return req.SystemTemplate.Fill(req.Company, req.Domain) +
		"\n===\nHISTORIAL DE LA CONVERSACIÓN\n" + conversation.String() +
		"\n===\nFACTUAL CONTEXT:\n" + contextText +
		"\n===\nNote: Use the context above to answer."
}
