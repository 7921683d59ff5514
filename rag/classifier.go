package rag

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mvalles/asistente/llm"
)

// relevanceThreshold is the probability (0-100) above which a query is
// considered worth retrieving for.
const relevanceThreshold = 50.0

// Classifier decides whether a query warrants a content search at all. A
// configured keyword hit answers immediately; otherwise a small model
// estimates the probability that the query is on-domain.
type Classifier struct {
	llm      llm.Client
	company  string
	domain   string
	keywords []string
	logger   *log.Logger
}

func NewClassifier(client llm.Client, company, domain string, keywords []string, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.Default()
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return &Classifier{
		llm:      client,
		company:  company,
		domain:   domain,
		keywords: lowered,
		logger:   logger,
	}
}

// ShouldRetrieve reports whether the query should trigger retrieval. Model
// failures and unparseable replies degrade to a probability of 50, which sits
// exactly on the threshold and therefore retrieves.
func (c *Classifier) ShouldRetrieve(ctx context.Context, query string) bool {
	lowered := strings.ToLower(query)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, kw) {
			c.logger.Printf("found keyword %q, query is about %s and/or %s", kw, c.company, c.domain)
			return true
		}
	}

	probability := c.classify(ctx, query)
	c.logger.Printf("%s and/or %s probability: %.0f%% (threshold=%.0f)", c.company, c.domain, probability, relevanceThreshold)
	return probability >= relevanceThreshold
}

func (c *Classifier) classify(ctx context.Context, query string) float64 {
	system := fmt.Sprintf(
		"Eres un clasificador de textos. Tu labor es definir si la consulta realizada "+
			"por el usuario es relevante para el contexto para el que este programa fue diseñado. "+
			"Dada la consulta del usuario, estima la probabilidad (0-100) de que la consulta sea "+
			"sobre %s, la empresa %s o una temática relacionada. "+
			"Devuelve SOLO un número del 0 al 100 (un entero). Sin texto adicional.",
		c.domain, c.company,
	)

	reply, err := c.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: "User query: " + query},
	})
	if err != nil {
		c.logger.Printf("classification call failed: %v. Defaulting to 50.", err)
		return 50
	}

	reply = strings.TrimSpace(reply)
	probability, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		c.logger.Printf("unexpected classification response: %q. Defaulting to 50.", reply)
		return 50
	}
	return probability
}
