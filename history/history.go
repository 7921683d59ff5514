// Package history stores per-session conversation turns. The pipeline only
// depends on the Store interface, so tests run against the in-memory map and
// deployments can point at Postgres.
package history

import (
	"context"

	"github.com/mvalles/asistente/llm"
)

type Store interface {
	// Messages returns all turns recorded for the session, oldest first.
	Messages(ctx context.Context, sessionID string) ([]llm.Message, error)
	// Append adds turns to the end of the session's history.
	Append(ctx context.Context, sessionID string, messages ...llm.Message) error
	// Clear removes the session's history.
	Clear(ctx context.Context, sessionID string) error
}
