package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// ChunkKind discriminates the units yielded by a streaming generation.
type ChunkKind int

const (
	// ChunkText carries an incremental text fragment of the answer.
	ChunkText ChunkKind = iota
	// ChunkUsage carries the final token accounting for the run.
	ChunkUsage
)

// Chunk is one streamed unit: either a text fragment or a usage record,
// discriminated by Kind.
type Chunk struct {
	Kind  ChunkKind
	Text  string
	Usage *Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// StreamClient is implemented by clients that can yield the answer
// incrementally. The callback is invoked for every chunk in order; returning
// an error stops consumption of the upstream token stream.
type StreamClient interface {
	Client
	GenerateStream(ctx context.Context, messages []Message, fn func(Chunk) error) error
}
