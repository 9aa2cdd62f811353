// Package ai wraps the language-model API behind a small client interface.
package ai

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation context.
type Message struct {
	Role    string
	Content string
}

// Reply is a completed model response with its token usage.
type Reply struct {
	Text   string
	Tokens int
}

// Stream yields response text incrementally. Recv returns io.EOF when the
// stream is done. Usage reports total tokens once the stream is drained, or
// zero if the provider did not include usage.
type Stream interface {
	Recv() (string, error)
	Usage() int
	Close() error
}

// Client abstracts the chat-completion provider.
type Client interface {
	Chat(ctx context.Context, messages []Message) (*Reply, error)
	ChatStream(ctx context.Context, messages []Message) (Stream, error)
}
