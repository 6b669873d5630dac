package llm

import "context"

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Delta is one streamed piece of a completion. Err is set when the stream
// fails mid-flight; after an error delta no further deltas arrive.
type Delta struct {
	Content string
	Err     error
}

// Client defines the interface for LLM providers.
type Client interface {
	// StreamCompletion generates a completion for the conversation.
	// Deltas are streamed through the channel; the channel is closed when
	// the completion finishes or fails.
	StreamCompletion(ctx context.Context, messages []Message) (<-chan Delta, error)
}
