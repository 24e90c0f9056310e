// Package llm defines the language-model client used by the webhook
// pipeline and its Gemini implementation.
package llm

import "context"

// Message is one turn of conversation context. Role follows the
// generative-language API convention: "user" or "model".
type Message struct {
	Role string
	Text string
}

// Client generates a reply given the conversation so far. The last message
// in the slice is the new user prompt; earlier entries are the history
// window, oldest first.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}
