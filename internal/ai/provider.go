package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting a provider reports for one completion.
// Providers that report nothing leave it zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (*Completion, error)
}
