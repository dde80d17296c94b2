// Package llm abstracts the external language-model completion services
// used by the AI extraction adapter.
package llm

import "context"

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Usage carries the token accounting reported by the completion service.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is the interface all completion backends implement: a list of
// role-tagged messages in, a single text completion plus usage metadata out.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, Usage, error)
}
