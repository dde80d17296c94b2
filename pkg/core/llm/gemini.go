package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider against Google's Gemini API via the
// official GenAI SDK.
type GeminiProvider struct {
	APIKey string // falls back to GEMINI_API_KEY
	Model  string // defaults to "gemini-2.0-flash"
}

var _ Provider = (*GeminiProvider)(nil)

// Complete maps the role-tagged messages onto a Gemini generateContent
// call: system messages become the system instruction, the rest form the
// prompt body.
func (p *GeminiProvider) Complete(ctx context.Context, messages []Message) (string, Usage, error) {
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", Usage{}, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	model := p.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	var system, prompt strings.Builder
	for _, msg := range messages {
		if msg.Role == "system" {
			system.WriteString(msg.Content)
			system.WriteString("\n")
			continue
		}
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	if system.Len() > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system.String()}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt.String()), config)
	if err != nil {
		return "", Usage{}, fmt.Errorf("gemini generation failed: %w", err)
	}

	var usage Usage
	if result.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return result.Text(), usage, nil
}
