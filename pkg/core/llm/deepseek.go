package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultDeepSeekURL = "https://api.deepseek.com/chat/completions"

// DeepSeekProvider talks to any OpenAI-compatible chat completion endpoint.
type DeepSeekProvider struct {
	APIKey  string // falls back to DEEPSEEK_API_KEY
	Model   string // defaults to "deepseek-chat"
	BaseURL string // overridable for tests and proxies
	Client  *http.Client
}

var _ Provider = (*DeepSeekProvider)(nil)

type deepSeekRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
}

type deepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Complete sends the messages and returns the single text completion plus
// token usage.
func (p *DeepSeekProvider) Complete(ctx context.Context, messages []Message) (string, Usage, error) {
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if apiKey == "" {
		return "", Usage{}, fmt.Errorf("DEEPSEEK_API_KEY is not set")
	}

	model := p.Model
	if model == "" {
		model = "deepseek-chat"
	}
	url := p.BaseURL
	if url == "" {
		url = defaultDeepSeekURL
	}

	body, err := json.Marshal(deepSeekRequest{
		Messages:    messages,
		Model:       model,
		MaxTokens:   4096,
		Temperature: 0.1,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	res, err := client.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("completion call failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("read completion body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", Usage{}, fmt.Errorf("completion endpoint returned status %d: %s", res.StatusCode, string(raw))
	}

	var parsed deepSeekResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("unmarshal completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("completion response carried no choices: %s", string(raw))
	}

	return parsed.Choices[0].Message.Content, parsed.Usage, nil
}
