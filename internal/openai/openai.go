package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ctxpkg "github.com/stupiduntilnot/relaybot/internal/context"
	"github.com/stupiduntilnot/relaybot/internal/model"
)

// Client is a minimal OpenAI chat completions client.
type Client struct {
	apiKey      string
	url         string
	model       string
	maxTokens   int
	temperature float32
	topP        float32
	httpClient  *http.Client
}

// NewClient creates an OpenAI client with fixed sampling parameters.
func NewClient(apiKey, url, modelName string, maxTokens int, temperature, topP float32, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		url:         url,
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletion sends a chat completion request. The content is returned
// as generated; deciding what to do with an empty answer is the caller's
// business.
func (c *Client) ChatCompletion(messages []ctxpkg.Message) (model.CompletionResponse, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    make([]wireMessage, 0, len(messages)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("failed reading openai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		truncated := truncate(string(body), 400)
		return model.CompletionResponse{}, fmt.Errorf("openai non-success status=%d body=%s", resp.StatusCode, truncated)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		truncated := truncate(string(body), 400)
		return model.CompletionResponse{}, fmt.Errorf("failed to parse openai response: %s", truncated)
	}

	result := model.CompletionResponse{}
	if parsed.Usage != nil {
		result.PromptTokens = parsed.Usage.PromptTokens
		result.CompletionTokens = parsed.Usage.CompletionTokens
		result.TotalTokens = parsed.Usage.TotalTokens
	}
	if len(parsed.Choices) == 0 {
		return result, nil
	}
	result.Content = parsed.Choices[0].Message.Content
	return result, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
