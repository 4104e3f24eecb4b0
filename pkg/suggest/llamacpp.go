package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/image-cropper/pkg/processing"
)

// LlamaCpp asks a vision model behind a llama.cpp server, through its
// OpenAI compatible chat completions endpoint.
type LlamaCpp struct {
	baseURL    string
	httpClient *http.Client
	modelDefaults
}

// OpenAI compatible wire types.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// NewLlamaCpp creates a llama.cpp backend.
func NewLlamaCpp(serverURL, model string) (*LlamaCpp, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid URL: %q", serverURL)
	}
	return &LlamaCpp{
		baseURL:       strings.TrimSuffix(serverURL, "/"),
		httpClient:    &http.Client{Timeout: 5 * time.Minute},
		modelDefaults: newModelDefaults(model),
	}, nil
}

// Suggest sends img with the prompt and parses the answer.
func (c *LlamaCpp) Suggest(ctx context.Context, img image.Image) (*Suggestion, error) {
	text, err := c.complete(ctx, c.prompt, img, 4096, 0.8)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from llama.cpp server")
	}
	return parseAnalysis(text).suggestion(), nil
}

// Query sends img with a free form prompt and returns the raw answer.
func (c *LlamaCpp) Query(ctx context.Context, prompt string, img image.Image) (string, error) {
	return c.complete(ctx, prompt, img, 2048, 0.9)
}

func (c *LlamaCpp) complete(ctx context.Context, prompt string, img image.Image, maxTokens int, topP float64) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	content := []contentPart{{Type: "text", Text: prompt}}
	if img != nil {
		b64, err := processing.NewProcessor().PrepareImageForModel(img, "jpg", c.maxDim, 85)
		if err != nil {
			return "", fmt.Errorf("failed to encode image: %w", err)
		}
		content = append(content, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + b64},
		})
	}

	req := chatCompletionRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Temperature: 0.7,
		MaxTokens:   maxTokens,
		TopP:        topP,
	}

	body, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return messageText(resp.Choices[0].Message.Content), nil
}

// messageText extracts the text of a message given either as a string or as
// content parts.
func messageText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		for _, item := range c {
			if part, ok := item.(map[string]any); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func (c *LlamaCpp) sendRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
