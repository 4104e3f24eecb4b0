package suggest

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"

	"github.com/jmorganca/ollama/api"

	"github.com/menta2k/image-cropper/pkg/processing"
)

// Ollama asks a vision model served by Ollama for the subject.
type Ollama struct {
	client *api.Client
	modelDefaults
}

// NewOllama creates an Ollama backend. Any path in serverURL, such as
// /api/chat, is ignored.
func NewOllama(serverURL, model string) (*Ollama, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", serverURL)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}

	return &Ollama{
		client:        api.NewClient(base, http.DefaultClient),
		modelDefaults: newModelDefaults(model),
	}, nil
}

// Suggest sends img with the prompt and parses the answer.
func (c *Ollama) Suggest(ctx context.Context, img image.Image) (*Suggestion, error) {
	content, err := c.chat(ctx, c.prompt, img, c.options())
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return parseAnalysis(content).suggestion(), nil
}

// Query sends img with a free form prompt and returns the raw answer.
func (c *Ollama) Query(ctx context.Context, prompt string, img image.Image) (string, error) {
	return c.chat(ctx, prompt, img, nil)
}

// options tunes sampling for MiniCPM-V 4.x, which otherwise rambles.
func (c *Ollama) options() map[string]any {
	m := strings.ToLower(c.model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		return map[string]any{"temperature": 0.7, "top_p": 0.8, "num_ctx": 4096}
	}
	return map[string]any{}
}

func (c *Ollama) chat(ctx context.Context, prompt string, img image.Image, options map[string]any) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	imgBytes, err := processing.NewProcessor().EncodeForModel(img, processing.FormatJPEG, c.maxDim, 85)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: prompt,
			Images:  []api.ImageData{api.ImageData(imgBytes)},
		}},
		Stream:  &stream,
		Options: options,
	}

	var content string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return content, nil
}
