package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiGenerator struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiGenerator connects to the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, defaultModel string) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiGenerator{client: client, defaultModel: defaultModel}, nil
}

func (g *geminiGenerator) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return g.defaultModel
}

func (g *geminiGenerator) config(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request, consumer func(Fragment) error) error {
	contents := genai.Text(req.Prompt)
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model(req), contents, g.config(req)) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := consumer(Fragment{SessionID: req.SessionID, Content: text}); err != nil {
			return err
		}
	}
	return consumer(Fragment{SessionID: req.SessionID, Done: true})
}

func (g *geminiGenerator) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model(req), genai.Text(req.Prompt), g.config(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
