package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ollamaGenerator struct {
	endpoint     string
	defaultModel string
}

// NewOllamaGenerator talks to a local Ollama daemon's /api/generate endpoint.
func NewOllamaGenerator(endpoint, defaultModel string) Generator {
	return &ollamaGenerator{endpoint: endpoint, defaultModel: defaultModel}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaStreamResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (g *ollamaGenerator) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	if g.defaultModel != "" {
		return g.defaultModel
	}
	return "llama3.2:latest"
}

func (g *ollamaGenerator) Generate(ctx context.Context, req Request, consumer func(Fragment) error) error {
	resp, err := g.post(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk ollamaStreamResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return err
		}
		if err := consumer(Fragment{
			SessionID: req.SessionID,
			Content:   chunk.Response,
			Done:      chunk.Done,
		}); err != nil {
			return err
		}
		if chunk.Done {
			break
		}
	}
	return scanner.Err()
}

func (g *ollamaGenerator) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := g.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ollamaStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

func (g *ollamaGenerator) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	payload := ollamaRequest{
		Model:  g.model(req),
		Prompt: req.Prompt,
		Stream: stream,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %s", resp.Status)
	}
	return resp, nil
}
