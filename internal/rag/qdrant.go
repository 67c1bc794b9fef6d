package rag

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/vocata-labs/vocata-core/internal/config"
)

type qdrantRetriever struct {
	client   *qdrant.Client
	embedder Embedder
	minScore float32
}

// NewQdrantRetriever connects to a Qdrant server and answers retrieval
// queries with payload text from the character's collection.
func NewQdrantRetriever(cfg config.RAGConfig, embedder Embedder) (Retriever, error) {
	if cfg.QdrantURL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	raw := cfg.QdrantURL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &qdrantRetriever{
		client:   client,
		embedder: embedder,
		minScore: float32(cfg.MinScore),
	}, nil
}

func (r *qdrantRetriever) Retrieve(ctx context.Context, query, collection string, limit int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" || collection == "" {
		return nil, nil
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limitUint64 := uint64(limit)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	passages := make([]Passage, 0, len(points))
	for _, point := range points {
		if r.minScore > 0 && point.Score < r.minScore {
			continue
		}
		text := payloadText(point.Payload)
		if text == "" {
			continue
		}
		passages = append(passages, Passage{Text: text, Score: float64(point.Score)})
	}
	return passages, nil
}

func payloadText(payload map[string]*qdrant.Value) string {
	if payload == nil {
		return ""
	}
	for _, key := range []string{"full_paragraph", "text", "content"} {
		if v, ok := payload[key]; ok {
			if s := v.GetStringValue(); s != "" {
				return s
			}
		}
	}
	return ""
}

func (r *qdrantRetriever) Close() error {
	return r.client.Close()
}
