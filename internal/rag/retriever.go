package rag

import "context"

// Passage is one retrieved snippet of background knowledge.
type Passage struct {
	Text  string
	Score float64
}

// Retriever looks up background passages relevant to a query, scoped to a
// character's knowledge collection. Retrieval is best-effort enrichment: the
// prompt builder treats any error as "no passages".
type Retriever interface {
	Retrieve(ctx context.Context, query, collection string, limit int) ([]Passage, error)
	Close() error
}

// Embedder turns query text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
