package rag

import "context"

// MockRetriever returns fixed passages regardless of the query. Used in
// tests and when no vector store is configured.
type MockRetriever struct {
	Passages []Passage
	Err      error
}

func (m *MockRetriever) Retrieve(ctx context.Context, query, collection string, limit int) ([]Passage, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && limit < len(m.Passages) {
		return m.Passages[:limit], nil
	}
	return m.Passages, nil
}

func (m *MockRetriever) Close() error { return nil }
