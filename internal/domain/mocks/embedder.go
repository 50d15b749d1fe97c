// Package mocks provides in-memory implementations of the domain ports for testing.
package mocks

import (
	"context"
	"sync"
)

// Embedder is a mock implementation of ports.Embedder. Every text embeds to
// EmbeddingResult; the texts seen are recorded in order.
type Embedder struct {
	EmbeddingResult []float32
	Err             error

	mu    sync.Mutex
	Texts []string
}

// Embed returns the configured embedding or error.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()
	return m.EmbeddingResult, nil
}

// EmbedBatch returns one embedding per text.
func (m *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.Texts = append(m.Texts, texts...)
	m.mu.Unlock()
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.EmbeddingResult
	}
	return result, nil
}
