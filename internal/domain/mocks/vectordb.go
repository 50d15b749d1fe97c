package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/ersonp/kinship/internal/domain/ports"
)

var (
	_ ports.VectorDB          = (*VectorDB)(nil)
	_ ports.CollectionManager = (*VectorDB)(nil)
)

// VectorDB is a mock implementation of ports.VectorDB and ports.CollectionManager.
// Search returns stored edges ordered by ID with a fixed score.
type VectorDB struct {
	Err                 error
	EnsureCollectionErr error

	// Call tracking
	EnsureCollectionCallCount int
	DeleteCollectionCallCount int
	LastVectorSize            uint64

	mu    sync.Mutex
	Edges map[int64]ports.IndexedEdge
	// Batches counts SaveBatch calls.
	Batches int
}

// NewVectorDB creates an empty mock VectorDB.
func NewVectorDB() *VectorDB {
	return &VectorDB{Edges: make(map[int64]ports.IndexedEdge)}
}

// EnsureCollection records the call and returns the configured error.
func (m *VectorDB) EnsureCollection(_ context.Context, vectorSize uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureCollectionCallCount++
	m.LastVectorSize = vectorSize
	return m.EnsureCollectionErr
}

// DeleteCollection drops every stored edge.
func (m *VectorDB) DeleteCollection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCollectionCallCount++
	if m.Err != nil {
		return m.Err
	}
	m.Edges = make(map[int64]ports.IndexedEdge)
	return nil
}

// Save stores an indexed edge.
func (m *VectorDB) Save(_ context.Context, edge ports.IndexedEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Edges[edge.EdgeID] = edge
	return nil
}

// SaveBatch stores every edge and counts the call in Batches.
func (m *VectorDB) SaveBatch(_ context.Context, edges []ports.IndexedEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Batches++
	for _, edge := range edges {
		m.Edges[edge.EdgeID] = edge
	}
	return nil
}

// Search returns up to limit stored edges.
func (m *VectorDB) Search(_ context.Context, _ []float32, limit int) ([]ports.EdgeMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	ids := make([]int64, 0, len(m.Edges))
	for id := range m.Edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	matches := make([]ports.EdgeMatch, 0, limit)
	for _, id := range ids {
		if len(matches) >= limit {
			break
		}
		matches = append(matches, ports.EdgeMatch{EdgeID: id, Text: m.Edges[id].Text, Score: 0.9})
	}
	return matches, nil
}

// Delete removes an indexed edge.
func (m *VectorDB) Delete(_ context.Context, edgeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Edges, edgeID)
	return nil
}

// Has reports whether an edge is indexed.
func (m *VectorDB) Has(edgeID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Edges[edgeID]
	return ok
}
