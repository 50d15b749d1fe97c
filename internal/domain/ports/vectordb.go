package ports

import "context"

// IndexedEdge is a relationship stored for semantic search.
type IndexedEdge struct {
	EdgeID      int64
	Text        string
	SubjectName string
	ObjectName  string
	Kind        string
	Locale      string
	Embedding   []float32
}

// EdgeMatch is a semantic search hit.
type EdgeMatch struct {
	EdgeID int64   `json:"edgeId"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// VectorDB defines the interface for vector database operations.
type VectorDB interface {
	// Save stores an edge with its embedding, replacing any previous version.
	Save(ctx context.Context, edge IndexedEdge) error

	// SaveBatch stores several edges in one round trip.
	SaveBatch(ctx context.Context, edges []IndexedEdge) error

	// Search performs a semantic search and returns the closest edges.
	Search(ctx context.Context, embedding []float32, limit int) ([]EdgeMatch, error)

	// Delete removes an edge by its ID. Deleting an absent edge is not an error.
	Delete(ctx context.Context, edgeID int64) error
}
