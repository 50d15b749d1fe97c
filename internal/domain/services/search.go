package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
)

// DefaultSearchLimit is the default number of results to return.
const DefaultSearchLimit = 10

// rebuildBatchSize bounds how many sentences go to the embedder per call.
const rebuildBatchSize = 100

// ErrIndexDisabled is returned by search when no semantic index is configured.
var ErrIndexDisabled = errors.New("semantic index is disabled")

// SearchService keeps a semantic index of relationships: each edge is stored
// as a short sentence ("Alice mother Bob") with its embedding.
type SearchService struct {
	embedder ports.Embedder
	vectorDB ports.VectorDB
}

// NewSearchService creates a new search service.
func NewSearchService(embedder ports.Embedder, vectorDB ports.VectorDB) *SearchService {
	return &SearchService{
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

// EdgeSentence renders an edge as the sentence that gets embedded.
func EdgeSentence(edge *entities.ResolvedEdge) string {
	kind := strings.ReplaceAll(edge.Kind(), "_", " ")
	return fmt.Sprintf("%s %s %s", edge.Subject.DisplayName(), kind, edge.Object.DisplayName())
}

// Index embeds an edge and stores it, replacing any previous version.
func (s *SearchService) Index(ctx context.Context, edge *entities.ResolvedEdge) error {
	text := EdgeSentence(edge)
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("generating embedding: %w", err)
	}
	if err := s.vectorDB.Save(ctx, indexedEdge(edge, text, embedding)); err != nil {
		return fmt.Errorf("saving indexed edge: %w", err)
	}
	return nil
}

// Remove drops an edge from the index.
func (s *SearchService) Remove(ctx context.Context, edgeID int64) error {
	if err := s.vectorDB.Delete(ctx, edgeID); err != nil {
		return fmt.Errorf("removing indexed edge: %w", err)
	}
	return nil
}

// Search finds edges whose sentence is semantically close to query.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]ports.EdgeMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", entities.ErrMissingField)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}

	matches, err := s.vectorDB.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("searching edges: %w", err)
	}
	return matches, nil
}

// Rebuild indexes every given edge, embedding in batches. Returns the
// number of edges indexed.
func (s *SearchService) Rebuild(ctx context.Context, edges []entities.ResolvedEdge) (int, error) {
	indexed := 0
	for start := 0; start < len(edges); start += rebuildBatchSize {
		end := min(start+rebuildBatchSize, len(edges))
		batch := edges[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = EdgeSentence(&batch[i])
		}
		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("generating embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return indexed, fmt.Errorf("embedder returned %d embeddings for %d edges", len(embeddings), len(batch))
		}

		points := make([]ports.IndexedEdge, len(batch))
		for i := range batch {
			points[i] = indexedEdge(&batch[i], texts[i], embeddings[i])
		}
		if err := s.vectorDB.SaveBatch(ctx, points); err != nil {
			return indexed, fmt.Errorf("saving indexed edges %d-%d: %w", batch[0].ID, batch[len(batch)-1].ID, err)
		}
		indexed += len(batch)
	}
	return indexed, nil
}

func indexedEdge(edge *entities.ResolvedEdge, text string, embedding []float32) ports.IndexedEdge {
	ie := ports.IndexedEdge{
		EdgeID:      edge.ID,
		Text:        text,
		SubjectName: edge.Subject.DisplayName(),
		ObjectName:  edge.Object.DisplayName(),
		Kind:        edge.Kind(),
		Embedding:   embedding,
	}
	if edge.Type != nil {
		ie.Locale = edge.Type.Locale
	}
	return ie
}
