package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/mocks"
)

func resolvedEdge(id int64, subject, object string, kind entities.Kind) entities.ResolvedEdge {
	return entities.ResolvedEdge{
		Edge:    entities.Edge{ID: id},
		Subject: &entities.Person{FullName: subject},
		Object:  &entities.Person{FullName: object},
		Type:    &entities.RelationshipType{Kind: kind, Locale: entities.DefaultLocale},
	}
}

func TestEdgeSentence(t *testing.T) {
	edge := resolvedEdge(1, "Alice", "Bob", entities.KindMotherInLaw)
	assert.Equal(t, "Alice mother in law Bob", EdgeSentence(&edge))

	dangling := entities.ResolvedEdge{Subject: &entities.Person{FullName: "Alice"}}
	assert.Equal(t, "Alice unknown unknown", EdgeSentence(&dangling))
}

func TestSearchService_IndexAndRemove(t *testing.T) {
	ctx := context.Background()
	embedder := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2}}
	vectorDB := mocks.NewVectorDB()
	svc := NewSearchService(embedder, vectorDB)

	edge := resolvedEdge(7, "Alice", "Bob", entities.KindMother)
	require.NoError(t, svc.Index(ctx, &edge))

	require.True(t, vectorDB.Has(7))
	stored := vectorDB.Edges[7]
	assert.Equal(t, "Alice mother Bob", stored.Text)
	assert.Equal(t, "mother", stored.Kind)
	assert.Equal(t, entities.DefaultLocale, stored.Locale)
	assert.Equal(t, []float32{0.1, 0.2}, stored.Embedding)

	require.NoError(t, svc.Remove(ctx, 7))
	assert.False(t, vectorDB.Has(7))
}

func TestSearchService_IndexEmbedderError(t *testing.T) {
	embedder := &mocks.Embedder{Err: errors.New("rate limited")}
	vectorDB := mocks.NewVectorDB()
	svc := NewSearchService(embedder, vectorDB)

	edge := resolvedEdge(1, "Alice", "Bob", entities.KindMother)
	err := svc.Index(context.Background(), &edge)

	assert.Error(t, err)
	assert.False(t, vectorDB.Has(1))
}

func TestSearchService_Search(t *testing.T) {
	ctx := context.Background()
	embedder := &mocks.Embedder{EmbeddingResult: []float32{1}}
	vectorDB := mocks.NewVectorDB()
	svc := NewSearchService(embedder, vectorDB)

	for i := int64(1); i <= 3; i++ {
		edge := resolvedEdge(i, "Alice", fmt.Sprintf("Child %d", i), entities.KindMother)
		require.NoError(t, svc.Index(ctx, &edge))
	}

	matches, err := svc.Search(ctx, "who is Alice's child", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].EdgeID)
	assert.Equal(t, "who is Alice's child", embedder.Texts[len(embedder.Texts)-1])

	t.Run("default limit", func(t *testing.T) {
		matches, err := svc.Search(ctx, "Alice", 0)
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := svc.Search(ctx, "  ", 5)
		assert.ErrorIs(t, err, entities.ErrMissingField)
	})
}

func TestSearchService_Rebuild(t *testing.T) {
	embedder := &mocks.Embedder{EmbeddingResult: []float32{0.5}}
	vectorDB := mocks.NewVectorDB()
	svc := NewSearchService(embedder, vectorDB)

	edges := make([]entities.ResolvedEdge, 0, rebuildBatchSize+5)
	for i := 1; i <= rebuildBatchSize+5; i++ {
		edges = append(edges, resolvedEdge(int64(i), "A", "B", entities.KindCousin))
	}

	n, err := svc.Rebuild(context.Background(), edges)
	require.NoError(t, err)
	assert.Equal(t, len(edges), n)
	assert.Len(t, vectorDB.Edges, len(edges))
	assert.Len(t, embedder.Texts, len(edges))
	assert.Equal(t, 2, vectorDB.Batches)
}
