package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/mocks"
	"github.com/ersonp/kinship/internal/domain/services"
)

type fixture struct {
	db       *mocks.RelationalDB
	vectorDB *mocks.VectorDB
	embedder *mocks.Embedder
	metrics  *mocks.Metrics
	handler  *RelationshipHandler
}

// newFixture seeds Alice (1), Bob (2) and Carol (3), and the types
// mother (1) and sister (2).
func newFixture(t *testing.T, withSearch bool) *fixture {
	t.Helper()

	db := mocks.NewRelationalDB()
	db.AddPerson(1, "Alice")
	db.AddPerson(2, "Bob")
	db.AddPerson(3, "Carol")
	db.AddType(1, entities.KindMother, entities.DefaultLocale)
	db.AddType(2, entities.KindSister, entities.DefaultLocale)

	f := &fixture{
		db:       db,
		vectorDB: mocks.NewVectorDB(),
		embedder: &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2, 0.3}},
		metrics:  &mocks.Metrics{},
	}

	graph := services.NewGraphService(db)
	opts := []Option{WithLogger(zap.NewNop()), WithMetrics(f.metrics)}
	if withSearch {
		opts = append(opts, WithSearch(services.NewSearchService(f.embedder, f.vectorDB)))
	}
	f.handler = NewRelationshipHandler(
		graph,
		services.NewQueryService(graph, db),
		services.NewRelationshipTypeService(db),
		services.NewPersonService(db),
		opts...,
	)
	return f
}

func (f *fixture) create(t *testing.T, subject, object, typeID int64) *entities.ResolvedEdge {
	t.Helper()
	resolved, err := f.handler.HandleCreate(context.Background(), entities.EdgeInput{
		SubjectID: subject, ObjectID: object, TypeID: typeID,
	})
	require.NoError(t, err)
	return resolved
}

func TestRelationshipHandler_HandleCreate(t *testing.T) {
	f := newFixture(t, true)

	resolved := f.create(t, 1, 2, 1)

	assert.Equal(t, "Alice", resolved.Subject.FullName)
	assert.Equal(t, "Bob", resolved.Object.FullName)
	assert.Equal(t, "mother", resolved.Kind())
	assert.True(t, f.vectorDB.Has(resolved.ID))
	assert.Equal(t, "Alice mother Bob", f.vectorDB.Edges[resolved.ID].Text)
	assert.Equal(t, []string{"create:ok"}, f.metrics.Operations)
}

func TestRelationshipHandler_HandleCreate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   entities.EdgeInput
		wantErr error
		outcome string
	}{
		{"missing field", entities.EdgeInput{SubjectID: 1, ObjectID: 2}, entities.ErrMissingField, "create:invalid"},
		{"self", entities.EdgeInput{SubjectID: 1, ObjectID: 1, TypeID: 1}, entities.ErrSelfRelationship, "create:invalid"},
		{"unknown person", entities.EdgeInput{SubjectID: 1, ObjectID: 9, TypeID: 1}, entities.ErrPersonNotFound, "create:not_found"},
		{"unknown type", entities.EdgeInput{SubjectID: 1, ObjectID: 2, TypeID: 9}, entities.ErrTypeNotFound, "create:not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)

			_, err := f.handler.HandleCreate(context.Background(), tt.input)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, []string{tt.outcome}, f.metrics.Operations)
			assert.Empty(t, f.vectorDB.Edges)
		})
	}
}

func TestRelationshipHandler_HandleCreate_Duplicate(t *testing.T) {
	f := newFixture(t, false)
	f.create(t, 1, 2, 1)

	_, err := f.handler.HandleCreate(context.Background(), entities.EdgeInput{SubjectID: 1, ObjectID: 2, TypeID: 1})

	assert.ErrorIs(t, err, entities.ErrDuplicateEdge)
	assert.Equal(t, []string{"create:ok", "create:conflict"}, f.metrics.Operations)
}

func TestRelationshipHandler_IndexFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t, true)
	f.embedder.Err = errors.New("embedding service unavailable")

	resolved := f.create(t, 1, 2, 1)

	assert.NotZero(t, resolved.ID)
	assert.Equal(t, 1, f.db.EdgeCount())
	assert.Equal(t, []string{"create"}, f.metrics.IndexFailures)

	f.vectorDB.Err = errors.New("qdrant down")
	require.NoError(t, f.handler.HandleDelete(context.Background(), resolved.ID))
	assert.Equal(t, 0, f.db.EdgeCount())
	assert.Equal(t, []string{"create", "delete"}, f.metrics.IndexFailures)
}

func TestRelationshipHandler_HandleUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	created := f.create(t, 1, 2, 1)

	updated, err := f.handler.HandleUpdate(ctx, created.ID, entities.EdgePatch{
		ObjectID: entities.Int64(3),
		TypeID:   entities.Int64(2),
	})
	require.NoError(t, err)

	assert.Equal(t, "Carol", updated.Object.FullName)
	assert.Equal(t, "sister", updated.Kind())
	assert.Equal(t, "Alice sister Carol", f.vectorDB.Edges[created.ID].Text)

	_, err = f.handler.HandleUpdate(ctx, 99, entities.EdgePatch{})
	assert.ErrorIs(t, err, entities.ErrEdgeNotFound)
}

func TestRelationshipHandler_HandleDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	created := f.create(t, 1, 2, 1)
	require.True(t, f.vectorDB.Has(created.ID))

	require.NoError(t, f.handler.HandleDelete(ctx, created.ID))
	assert.False(t, f.vectorDB.Has(created.ID))

	err := f.handler.HandleDelete(ctx, created.ID)
	assert.ErrorIs(t, err, entities.ErrEdgeNotFound)

	history, err := f.handler.HandleHistory(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRelationshipHandler_HandleGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	e1 := f.create(t, 1, 2, 1)
	f.create(t, 3, 2, 2)

	got, err := f.handler.HandleGet(ctx, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, e1.Triple(), got.Triple())

	all, err := f.handler.HandleList(ctx, entities.EdgeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.handler.HandleList(ctx, entities.EdgeFilter{SubjectID: entities.Int64(2)})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	count, err := f.handler.HandleCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRelationshipHandler_HandleFormOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	created := f.create(t, 1, 2, 1)

	opts, err := f.handler.HandleFormOptions(ctx)
	require.NoError(t, err)
	assert.Len(t, opts.People, 3)
	assert.Len(t, opts.Types, 2)

	form, err := f.handler.HandleEditForm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, form.Relationship.ID)
	assert.Len(t, form.Options.People, 3)

	data, err := json.Marshal(form)
	require.NoError(t, err)
	var encoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &encoded))
	assert.Contains(t, encoded, "relationship")
	assert.Contains(t, encoded, "options")

	_, err = f.handler.HandleEditForm(ctx, 404)
	assert.ErrorIs(t, err, entities.ErrEdgeNotFound)
}

func TestRelationshipHandler_HandleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.handler.HandleSearch(ctx, "mother", 5)
		assert.ErrorIs(t, err, services.ErrIndexDisabled)

		_, err = f.handler.HandleReindex(ctx)
		assert.ErrorIs(t, err, services.ErrIndexDisabled)
	})

	t.Run("drops stale entries", func(t *testing.T) {
		f := newFixture(t, true)
		kept := f.create(t, 1, 2, 1)
		gone := f.create(t, 3, 2, 2)

		// Simulate a delete whose index removal was lost.
		f.vectorDB.Err = errors.New("qdrant down")
		require.NoError(t, f.handler.HandleDelete(ctx, gone.ID))
		f.vectorDB.Err = nil

		results, err := f.handler.HandleSearch(ctx, "Alice's children", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, kept.ID, results[0].ID)
		assert.InDelta(t, 0.9, results[0].Score, 0.0001)
	})

	t.Run("reindex", func(t *testing.T) {
		f := newFixture(t, true)
		f.embedder.Err = errors.New("offline")
		f.create(t, 1, 2, 1)
		f.create(t, 1, 3, 1)
		assert.Empty(t, f.vectorDB.Edges)

		f.embedder.Err = nil
		n, err := f.handler.HandleReindex(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, f.vectorDB.Edges, 2)
	})
}

func TestRelationshipHandler_ResolveTypeRef(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.db.AddType(5, entities.KindMother, "fr_FR")

	tests := []struct {
		name     string
		ref      string
		locale   string
		expected int64
		wantErr  error
	}{
		{name: "numeric id", ref: "2", expected: 2},
		{name: "kind default locale", ref: "mother", expected: 1},
		{name: "kind with locale", ref: "Mother", locale: "fr_FR", expected: 5},
		{name: "kind not seeded", ref: "uncle", wantErr: entities.ErrTypeNotFound},
		{name: "invalid kind", ref: "friend", wantErr: entities.ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := f.handler.ResolveTypeRef(ctx, tt.ref, tt.locale)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeInvalid, Outcome(entities.ErrSelfRelationship))
	assert.Equal(t, OutcomeNotFound, Outcome(entities.ErrTypeNotFound))
	assert.Equal(t, OutcomeConflict, Outcome(entities.ErrDuplicateEdge))
	assert.Equal(t, OutcomeError, Outcome(entities.ErrStorage))
}
