package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/mocks"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
	dan   int64 = 4

	motherType int64 = 1
	fatherType int64 = 2
	sisterType int64 = 3
)

func newTestDB() *mocks.RelationalDB {
	db := mocks.NewRelationalDB()
	db.AddPerson(alice, "Alice")
	db.AddPerson(bob, "Bob")
	db.AddPerson(carol, "Carol")
	db.AddPerson(dan, "Dan")
	db.AddType(motherType, entities.KindMother, entities.DefaultLocale)
	db.AddType(fatherType, entities.KindFather, entities.DefaultLocale)
	db.AddType(sisterType, entities.KindSister, entities.DefaultLocale)
	return db
}

// clock returns a controllable time source starting at t.
func clock(t time.Time) (func() time.Time, func(time.Duration)) {
	now := t
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func mustCreate(t *testing.T, svc *GraphService, subject, object, typeID int64) *entities.Edge {
	t.Helper()
	edge, err := svc.Create(context.Background(), entities.EdgeInput{SubjectID: subject, ObjectID: object, TypeID: typeID})
	require.NoError(t, err)
	return edge
}

func TestGraphService_Create(t *testing.T) {
	db := newTestDB()
	svc := NewGraphService(db)

	edge, err := svc.Create(context.Background(), entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: motherType})
	require.NoError(t, err)

	assert.NotZero(t, edge.ID)
	assert.Equal(t, alice, edge.SubjectID)
	assert.Equal(t, bob, edge.ObjectID)
	assert.Equal(t, motherType, edge.TypeID)
	assert.Equal(t, edge.CreatedAt, edge.UpdatedAt)

	history, err := svc.History(context.Background(), edge.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entities.AuditEdgeCreated, history[0].Action)
}

func TestGraphService_CreateValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		input   entities.EdgeInput
		wantErr error
	}{
		{
			name:    "all missing",
			input:   entities.EdgeInput{},
			wantErr: entities.ErrMissingField,
		},
		{
			name:    "missing type",
			input:   entities.EdgeInput{SubjectID: alice, ObjectID: bob},
			wantErr: entities.ErrMissingField,
		},
		{
			name:    "missing beats self",
			input:   entities.EdgeInput{SubjectID: alice, ObjectID: alice},
			wantErr: entities.ErrMissingField,
		},
		{
			name:    "self beats unknown type",
			input:   entities.EdgeInput{SubjectID: alice, ObjectID: alice, TypeID: 99},
			wantErr: entities.ErrSelfRelationship,
		},
		{
			name:    "self beats unknown person",
			input:   entities.EdgeInput{SubjectID: 99, ObjectID: 99, TypeID: motherType},
			wantErr: entities.ErrSelfRelationship,
		},
		{
			name:    "unknown subject",
			input:   entities.EdgeInput{SubjectID: 99, ObjectID: bob, TypeID: motherType},
			wantErr: entities.ErrPersonNotFound,
		},
		{
			name:    "unknown object",
			input:   entities.EdgeInput{SubjectID: alice, ObjectID: 99, TypeID: motherType},
			wantErr: entities.ErrPersonNotFound,
		},
		{
			name:    "unknown person beats unknown type",
			input:   entities.EdgeInput{SubjectID: alice, ObjectID: 99, TypeID: 99},
			wantErr: entities.ErrPersonNotFound,
		},
		{
			name:    "unknown type",
			input:   entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: 99},
			wantErr: entities.ErrTypeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB()
			svc := NewGraphService(db)

			_, err := svc.Create(context.Background(), tt.input)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, db.EdgeCount())
		})
	}
}

func TestGraphService_CreateIsDirectional(t *testing.T) {
	svc := NewGraphService(newTestDB())

	forward := mustCreate(t, svc, alice, bob, motherType)
	reverse := mustCreate(t, svc, bob, alice, motherType)

	assert.NotEqual(t, forward.ID, reverse.ID)
}

func TestGraphService_CreateDuplicate(t *testing.T) {
	db := newTestDB()
	svc := NewGraphService(db)
	ctx := context.Background()
	input := entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: motherType}

	first, err := svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = svc.Create(ctx, input)
	assert.ErrorIs(t, err, entities.ErrDuplicateEdge)
	assert.Equal(t, 1, db.EdgeCount())

	t.Run("same pair with another type is allowed", func(t *testing.T) {
		mustCreate(t, svc, alice, bob, sisterType)
	})

	t.Run("succeeds again after delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, first.ID))
		again, err := svc.Create(ctx, input)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, again.ID)
	})
}

func TestGraphService_CreateMapsWriteTimeConflict(t *testing.T) {
	db := newTestDB()
	db.InsertErr = entities.ErrDuplicateEdge
	svc := NewGraphService(db)

	_, err := svc.Create(context.Background(), entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: motherType})

	assert.ErrorIs(t, err, entities.ErrDuplicateEdge)
	assert.False(t, entities.IsRetryable(err))
	assert.Equal(t, 0, db.EdgeCount())
}

func TestGraphService_StorageFailure(t *testing.T) {
	db := newTestDB()
	db.Err = errors.New("disk I/O error")
	svc := NewGraphService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: motherType})
	assert.ErrorIs(t, err, entities.ErrStorage)
	assert.True(t, entities.IsRetryable(err))

	_, err = svc.List(ctx, entities.EdgeFilter{})
	assert.ErrorIs(t, err, entities.ErrStorage)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, entities.ErrStorage)
}

func TestGraphService_CancelledContextWritesNothing(t *testing.T) {
	db := newTestDB()
	svc := NewGraphService(db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Create(ctx, entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: motherType})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, entities.IsRetryable(err))
	assert.Equal(t, 0, db.EdgeCount())
}

func TestGraphService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("changes the type", func(t *testing.T) {
		svc := NewGraphService(newTestDB())
		edge := mustCreate(t, svc, alice, bob, motherType)

		updated, err := svc.Update(ctx, edge.ID, entities.EdgePatch{TypeID: entities.Int64(fatherType)})
		require.NoError(t, err)

		assert.Equal(t, edge.ID, updated.ID)
		assert.Equal(t, entities.Triple{SubjectID: alice, ObjectID: bob, TypeID: fatherType}, updated.Triple())
		assert.Equal(t, edge.CreatedAt, updated.CreatedAt)
	})

	t.Run("missing edge", func(t *testing.T) {
		svc := NewGraphService(newTestDB())
		_, err := svc.Update(ctx, 42, entities.EdgePatch{TypeID: entities.Int64(fatherType)})
		assert.ErrorIs(t, err, entities.ErrEdgeNotFound)
	})

	t.Run("self relationship on candidate", func(t *testing.T) {
		svc := NewGraphService(newTestDB())
		edge := mustCreate(t, svc, alice, bob, motherType)

		_, err := svc.Update(ctx, edge.ID, entities.EdgePatch{ObjectID: entities.Int64(alice)})
		assert.ErrorIs(t, err, entities.ErrSelfRelationship)
	})

	t.Run("unknown person", func(t *testing.T) {
		svc := NewGraphService(newTestDB())
		edge := mustCreate(t, svc, alice, bob, motherType)

		_, err := svc.Update(ctx, edge.ID, entities.EdgePatch{SubjectID: entities.Int64(99)})
		assert.ErrorIs(t, err, entities.ErrPersonNotFound)
	})

	t.Run("unknown type", func(t *testing.T) {
		svc := NewGraphService(newTestDB())
		edge := mustCreate(t, svc, alice, bob, motherType)

		_, err := svc.Update(ctx, edge.ID, entities.EdgePatch{TypeID: entities.Int64(99)})
		assert.ErrorIs(t, err, entities.ErrTypeNotFound)
	})

	t.Run("explicit zero is checked and rejected", func(t *testing.T) {
		svc := NewGraphService(newTestDB())
		edge := mustCreate(t, svc, alice, bob, motherType)

		_, err := svc.Update(ctx, edge.ID, entities.EdgePatch{ObjectID: entities.Int64(0)})
		assert.ErrorIs(t, err, entities.ErrPersonNotFound)

		_, err = svc.Update(ctx, edge.ID, entities.EdgePatch{TypeID: entities.Int64(0)})
		assert.ErrorIs(t, err, entities.ErrTypeNotFound)
	})
}

func TestGraphService_UpdateToDuplicateLeavesEdgeUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := NewGraphService(newTestDB())

	mustCreate(t, svc, alice, bob, motherType)
	other := mustCreate(t, svc, alice, bob, sisterType)

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := svc.Update(ctx, other.ID, entities.EdgePatch{TypeID: entities.Int64(motherType)})
		assert.ErrorIs(t, err, entities.ErrDuplicateEdge, "attempt %d", attempt)

		got, err := svc.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, other.Triple(), got.Triple(), "attempt %d", attempt)
		assert.Equal(t, other.UpdatedAt, got.UpdatedAt, "attempt %d", attempt)
	}

	history, err := svc.History(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGraphService_UpdateSkipsUnchangedReferences(t *testing.T) {
	ctx := context.Background()
	db := newTestDB()
	svc := NewGraphService(db)
	edge := mustCreate(t, svc, alice, bob, motherType)
	db.ResetLookups()

	updated, err := svc.Update(ctx, edge.ID, entities.EdgePatch{
		SubjectID: entities.Int64(alice),
		ObjectID:  entities.Int64(bob),
		TypeID:    entities.Int64(motherType),
	})
	require.NoError(t, err)

	assert.Equal(t, edge.Triple(), updated.Triple())
	assert.Empty(t, db.PersonLookups)
	assert.Empty(t, db.TypeLookups)

	t.Run("only changed fields are checked", func(t *testing.T) {
		db.ResetLookups()
		_, err := svc.Update(ctx, edge.ID, entities.EdgePatch{
			SubjectID: entities.Int64(alice),
			ObjectID:  entities.Int64(carol),
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{carol}, db.PersonLookups)
		assert.Empty(t, db.TypeLookups)
	})
}

func TestGraphService_UpdateTimestamps(t *testing.T) {
	ctx := context.Background()
	svc := NewGraphService(newTestDB())
	now, advance := clock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc.now = now

	edge := mustCreate(t, svc, alice, bob, motherType)

	t.Run("no-op update refreshes updatedAt", func(t *testing.T) {
		advance(time.Minute)
		updated, err := svc.Update(ctx, edge.ID, entities.EdgePatch{})
		require.NoError(t, err)
		assert.Equal(t, edge.CreatedAt, updated.CreatedAt)
		assert.Equal(t, edge.CreatedAt.Add(time.Minute), updated.UpdatedAt)
	})

	t.Run("clock going backwards is clamped", func(t *testing.T) {
		advance(-time.Hour)
		updated, err := svc.Update(ctx, edge.ID, entities.EdgePatch{TypeID: entities.Int64(fatherType)})
		require.NoError(t, err)
		assert.Equal(t, updated.CreatedAt, updated.UpdatedAt)
	})
}

func TestGraphService_Delete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB()
	svc := NewGraphService(db)
	edge := mustCreate(t, svc, alice, bob, motherType)

	require.NoError(t, svc.Delete(ctx, edge.ID))
	assert.Equal(t, 0, db.EdgeCount())

	err := svc.Delete(ctx, edge.ID)
	assert.ErrorIs(t, err, entities.ErrEdgeNotFound)

	_, err = svc.Get(ctx, edge.ID)
	assert.ErrorIs(t, err, entities.ErrEdgeNotFound)

	t.Run("history outlives the edge", func(t *testing.T) {
		history, err := svc.History(ctx, edge.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, entities.AuditEdgeCreated, history[0].Action)
		assert.Equal(t, entities.AuditEdgeDeleted, history[1].Action)
	})
}

func TestGraphService_Get(t *testing.T) {
	ctx := context.Background()
	svc := NewGraphService(newTestDB())
	edge := mustCreate(t, svc, alice, bob, motherType)

	got, err := svc.Get(ctx, edge.ID)
	require.NoError(t, err)
	assert.Equal(t, edge.Triple(), got.Triple())
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestGraphService_List(t *testing.T) {
	ctx := context.Background()
	svc := NewGraphService(newTestDB())

	e1 := mustCreate(t, svc, alice, bob, motherType)
	e2 := mustCreate(t, svc, alice, carol, motherType)
	e3 := mustCreate(t, svc, dan, bob, fatherType)

	tests := []struct {
		name     string
		filter   entities.EdgeFilter
		expected []int64
	}{
		{"no filter", entities.EdgeFilter{}, []int64{e1.ID, e2.ID, e3.ID}},
		{"by subject", entities.EdgeFilter{SubjectID: entities.Int64(alice)}, []int64{e1.ID, e2.ID}},
		{"by object", entities.EdgeFilter{ObjectID: entities.Int64(bob)}, []int64{e1.ID, e3.ID}},
		{"by type", entities.EdgeFilter{TypeID: entities.Int64(fatherType)}, []int64{e3.ID}},
		{"combined", entities.EdgeFilter{SubjectID: entities.Int64(alice), ObjectID: entities.Int64(carol)}, []int64{e2.ID}},
		{"no match", entities.EdgeFilter{SubjectID: entities.Int64(bob)}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, edges)

			ids := make([]int64, 0, len(edges))
			for _, e := range edges {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestGraphService_HistoryUnknownEdge(t *testing.T) {
	svc := NewGraphService(newTestDB())
	_, err := svc.History(context.Background(), 7)
	assert.ErrorIs(t, err, entities.ErrEdgeNotFound)
}

// TestGraphService_Scenario walks through a typical session against one store.
func TestGraphService_Scenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB()
	svc := NewGraphService(db)

	e1 := mustCreate(t, svc, alice, bob, motherType)

	_, err := svc.Create(ctx, entities.EdgeInput{SubjectID: alice, ObjectID: bob, TypeID: motherType})
	require.ErrorIs(t, err, entities.ErrDuplicateEdge)

	e2 := mustCreate(t, svc, alice, bob, sisterType)

	_, err = svc.Update(ctx, e2.ID, entities.EdgePatch{TypeID: entities.Int64(motherType)})
	require.ErrorIs(t, err, entities.ErrDuplicateEdge)

	require.NoError(t, svc.Delete(ctx, e1.ID))

	updated, err := svc.Update(ctx, e2.ID, entities.EdgePatch{TypeID: entities.Int64(motherType)})
	require.NoError(t, err)
	assert.Equal(t, motherType, updated.TypeID)

	edges, err := svc.List(ctx, entities.EdgeFilter{SubjectID: entities.Int64(alice)})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, e2.ID, edges[0].ID)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
