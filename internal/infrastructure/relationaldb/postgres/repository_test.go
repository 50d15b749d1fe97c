//go:build integration

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/services"
	"github.com/ersonp/kinship/internal/infrastructure/config"
)

// setupTestRepo connects to KIN_TEST_POSTGRES_DSN and starts from empty tables.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("KIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KIN_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	repo, err := NewRepository(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = repo.pool.Exec(ctx,
		`TRUNCATE audit_log, relationships, relationship_types, people RESTART IDENTITY`)
	require.NoError(t, err)
	return repo
}

func seed(t *testing.T, repo *Repository) (alice, bob *entities.Person, mother *entities.RelationshipType) {
	t.Helper()
	ctx := context.Background()
	alice = &entities.Person{FullName: "Alice", Email: "alice@example.com"}
	bob = &entities.Person{FullName: "Bob"}
	require.NoError(t, repo.SavePerson(ctx, alice))
	require.NoError(t, repo.SavePerson(ctx, bob))
	mother = &entities.RelationshipType{Kind: entities.KindMother, Locale: entities.DefaultLocale}
	require.NoError(t, repo.SaveRelationshipType(ctx, mother))
	return alice, bob, mother
}

func TestRepository_Constraints(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice, bob, mother := seed(t, repo)
	now := time.Now().UTC()

	err := repo.SavePerson(ctx, &entities.Person{FullName: "Twin", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, entities.ErrDuplicatePerson)

	again := &entities.RelationshipType{Kind: entities.KindMother, Locale: entities.DefaultLocale}
	require.NoError(t, repo.SaveRelationshipType(ctx, again))
	assert.Equal(t, mother.ID, again.ID)

	err = repo.SaveRelationshipType(ctx, &entities.RelationshipType{Kind: "best_friend", Locale: entities.DefaultLocale})
	assert.ErrorIs(t, err, entities.ErrInvalidKind)

	err = repo.SaveRelationshipType(ctx, &entities.RelationshipType{Kind: entities.KindMother, Locale: "en_US_TOO_LONG_LOCALE"})
	assert.ErrorIs(t, err, entities.ErrInvalidLocale)

	insert := `INSERT INTO relationship_types (kind, locale, created_at, updated_at) VALUES ($1, $2, $3, $3)`
	_, err = repo.pool.Exec(ctx, insert, "best_friend", entities.DefaultLocale, now)
	assert.Error(t, err)
	_, err = repo.pool.Exec(ctx, insert, string(entities.KindMother), "en_US_TOO_LONG_LOCALE", now)
	assert.Error(t, err)

	edge := &entities.Edge{SubjectID: alice.ID, ObjectID: bob.ID, TypeID: mother.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.InsertEdge(ctx, edge))

	dup := *edge
	err = repo.InsertEdge(ctx, &dup)
	assert.ErrorIs(t, err, entities.ErrDuplicateEdge)

	err = repo.InsertEdge(ctx, &entities.Edge{SubjectID: alice.ID, ObjectID: alice.ID, TypeID: mother.ID, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, entities.ErrSelfRelationship)

	err = repo.InsertEdge(ctx, &entities.Edge{SubjectID: alice.ID, ObjectID: 999, TypeID: mother.ID, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, entities.ErrPersonNotFound)

	err = repo.InsertEdge(ctx, &entities.Edge{SubjectID: bob.ID, ObjectID: alice.ID, TypeID: 999, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, entities.ErrTypeNotFound)

	require.NoError(t, repo.DeleteEdge(ctx, edge.ID))
	assert.ErrorIs(t, repo.DeleteEdge(ctx, edge.ID), entities.ErrEdgeNotFound)
}

// Concurrent creates of the same triple leave exactly one edge.
func TestRepository_ConcurrentCreate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice, bob, mother := seed(t, repo)
	graph := services.NewGraphService(repo)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = graph.Create(ctx, entities.EdgeInput{SubjectID: alice.ID, ObjectID: bob.ID, TypeID: mother.ID})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, entities.ErrDuplicateEdge)
	}
	assert.Equal(t, 1, succeeded)

	count, err := repo.CountEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_History(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice, bob, mother := seed(t, repo)
	graph := services.NewGraphService(repo)

	edge, err := graph.Create(ctx, entities.EdgeInput{SubjectID: alice.ID, ObjectID: bob.ID, TypeID: mother.ID})
	require.NoError(t, err)
	require.NoError(t, graph.Delete(ctx, edge.ID))

	history, err := graph.History(ctx, edge.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.AuditEdgeCreated, history[0].Action)
	assert.Contains(t, history[0].Details, "after")
	assert.Equal(t, entities.AuditEdgeDeleted, history[1].Action)

	edges, err := repo.ListEdges(ctx, entities.EdgeFilter{SubjectID: entities.Int64(alice.ID)})
	require.NoError(t, err)
	assert.Empty(t, edges)
}
