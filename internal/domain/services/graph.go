package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
)

// GraphService owns relationship edges: it is their only writer and enforces
// every graph invariant. Each mutation validates and writes inside a single
// transaction, so concurrent callers cannot slip a duplicate or a dangling
// reference between the checks and the write.
type GraphService struct {
	db  ports.RelationalDB
	now func() time.Time
}

// NewGraphService creates a new GraphService.
func NewGraphService(db ports.RelationalDB) *GraphService {
	return &GraphService{
		db:  db,
		now: time.Now,
	}
}

// Create validates and stores a new edge.
//
// Checks run in order and the first failure wins: all fields present,
// subject differs from object, both people exist, the type exists, and no
// edge with the same triple exists. On failure nothing is written.
func (s *GraphService) Create(ctx context.Context, in entities.EdgeInput) (*entities.Edge, error) {
	if in.SubjectID == 0 || in.ObjectID == 0 || in.TypeID == 0 {
		return nil, fmt.Errorf("%w: subject, object and type are required", entities.ErrMissingField)
	}
	triple := in.Triple()
	if triple.IsSelf() {
		return nil, fmt.Errorf("%w: person %d", entities.ErrSelfRelationship, in.SubjectID)
	}

	var edge *entities.Edge
	err := s.db.WithinTx(ctx, func(tx ports.GraphTx) error {
		if err := requirePeople(ctx, tx, triple.SubjectID, triple.ObjectID); err != nil {
			return err
		}
		if err := requireType(ctx, tx, triple.TypeID); err != nil {
			return err
		}
		if err := rejectDuplicate(ctx, tx, triple, 0); err != nil {
			return err
		}

		now := s.now().UTC()
		edge = &entities.Edge{
			SubjectID: triple.SubjectID,
			ObjectID:  triple.ObjectID,
			TypeID:    triple.TypeID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertEdge(ctx, edge); err != nil {
			return fmt.Errorf("inserting edge: %w", err)
		}
		return tx.LogAction(ctx, entities.AuditEdgeCreated, edge.ID, map[string]any{
			"after": entities.TripleDetails(triple),
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	return edge, nil
}

// Update applies a partial change to an existing edge.
//
// The patch is merged onto the current triple to form a candidate, which
// must not point a person at themselves. Existence is re-checked only for
// supplied fields whose value differs from the current one. The duplicate
// scan runs only when the candidate differs from the current triple and
// skips the edge being updated.
func (s *GraphService) Update(ctx context.Context, id int64, patch entities.EdgePatch) (*entities.Edge, error) {
	var edge *entities.Edge
	err := s.db.WithinTx(ctx, func(tx ports.GraphTx) error {
		current, err := tx.FindEdge(ctx, id)
		if err != nil {
			return fmt.Errorf("finding edge: %w", err)
		}
		if current == nil {
			return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
		}

		before := current.Triple()
		candidate := patch.Apply(before)
		if candidate.IsSelf() {
			return fmt.Errorf("%w: person %d", entities.ErrSelfRelationship, candidate.SubjectID)
		}

		if changed(patch.SubjectID, before.SubjectID) {
			if err := requirePeople(ctx, tx, candidate.SubjectID); err != nil {
				return err
			}
		}
		if changed(patch.ObjectID, before.ObjectID) {
			if err := requirePeople(ctx, tx, candidate.ObjectID); err != nil {
				return err
			}
		}
		if changed(patch.TypeID, before.TypeID) {
			if err := requireType(ctx, tx, candidate.TypeID); err != nil {
				return err
			}
		}
		if candidate != before {
			if err := rejectDuplicate(ctx, tx, candidate, id); err != nil {
				return err
			}
		}

		edge = &entities.Edge{
			ID:        current.ID,
			SubjectID: candidate.SubjectID,
			ObjectID:  candidate.ObjectID,
			TypeID:    candidate.TypeID,
			CreatedAt: current.CreatedAt,
			UpdatedAt: s.now().UTC(),
		}
		if edge.UpdatedAt.Before(edge.CreatedAt) {
			edge.UpdatedAt = edge.CreatedAt
		}
		if err := tx.UpdateEdge(ctx, edge); err != nil {
			return fmt.Errorf("updating edge: %w", err)
		}
		return tx.LogAction(ctx, entities.AuditEdgeUpdated, edge.ID, map[string]any{
			"before": entities.TripleDetails(before),
			"after":  entities.TripleDetails(candidate),
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	return edge, nil
}

// Delete removes an edge. Deletion is always permitted for a present edge.
func (s *GraphService) Delete(ctx context.Context, id int64) error {
	err := s.db.WithinTx(ctx, func(tx ports.GraphTx) error {
		current, err := tx.FindEdge(ctx, id)
		if err != nil {
			return fmt.Errorf("finding edge: %w", err)
		}
		if current == nil {
			return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
		}
		if err := tx.DeleteEdge(ctx, id); err != nil {
			return fmt.Errorf("deleting edge: %w", err)
		}
		return tx.LogAction(ctx, entities.AuditEdgeDeleted, id, map[string]any{
			"before": entities.TripleDetails(current.Triple()),
		})
	})
	return classify(err)
}

// Get returns a single edge.
func (s *GraphService) Get(ctx context.Context, id int64) (*entities.Edge, error) {
	edge, err := s.db.FindEdge(ctx, id)
	if err != nil {
		return nil, classify(fmt.Errorf("finding edge: %w", err))
	}
	if edge == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
	}
	return edge, nil
}

// List returns edges matching every supplied filter field. No match yields
// an empty slice.
func (s *GraphService) List(ctx context.Context, filter entities.EdgeFilter) ([]entities.Edge, error) {
	edges, err := s.db.ListEdges(ctx, filter)
	if err != nil {
		return nil, classify(fmt.Errorf("listing edges: %w", err))
	}
	if edges == nil {
		edges = []entities.Edge{}
	}
	return edges, nil
}

// History returns the audit trail of an edge, oldest first. It remains
// available after the edge is deleted.
func (s *GraphService) History(ctx context.Context, id int64) ([]entities.AuditEntry, error) {
	entries, err := s.db.FindAuditLog(ctx, id)
	if err != nil {
		return nil, classify(fmt.Errorf("reading audit log: %w", err))
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
	}
	return entries, nil
}

// Count returns the total number of edges.
func (s *GraphService) Count(ctx context.Context) (int, error) {
	n, err := s.db.CountEdges(ctx)
	if err != nil {
		return 0, classify(fmt.Errorf("counting edges: %w", err))
	}
	return n, nil
}

// changed reports whether a supplied field differs from the current value.
func changed(supplied *int64, current int64) bool {
	return supplied != nil && *supplied != current
}

func requirePeople(ctx context.Context, dir ports.PersonDirectory, ids ...int64) error {
	for _, id := range ids {
		ok, err := dir.PersonExists(ctx, id)
		if err != nil {
			return fmt.Errorf("checking person %d: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("%w: %d", entities.ErrPersonNotFound, id)
		}
	}
	return nil
}

func requireType(ctx context.Context, catalog ports.TypeCatalog, id int64) error {
	ok, err := catalog.TypeExists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking relationship type %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %d", entities.ErrTypeNotFound, id)
	}
	return nil
}

func rejectDuplicate(ctx context.Context, edges ports.EdgeReader, t entities.Triple, excludeID int64) error {
	existing, err := edges.FindEdgeByTriple(ctx, t, excludeID)
	if err != nil {
		return fmt.Errorf("checking duplicate edge: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w (id: %d)", entities.ErrDuplicateEdge, existing.ID)
	}
	return nil
}

// domainErrors are passed through unchanged; anything else is a storage failure.
var domainErrors = []error{
	entities.ErrMissingField,
	entities.ErrSelfRelationship,
	entities.ErrPersonNotFound,
	entities.ErrTypeNotFound,
	entities.ErrDuplicateEdge,
	entities.ErrEdgeNotFound,
	entities.ErrDuplicatePerson,
	entities.ErrInvalidKind,
	entities.ErrInvalidLocale,
	entities.ErrStorage,
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", entities.ErrStorage, err)
}
