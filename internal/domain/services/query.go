package services

import (
	"context"
	"fmt"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
)

// QueryService attaches people and types to edges for presentation.
// It never validates: a reference that no longer resolves is left nil.
type QueryService struct {
	graph        *GraphService
	relationalDB ports.RelationalDB
}

// NewQueryService creates a new query service.
func NewQueryService(graph *GraphService, relationalDB ports.RelationalDB) *QueryService {
	return &QueryService{
		graph:        graph,
		relationalDB: relationalDB,
	}
}

// List returns resolved edges matching the filter.
func (s *QueryService) List(ctx context.Context, filter entities.EdgeFilter) ([]entities.ResolvedEdge, error) {
	edges, err := s.graph.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, edges)
}

// Get returns a single resolved edge.
func (s *QueryService) Get(ctx context.Context, id int64) (*entities.ResolvedEdge, error) {
	edge, err := s.graph.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ResolveOne(ctx, edge)
}

// ForPerson returns the resolved edges where personID is the subject and
// those where it is the object.
func (s *QueryService) ForPerson(ctx context.Context, personID int64) (outgoing, incoming []entities.ResolvedEdge, err error) {
	outgoing, err = s.List(ctx, entities.EdgeFilter{SubjectID: &personID})
	if err != nil {
		return nil, nil, fmt.Errorf("listing relationships of person %d: %w", personID, err)
	}
	incoming, err = s.List(ctx, entities.EdgeFilter{ObjectID: &personID})
	if err != nil {
		return nil, nil, fmt.Errorf("listing inverse relationships of person %d: %w", personID, err)
	}
	return outgoing, incoming, nil
}

// ResolveOne resolves a single edge.
func (s *QueryService) ResolveOne(ctx context.Context, edge *entities.Edge) (*entities.ResolvedEdge, error) {
	resolved, err := s.Resolve(ctx, []entities.Edge{*edge})
	if err != nil {
		return nil, err
	}
	return &resolved[0], nil
}

// Resolve batch-loads the people and types referenced by edges, one lookup
// per table, and returns the edges in the same order.
func (s *QueryService) Resolve(ctx context.Context, edges []entities.Edge) ([]entities.ResolvedEdge, error) {
	resolved := make([]entities.ResolvedEdge, len(edges))
	if len(edges) == 0 {
		return resolved, nil
	}

	personIDs := make([]int64, 0, len(edges)*2)
	typeIDs := make([]int64, 0, len(edges))
	seenPeople := make(map[int64]bool, len(edges)*2)
	seenTypes := make(map[int64]bool, len(edges))
	for _, e := range edges {
		for _, id := range []int64{e.SubjectID, e.ObjectID} {
			if !seenPeople[id] {
				seenPeople[id] = true
				personIDs = append(personIDs, id)
			}
		}
		if !seenTypes[e.TypeID] {
			seenTypes[e.TypeID] = true
			typeIDs = append(typeIDs, e.TypeID)
		}
	}

	people, err := s.relationalDB.FindPeopleByIDs(ctx, personIDs)
	if err != nil {
		return nil, classify(fmt.Errorf("loading people: %w", err))
	}
	types, err := s.relationalDB.FindTypesByIDs(ctx, typeIDs)
	if err != nil {
		return nil, classify(fmt.Errorf("loading relationship types: %w", err))
	}

	peopleByID := make(map[int64]*entities.Person, len(people))
	for i := range people {
		peopleByID[people[i].ID] = &people[i]
	}
	typesByID := make(map[int64]*entities.RelationshipType, len(types))
	for i := range types {
		typesByID[types[i].ID] = &types[i]
	}

	for i, e := range edges {
		resolved[i] = entities.ResolvedEdge{
			Edge:    e,
			Subject: peopleByID[e.SubjectID],
			Object:  peopleByID[e.ObjectID],
			Type:    typesByID[e.TypeID],
		}
	}
	return resolved, nil
}
