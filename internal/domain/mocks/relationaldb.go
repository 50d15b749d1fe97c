package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
)

var _ ports.RelationalDB = (*RelationalDB)(nil)

// RelationalDB is an in-memory implementation of ports.RelationalDB.
// WithinTx works on a copy of the state and swaps it in on success, so a
// failed transaction leaves nothing behind.
type RelationalDB struct {
	// Err, when set, is returned by every operation.
	Err error
	// InsertErr and UpdateErr are returned by the edge writers, to simulate
	// constraint violations detected at write time.
	InsertErr error
	UpdateErr error

	// PersonLookups and TypeLookups record every existence check.
	PersonLookups []int64
	TypeLookups   []int64

	mu    sync.Mutex
	state *memState
}

type memState struct {
	people  map[int64]entities.Person
	types   map[int64]entities.RelationshipType
	edges   map[int64]entities.Edge
	audit   []entities.AuditEntry
	nextIDs map[string]int64
}

// NewRelationalDB creates a new mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		state: &memState{
			people:  make(map[int64]entities.Person),
			types:   make(map[int64]entities.RelationshipType),
			edges:   make(map[int64]entities.Edge),
			nextIDs: make(map[string]int64),
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		people:  make(map[int64]entities.Person, len(s.people)),
		types:   make(map[int64]entities.RelationshipType, len(s.types)),
		edges:   make(map[int64]entities.Edge, len(s.edges)),
		audit:   append([]entities.AuditEntry(nil), s.audit...),
		nextIDs: make(map[string]int64, len(s.nextIDs)),
	}
	for k, v := range s.people {
		c.people[k] = v
	}
	for k, v := range s.types {
		c.types[k] = v
	}
	for k, v := range s.edges {
		c.edges[k] = v
	}
	for k, v := range s.nextIDs {
		c.nextIDs[k] = v
	}
	return c
}

func (s *memState) nextID(table string) int64 {
	s.nextIDs[table]++
	return s.nextIDs[table]
}

// memTx runs operations against one state without locking.
type memTx struct {
	db    *RelationalDB
	state *memState
}

func (m *RelationalDB) do(fn func(tx *memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return fn(&memTx{db: m, state: m.state})
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

// WithinTx runs fn against a copy of the state and commits it on success.
func (m *RelationalDB) WithinTx(ctx context.Context, fn func(tx ports.GraphTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	work := &memTx{db: m, state: m.state.clone()}
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work.state
	return nil
}

// Seeding helpers for tests.

// AddPerson stores a person with a fixed ID.
func (m *RelationalDB) AddPerson(id int64, fullName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.people[id] = entities.Person{ID: id, FullName: fullName, CreatedAt: time.Now()}
	if m.state.nextIDs["people"] < id {
		m.state.nextIDs["people"] = id
	}
}

// AddType stores a relationship type with a fixed ID.
func (m *RelationalDB) AddType(id int64, kind entities.Kind, locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.state.types[id] = entities.RelationshipType{ID: id, Kind: kind, Locale: locale, CreatedAt: now, UpdatedAt: now}
	if m.state.nextIDs["types"] < id {
		m.state.nextIDs["types"] = id
	}
}

// ForgetPerson removes a person without cascading to edges, leaving dangling
// references behind.
func (m *RelationalDB) ForgetPerson(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.people, id)
}

// ForgetType removes a type without cascading to edges.
func (m *RelationalDB) ForgetType(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.types, id)
}

// EdgeCount returns the number of stored edges.
func (m *RelationalDB) EdgeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.edges)
}

// ResetLookups clears the recorded existence checks.
func (m *RelationalDB) ResetLookups() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersonLookups = nil
	m.TypeLookups = nil
}

// Person directory methods.

// PersonExists reports whether a person with the given ID exists.
func (m *RelationalDB) PersonExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := m.do(func(tx *memTx) error {
		var err error
		ok, err = tx.PersonExists(ctx, id)
		return err
	})
	return ok, err
}

// FindPeopleByIDs returns the people that exist among ids.
func (m *RelationalDB) FindPeopleByIDs(ctx context.Context, ids []int64) ([]entities.Person, error) {
	var people []entities.Person
	err := m.do(func(tx *memTx) error {
		var err error
		people, err = tx.FindPeopleByIDs(ctx, ids)
		return err
	})
	return people, err
}

// SavePerson inserts a person and sets its ID.
func (m *RelationalDB) SavePerson(_ context.Context, person *entities.Person) error {
	return m.do(func(tx *memTx) error {
		if person.Email != "" {
			for _, p := range tx.state.people {
				if entities.NormalizeEmail(p.Email) == entities.NormalizeEmail(person.Email) {
					return fmt.Errorf("%w: %s", entities.ErrDuplicatePerson, person.Email)
				}
			}
		}
		person.ID = tx.state.nextID("people")
		tx.state.people[person.ID] = *person
		return nil
	})
}

// FindPerson finds a person by ID.
func (m *RelationalDB) FindPerson(_ context.Context, id int64) (*entities.Person, error) {
	var found *entities.Person
	err := m.do(func(tx *memTx) error {
		if p, ok := tx.state.people[id]; ok {
			found = &p
		}
		return nil
	})
	return found, err
}

// ListPeople lists all people ordered by ID.
func (m *RelationalDB) ListPeople(_ context.Context) ([]entities.Person, error) {
	var people []entities.Person
	err := m.do(func(tx *memTx) error {
		people = make([]entities.Person, 0, len(tx.state.people))
		for _, p := range tx.state.people {
			people = append(people, p)
		}
		sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
		return nil
	})
	return people, err
}

// Type catalog methods.

// TypeExists reports whether a relationship type with the given ID exists.
func (m *RelationalDB) TypeExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := m.do(func(tx *memTx) error {
		var err error
		ok, err = tx.TypeExists(ctx, id)
		return err
	})
	return ok, err
}

// FindTypesByIDs returns the types that exist among ids.
func (m *RelationalDB) FindTypesByIDs(ctx context.Context, ids []int64) ([]entities.RelationshipType, error) {
	var types []entities.RelationshipType
	err := m.do(func(tx *memTx) error {
		var err error
		types, err = tx.FindTypesByIDs(ctx, ids)
		return err
	})
	return types, err
}

// SaveRelationshipType inserts a type if its (kind, locale) pair is new.
func (m *RelationalDB) SaveRelationshipType(_ context.Context, rt *entities.RelationshipType) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	return m.do(func(tx *memTx) error {
		for _, existing := range tx.state.types {
			if existing.Kind == rt.Kind && existing.Locale == rt.Locale {
				*rt = existing
				return nil
			}
		}
		now := time.Now()
		rt.ID = tx.state.nextID("types")
		rt.CreatedAt, rt.UpdatedAt = now, now
		tx.state.types[rt.ID] = *rt
		return nil
	})
}

// FindRelationshipType finds a type by ID.
func (m *RelationalDB) FindRelationshipType(_ context.Context, id int64) (*entities.RelationshipType, error) {
	var found *entities.RelationshipType
	err := m.do(func(tx *memTx) error {
		if rt, ok := tx.state.types[id]; ok {
			found = &rt
		}
		return nil
	})
	return found, err
}

// ListRelationshipTypes lists the catalog ordered by ID.
func (m *RelationalDB) ListRelationshipTypes(_ context.Context) ([]entities.RelationshipType, error) {
	var types []entities.RelationshipType
	err := m.do(func(tx *memTx) error {
		types = make([]entities.RelationshipType, 0, len(tx.state.types))
		for _, rt := range tx.state.types {
			types = append(types, rt)
		}
		sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
		return nil
	})
	return types, err
}

// Edge methods.

// FindEdge returns the edge with the given ID, or nil if absent.
func (m *RelationalDB) FindEdge(ctx context.Context, id int64) (*entities.Edge, error) {
	var edge *entities.Edge
	err := m.do(func(tx *memTx) error {
		var err error
		edge, err = tx.FindEdge(ctx, id)
		return err
	})
	return edge, err
}

// FindEdgeByTriple returns an edge with exactly this triple, ignoring excludeID.
func (m *RelationalDB) FindEdgeByTriple(ctx context.Context, t entities.Triple, excludeID int64) (*entities.Edge, error) {
	var edge *entities.Edge
	err := m.do(func(tx *memTx) error {
		var err error
		edge, err = tx.FindEdgeByTriple(ctx, t, excludeID)
		return err
	})
	return edge, err
}

// ListEdges returns edges matching the filter, ordered by ID.
func (m *RelationalDB) ListEdges(ctx context.Context, filter entities.EdgeFilter) ([]entities.Edge, error) {
	var edges []entities.Edge
	err := m.do(func(tx *memTx) error {
		var err error
		edges, err = tx.ListEdges(ctx, filter)
		return err
	})
	return edges, err
}

// InsertEdge stores a new edge and sets its ID.
func (m *RelationalDB) InsertEdge(ctx context.Context, edge *entities.Edge) error {
	return m.do(func(tx *memTx) error { return tx.InsertEdge(ctx, edge) })
}

// UpdateEdge overwrites an existing edge.
func (m *RelationalDB) UpdateEdge(ctx context.Context, edge *entities.Edge) error {
	return m.do(func(tx *memTx) error { return tx.UpdateEdge(ctx, edge) })
}

// DeleteEdge removes an edge.
func (m *RelationalDB) DeleteEdge(ctx context.Context, id int64) error {
	return m.do(func(tx *memTx) error { return tx.DeleteEdge(ctx, id) })
}

// CountEdges returns the total number of edges.
func (m *RelationalDB) CountEdges(_ context.Context) (int, error) {
	var n int
	err := m.do(func(tx *memTx) error {
		n = len(tx.state.edges)
		return nil
	})
	return n, err
}

// Audit log methods.

// LogAction appends an entry to the audit log.
func (m *RelationalDB) LogAction(ctx context.Context, action string, edgeID int64, details map[string]any) error {
	return m.do(func(tx *memTx) error { return tx.LogAction(ctx, action, edgeID, details) })
}

// FindAuditLog finds audit log entries for an edge, oldest first.
func (m *RelationalDB) FindAuditLog(ctx context.Context, edgeID int64) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	err := m.do(func(tx *memTx) error {
		var err error
		entries, err = tx.FindAuditLog(ctx, edgeID)
		return err
	})
	return entries, err
}

// memTx implementation of ports.GraphTx.

func (tx *memTx) PersonExists(_ context.Context, id int64) (bool, error) {
	tx.db.PersonLookups = append(tx.db.PersonLookups, id)
	_, ok := tx.state.people[id]
	return ok, nil
}

func (tx *memTx) FindPeopleByIDs(_ context.Context, ids []int64) ([]entities.Person, error) {
	people := make([]entities.Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := tx.state.people[id]; ok {
			people = append(people, p)
		}
	}
	return people, nil
}

func (tx *memTx) TypeExists(_ context.Context, id int64) (bool, error) {
	tx.db.TypeLookups = append(tx.db.TypeLookups, id)
	_, ok := tx.state.types[id]
	return ok, nil
}

func (tx *memTx) FindTypesByIDs(_ context.Context, ids []int64) ([]entities.RelationshipType, error) {
	types := make([]entities.RelationshipType, 0, len(ids))
	for _, id := range ids {
		if rt, ok := tx.state.types[id]; ok {
			types = append(types, rt)
		}
	}
	return types, nil
}

func (tx *memTx) FindEdge(_ context.Context, id int64) (*entities.Edge, error) {
	e, ok := tx.state.edges[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (tx *memTx) FindEdgeByTriple(_ context.Context, t entities.Triple, excludeID int64) (*entities.Edge, error) {
	for _, e := range tx.state.edges {
		if e.ID != excludeID && e.Triple() == t {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (tx *memTx) ListEdges(_ context.Context, filter entities.EdgeFilter) ([]entities.Edge, error) {
	edges := make([]entities.Edge, 0, len(tx.state.edges))
	for _, e := range tx.state.edges {
		if filter.Matches(&e) {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

// checkConstraints mirrors the foreign keys and unique index of the real schema.
func (tx *memTx) checkConstraints(edge *entities.Edge) error {
	if _, ok := tx.state.people[edge.SubjectID]; !ok {
		return fmt.Errorf("%w: %d", entities.ErrPersonNotFound, edge.SubjectID)
	}
	if _, ok := tx.state.people[edge.ObjectID]; !ok {
		return fmt.Errorf("%w: %d", entities.ErrPersonNotFound, edge.ObjectID)
	}
	if _, ok := tx.state.types[edge.TypeID]; !ok {
		return fmt.Errorf("%w: %d", entities.ErrTypeNotFound, edge.TypeID)
	}
	for _, e := range tx.state.edges {
		if e.ID != edge.ID && e.Triple() == edge.Triple() {
			return entities.ErrDuplicateEdge
		}
	}
	return nil
}

func (tx *memTx) InsertEdge(_ context.Context, edge *entities.Edge) error {
	if tx.db.InsertErr != nil {
		return tx.db.InsertErr
	}
	if err := tx.checkConstraints(edge); err != nil {
		return err
	}
	edge.ID = tx.state.nextID("edges")
	tx.state.edges[edge.ID] = *edge
	return nil
}

func (tx *memTx) UpdateEdge(_ context.Context, edge *entities.Edge) error {
	if tx.db.UpdateErr != nil {
		return tx.db.UpdateErr
	}
	current, ok := tx.state.edges[edge.ID]
	if !ok {
		return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, edge.ID)
	}
	if err := tx.checkConstraints(edge); err != nil {
		return err
	}
	edge.CreatedAt = current.CreatedAt
	tx.state.edges[edge.ID] = *edge
	return nil
}

func (tx *memTx) DeleteEdge(_ context.Context, id int64) error {
	if _, ok := tx.state.edges[id]; !ok {
		return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
	}
	delete(tx.state.edges, id)
	return nil
}

func (tx *memTx) LogAction(_ context.Context, action string, edgeID int64, details map[string]any) error {
	tx.state.audit = append(tx.state.audit, entities.AuditEntry{
		ID:        tx.state.nextID("audit"),
		Action:    action,
		EdgeID:    edgeID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

func (tx *memTx) FindAuditLog(_ context.Context, edgeID int64) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	for _, e := range tx.state.audit {
		if e.EdgeID == edgeID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
