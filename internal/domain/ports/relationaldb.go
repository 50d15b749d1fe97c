package ports

import (
	"context"

	"github.com/ersonp/kinship/internal/domain/entities"
)

// PersonDirectory answers identity questions about people.
type PersonDirectory interface {
	// PersonExists reports whether a person with the given ID exists.
	PersonExists(ctx context.Context, id int64) (bool, error)

	// FindPeopleByIDs returns the people that exist among ids, in no particular order.
	FindPeopleByIDs(ctx context.Context, ids []int64) ([]entities.Person, error)
}

// TypeCatalog answers questions about the relationship type catalog.
type TypeCatalog interface {
	// TypeExists reports whether a relationship type with the given ID exists.
	TypeExists(ctx context.Context, id int64) (bool, error)

	// FindTypesByIDs returns the types that exist among ids, in no particular order.
	FindTypesByIDs(ctx context.Context, ids []int64) ([]entities.RelationshipType, error)
}

// EdgeReader reads relationship edges.
type EdgeReader interface {
	// FindEdge returns the edge with the given ID, or nil if absent.
	FindEdge(ctx context.Context, id int64) (*entities.Edge, error)

	// FindEdgeByTriple returns an edge with exactly this triple, ignoring the
	// edge with ID excludeID (0 excludes nothing). Returns nil if none.
	FindEdgeByTriple(ctx context.Context, t entities.Triple, excludeID int64) (*entities.Edge, error)

	// ListEdges returns edges matching every supplied filter field, ordered by ID.
	ListEdges(ctx context.Context, filter entities.EdgeFilter) ([]entities.Edge, error)
}

// EdgeWriter mutates relationship edges.
// Implementations map a triple uniqueness violation to entities.ErrDuplicateEdge.
type EdgeWriter interface {
	// InsertEdge stores a new edge and sets its ID.
	InsertEdge(ctx context.Context, edge *entities.Edge) error

	// UpdateEdge overwrites the triple and UpdatedAt of an existing edge.
	UpdateEdge(ctx context.Context, edge *entities.Edge) error

	// DeleteEdge removes an edge. Returns entities.ErrEdgeNotFound if absent.
	DeleteEdge(ctx context.Context, id int64) error
}

// AuditLog records and reads actions.
type AuditLog interface {
	// LogAction appends an entry to the audit log.
	LogAction(ctx context.Context, action string, edgeID int64, details map[string]any) error

	// FindAuditLog finds audit log entries for an edge, oldest first.
	FindAuditLog(ctx context.Context, edgeID int64) ([]entities.AuditEntry, error)
}

// GraphTx is the view of storage available inside a transaction. Every read
// observes the same snapshot as the writes that follow it.
type GraphTx interface {
	PersonDirectory
	TypeCatalog
	EdgeReader
	EdgeWriter
	AuditLog
}

// RelationalDB defines the interface for relational database operations.
// Outside a transaction it exposes the same reads and writes as GraphTx,
// each running on its own.
type RelationalDB interface {
	GraphTx

	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// WithinTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise, including on panic or when ctx
	// is cancelled.
	WithinTx(ctx context.Context, fn func(tx GraphTx) error) error

	// Person directory operations

	// SavePerson inserts a person and sets its ID. Returns
	// entities.ErrDuplicatePerson when the email is already taken.
	SavePerson(ctx context.Context, person *entities.Person) error

	// FindPerson finds a person by ID. Returns nil if not found.
	FindPerson(ctx context.Context, id int64) (*entities.Person, error)

	// ListPeople lists all people ordered by ID.
	ListPeople(ctx context.Context) ([]entities.Person, error)

	// Relationship type catalog operations

	// SaveRelationshipType inserts a type if its (kind, locale) pair is new
	// and sets its ID either way.
	SaveRelationshipType(ctx context.Context, rt *entities.RelationshipType) error

	// FindRelationshipType finds a type by ID. Returns nil if not found.
	FindRelationshipType(ctx context.Context, id int64) (*entities.RelationshipType, error)

	// ListRelationshipTypes lists the catalog ordered by ID.
	ListRelationshipTypes(ctx context.Context) ([]entities.RelationshipType, error)

	// CountEdges returns the total number of edges.
	CountEdges(ctx context.Context) (int, error)
}
