// Package postgres provides a PostgreSQL implementation of the RelationalDB
// interface for deployments with several writers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/infrastructure/config"
)

var _ ports.RelationalDB = (*Repository)(nil)

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Constraint names referenced when mapping violations.
const (
	constraintPeopleEmail  = "uq_people_email"
	constraintEdgeTriple   = "uq_relationship_triple"
	constraintEdgeType     = "fk_relationship_type"
	constraintEdgeUser     = "fk_relationship_user"
	constraintEdgeRelated  = "fk_relationship_related_user"
	constraintEdgeNotSelf  = "chk_relationship_not_self"
	constraintTypeKindLang = "uq_relationship_type_kind_locale"
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type store struct {
	q queryer
}

var _ ports.GraphTx = (*store)(nil)

// Repository implements ports.RelationalDB using a pgx connection pool.
type Repository struct {
	store
	pool *pgxpool.Pool
}

// NewRepository connects to PostgreSQL and verifies the connection.
func NewRepository(ctx context.Context, cfg config.PostgresConfig) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Repository{store: store{q: pool}, pool: pool}, nil
}

// Close closes every pooled connection.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS people (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    full_name  TEXT NOT NULL,
    email      TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_people_email UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS relationship_types (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    kind       TEXT NOT NULL,
    locale     VARCHAR(` + strconv.Itoa(entities.MaxLocaleLength) + `) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_relationship_type_kind_locale UNIQUE (kind, locale),
    CONSTRAINT chk_relationship_type_kind CHECK (kind IN (` + kindList() + `)),
    CONSTRAINT chk_relationship_type_locale CHECK (locale <> '')
);

CREATE TABLE IF NOT EXISTS relationships (
    id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    user_id         BIGINT NOT NULL,
    related_user_id BIGINT NOT NULL,
    relationship_id BIGINT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    CONSTRAINT fk_relationship_user FOREIGN KEY (user_id) REFERENCES people(id) ON DELETE CASCADE,
    CONSTRAINT fk_relationship_related_user FOREIGN KEY (related_user_id) REFERENCES people(id) ON DELETE CASCADE,
    CONSTRAINT fk_relationship_type FOREIGN KEY (relationship_id) REFERENCES relationship_types(id) ON DELETE CASCADE,
    CONSTRAINT uq_relationship_triple UNIQUE (user_id, related_user_id, relationship_id),
    CONSTRAINT chk_relationship_not_self CHECK (user_id <> related_user_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    action     TEXT NOT NULL,
    edge_id    BIGINT,
    details    JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_relationships_user ON relationships (user_id);
CREATE INDEX IF NOT EXISTS idx_relationships_related_user ON relationships (related_user_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships (relationship_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_edge ON audit_log (edge_id);
`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// WithinTx runs fn in a transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx ports.GraphTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(&store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Person directory

// SavePerson inserts a person and sets its ID.
func (r *Repository) SavePerson(ctx context.Context, person *entities.Person) error {
	var email *string
	if person.Email != "" {
		normalized := entities.NormalizeEmail(person.Email)
		email = &normalized
	}
	if person.CreatedAt.IsZero() {
		person.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO people (full_name, email, created_at) VALUES ($1, $2, $3) RETURNING id`,
		person.FullName, email, person.CreatedAt,
	).Scan(&person.ID)
	if err != nil {
		if violated(err) == constraintPeopleEmail {
			return fmt.Errorf("%w: %s", entities.ErrDuplicatePerson, person.Email)
		}
		return fmt.Errorf("saving person: %w", err)
	}
	return nil
}

// FindPerson finds a person by ID.
func (r *Repository) FindPerson(ctx context.Context, id int64) (*entities.Person, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, full_name, email, created_at FROM people WHERE id = $1`, id)
	person, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning person: %w", err)
	}
	return person, nil
}

// ListPeople lists all people ordered by ID.
func (r *Repository) ListPeople(ctx context.Context) ([]entities.Person, error) {
	return r.queryPeople(ctx, `SELECT id, full_name, email, created_at FROM people ORDER BY id`)
}

func (s *store) PersonExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM people WHERE id = $1)`, id)
}

func (s *store) FindPeopleByIDs(ctx context.Context, ids []int64) ([]entities.Person, error) {
	if len(ids) == 0 {
		return []entities.Person{}, nil
	}
	return s.queryPeople(ctx,
		`SELECT id, full_name, email, created_at FROM people WHERE id = ANY($1)`, ids)
}

func (s *store) queryPeople(ctx context.Context, query string, args ...any) ([]entities.Person, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying people: %w", err)
	}
	defer rows.Close()

	people := []entities.Person{}
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		people = append(people, *person)
	}
	return people, rows.Err()
}

func scanPerson(row pgx.Row) (*entities.Person, error) {
	var p entities.Person
	var email *string
	if err := row.Scan(&p.ID, &p.FullName, &email, &p.CreatedAt); err != nil {
		return nil, err
	}
	if email != nil {
		p.Email = *email
	}
	return &p, nil
}

// Relationship type catalog

// SaveRelationshipType inserts a type unless its (kind, locale) pair exists,
// then sets its ID.
func (r *Repository) SaveRelationshipType(ctx context.Context, rt *entities.RelationshipType) error {
	if err := rt.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = now
	}
	if rt.UpdatedAt.IsZero() {
		rt.UpdatedAt = now
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	err := r.pool.QueryRow(ctx, `
INSERT INTO relationship_types (kind, locale, created_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT `+constraintTypeKindLang+` DO UPDATE SET kind = relationship_types.kind
RETURNING id`,
		string(rt.Kind), rt.Locale, rt.CreatedAt, rt.UpdatedAt,
	).Scan(&rt.ID)
	if err != nil {
		return fmt.Errorf("saving relationship type: %w", err)
	}
	return nil
}

// FindRelationshipType finds a type by ID.
func (r *Repository) FindRelationshipType(ctx context.Context, id int64) (*entities.RelationshipType, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, kind, locale, created_at, updated_at FROM relationship_types WHERE id = $1`, id)
	rt, err := scanType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning relationship type: %w", err)
	}
	return rt, nil
}

// ListRelationshipTypes lists the catalog ordered by ID.
func (r *Repository) ListRelationshipTypes(ctx context.Context) ([]entities.RelationshipType, error) {
	return r.queryTypes(ctx,
		`SELECT id, kind, locale, created_at, updated_at FROM relationship_types ORDER BY id`)
}

func (s *store) TypeExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM relationship_types WHERE id = $1)`, id)
}

func (s *store) FindTypesByIDs(ctx context.Context, ids []int64) ([]entities.RelationshipType, error) {
	if len(ids) == 0 {
		return []entities.RelationshipType{}, nil
	}
	return s.queryTypes(ctx,
		`SELECT id, kind, locale, created_at, updated_at FROM relationship_types WHERE id = ANY($1)`, ids)
}

func (s *store) queryTypes(ctx context.Context, query string, args ...any) ([]entities.RelationshipType, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationship types: %w", err)
	}
	defer rows.Close()

	types := []entities.RelationshipType{}
	for rows.Next() {
		rt, err := scanType(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning relationship type: %w", err)
		}
		types = append(types, *rt)
	}
	return types, rows.Err()
}

func scanType(row pgx.Row) (*entities.RelationshipType, error) {
	var rt entities.RelationshipType
	var kind string
	if err := row.Scan(&rt.ID, &kind, &rt.Locale, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return nil, err
	}
	rt.Kind = entities.Kind(kind)
	return &rt, nil
}

// Relationships

const edgeColumns = `id, user_id, related_user_id, relationship_id, created_at, updated_at`

func (s *store) FindEdge(ctx context.Context, id int64) (*entities.Edge, error) {
	row := s.q.QueryRow(ctx, `SELECT `+edgeColumns+` FROM relationships WHERE id = $1`, id)
	return scanOptionalEdge(row)
}

func (s *store) FindEdgeByTriple(ctx context.Context, t entities.Triple, excludeID int64) (*entities.Edge, error) {
	row := s.q.QueryRow(ctx, `
SELECT `+edgeColumns+`
FROM relationships
WHERE user_id = $1 AND related_user_id = $2 AND relationship_id = $3 AND id <> $4
LIMIT 1`,
		t.SubjectID, t.ObjectID, t.TypeID, excludeID)
	return scanOptionalEdge(row)
}

func (s *store) ListEdges(ctx context.Context, filter entities.EdgeFilter) ([]entities.Edge, error) {
	var conds []string
	var args []any
	add := func(column string, v *int64) {
		if v == nil {
			return
		}
		args = append(args, *v)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("user_id", filter.SubjectID)
	add("related_user_id", filter.ObjectID)
	add("relationship_id", filter.TypeID)

	query := `SELECT ` + edgeColumns + ` FROM relationships`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	edges := []entities.Edge{}
	for rows.Next() {
		var e entities.Edge
		if err := scanEdge(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *store) InsertEdge(ctx context.Context, edge *entities.Edge) error {
	err := s.q.QueryRow(ctx, `
INSERT INTO relationships (user_id, related_user_id, relationship_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		edge.SubjectID, edge.ObjectID, edge.TypeID, edge.CreatedAt, edge.UpdatedAt,
	).Scan(&edge.ID)
	if err != nil {
		return fmt.Errorf("inserting relationship: %w", mapViolation(err, edge.Triple()))
	}
	return nil
}

func (s *store) UpdateEdge(ctx context.Context, edge *entities.Edge) error {
	tag, err := s.q.Exec(ctx, `
UPDATE relationships
SET user_id = $1, related_user_id = $2, relationship_id = $3, updated_at = $4
WHERE id = $5`,
		edge.SubjectID, edge.ObjectID, edge.TypeID, edge.UpdatedAt, edge.ID)
	if err != nil {
		return fmt.Errorf("updating relationship: %w", mapViolation(err, edge.Triple()))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, edge.ID)
	}
	return nil
}

func (s *store) DeleteEdge(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
	}
	return nil
}

// CountEdges returns the total number of relationships.
func (r *Repository) CountEdges(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return count, nil
}

func scanEdge(row pgx.Row, e *entities.Edge) error {
	return row.Scan(&e.ID, &e.SubjectID, &e.ObjectID, &e.TypeID, &e.CreatedAt, &e.UpdatedAt)
}

func scanOptionalEdge(row pgx.Row) (*entities.Edge, error) {
	var e entities.Edge
	err := scanEdge(row, &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}
	return &e, nil
}

// Audit log

func (s *store) LogAction(ctx context.Context, action string, edgeID int64, details map[string]any) error {
	var edgeIDArg *int64
	if edgeID != 0 {
		edgeIDArg = &edgeID
	}
	var detailsArg any
	if details != nil {
		detailsArg = details
	}

	_, err := s.q.Exec(ctx,
		`INSERT INTO audit_log (action, edge_id, details, created_at) VALUES ($1, $2, $3, $4)`,
		action, edgeIDArg, detailsArg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

func (s *store) FindAuditLog(ctx context.Context, edgeID int64) ([]entities.AuditEntry, error) {
	rows, err := s.q.Query(ctx, `
SELECT id, action, edge_id, details, created_at
FROM audit_log
WHERE edge_id = $1
ORDER BY id ASC`, edgeID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var id *int64
		if err := rows.Scan(&entry.ID, &entry.Action, &id, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if id != nil {
			entry.EdgeID = *id
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// helpers

func (s *store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.q.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return ok, nil
}

// kindList renders the vocabulary as a quoted SQL list.
func kindList() string {
	kinds := entities.Kinds()
	quoted := make([]string, len(kinds))
	for i, k := range kinds {
		quoted[i] = "'" + string(k) + "'"
	}
	return strings.Join(quoted, ", ")
}

// violated returns the name of the constraint err violated, or "".
func violated(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation:
		return pgErr.ConstraintName
	}
	return ""
}

// mapViolation turns a constraint violation on the relationships table
// into the matching domain error. Concurrent writers that pass validation
// together are stopped here.
func mapViolation(err error, t entities.Triple) error {
	switch violated(err) {
	case constraintEdgeTriple:
		return fmt.Errorf("%w: %d is %d of %d", entities.ErrDuplicateEdge, t.SubjectID, t.TypeID, t.ObjectID)
	case constraintEdgeNotSelf:
		return fmt.Errorf("%w: person %d", entities.ErrSelfRelationship, t.SubjectID)
	case constraintEdgeType:
		return fmt.Errorf("%w: %d", entities.ErrTypeNotFound, t.TypeID)
	case constraintEdgeUser, constraintEdgeRelated:
		return fmt.Errorf("%w: %w", entities.ErrPersonNotFound, err)
	}
	return err
}
