// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/infrastructure/config"
)

var _ ports.RelationalDB = (*Repository)(nil)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store runs the graph reads and writes against a queryer.
type store struct {
	q queryer
}

var _ ports.GraphTx = (*store)(nil)

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	store
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection serializes writers, and keeps ":memory:" pointing
	// at one database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return &Repository{
		store: store{q: db},
		db:    db,
		path:  cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- People (the identity directory)
	CREATE TABLE IF NOT EXISTS people (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		email TEXT UNIQUE,
		created_at TIMESTAMP NOT NULL
	);

	-- Relationship type catalog, one row per kind and locale
	CREATE TABLE IF NOT EXISTS relationship_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL CHECK(kind IN (` + kindList() + `)),
		locale TEXT NOT NULL CHECK(length(locale) BETWEEN 1 AND ` + strconv.Itoa(entities.MaxLocaleLength) + `),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(kind, locale)
	);

	-- Directed relationships: user_id is <relationship> of related_user_id
	CREATE TABLE IF NOT EXISTS relationships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		related_user_id INTEGER NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		relationship_id INTEGER NOT NULL REFERENCES relationship_types(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, related_user_id, relationship_id),
		CHECK(user_id <> related_user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_user ON relationships(user_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_related_user ON relationships(related_user_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(relationship_id);

	-- Audit log (outlives the edges it describes)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		edge_id INTEGER,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_edge ON audit_log(edge_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// WithinTx runs fn in a transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx ports.GraphTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&store{q: tx}); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Person directory

// SavePerson inserts a person and sets its ID.
func (r *Repository) SavePerson(ctx context.Context, person *entities.Person) error {
	var email sql.NullString
	if person.Email != "" {
		email = sql.NullString{String: entities.NormalizeEmail(person.Email), Valid: true}
	}
	if person.CreatedAt.IsZero() {
		person.CreatedAt = timeNow().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO people (full_name, email, created_at) VALUES (?, ?, ?)`,
		person.FullName, email, person.CreatedAt,
	)
	if err != nil {
		if violation(err) == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("%w: %s", entities.ErrDuplicatePerson, person.Email)
		}
		return fmt.Errorf("saving person: %w", err)
	}
	person.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading person id: %w", err)
	}
	return nil
}

// FindPerson finds a person by ID.
func (r *Repository) FindPerson(ctx context.Context, id int64) (*entities.Person, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, created_at FROM people WHERE id = ?`, id)

	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM people WHERE id = ?)`, id)
}

func (s *store) FindPeopleByIDs(ctx context.Context, ids []int64) ([]entities.Person, error) {
	if len(ids) == 0 {
		return []entities.Person{}, nil
	}
	placeholders, args := inClause(ids)
	query := fmt.Sprintf(`
		SELECT id, full_name, email, created_at
		FROM people
		WHERE id IN (%s)
	`, placeholders)
	return s.queryPeople(ctx, query, args...)
}

func (s *store) queryPeople(ctx context.Context, query string, args ...any) ([]entities.Person, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*entities.Person, error) {
	var p entities.Person
	var email sql.NullString
	if err := row.Scan(&p.ID, &p.FullName, &email, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Email = email.String
	return &p, nil
}

// Relationship type catalog

// SaveRelationshipType inserts a type unless its (kind, locale) pair exists,
// then sets its ID.
func (r *Repository) SaveRelationshipType(ctx context.Context, rt *entities.RelationshipType) error {
	if err := rt.Validate(); err != nil {
		return err
	}

	now := timeNow().UTC()
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = now
	}
	if rt.UpdatedAt.IsZero() {
		rt.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO relationship_types (kind, locale, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, string(rt.Kind), rt.Locale, rt.CreatedAt, rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving relationship type: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM relationship_types WHERE kind = ? AND locale = ?`,
		string(rt.Kind), rt.Locale,
	).Scan(&rt.ID)
	if err != nil {
		return fmt.Errorf("reading relationship type id: %w", err)
	}
	return nil
}

// FindRelationshipType finds a type by ID.
func (r *Repository) FindRelationshipType(ctx context.Context, id int64) (*entities.RelationshipType, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, locale, created_at, updated_at FROM relationship_types WHERE id = ?`, id)

	rt, err := scanType(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM relationship_types WHERE id = ?)`, id)
}

func (s *store) FindTypesByIDs(ctx context.Context, ids []int64) ([]entities.RelationshipType, error) {
	if len(ids) == 0 {
		return []entities.RelationshipType{}, nil
	}
	placeholders, args := inClause(ids)
	query := fmt.Sprintf(`
		SELECT id, kind, locale, created_at, updated_at
		FROM relationship_types
		WHERE id IN (%s)
	`, placeholders)
	return s.queryTypes(ctx, query, args...)
}

func (s *store) queryTypes(ctx context.Context, query string, args ...any) ([]entities.RelationshipType, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
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

func scanType(row scanner) (*entities.RelationshipType, error) {
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
	row := s.q.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM relationships WHERE id = ?`, id)
	return scanOptionalEdge(row)
}

func (s *store) FindEdgeByTriple(ctx context.Context, t entities.Triple, excludeID int64) (*entities.Edge, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+edgeColumns+`
		FROM relationships
		WHERE user_id = ? AND related_user_id = ? AND relationship_id = ? AND id <> ?
		LIMIT 1
	`, t.SubjectID, t.ObjectID, t.TypeID, excludeID)
	return scanOptionalEdge(row)
}

func (s *store) ListEdges(ctx context.Context, filter entities.EdgeFilter) ([]entities.Edge, error) {
	var conds []string
	var args []any
	if filter.SubjectID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *filter.SubjectID)
	}
	if filter.ObjectID != nil {
		conds = append(conds, "related_user_id = ?")
		args = append(args, *filter.ObjectID)
	}
	if filter.TypeID != nil {
		conds = append(conds, "relationship_id = ?")
		args = append(args, *filter.TypeID)
	}

	query := `SELECT ` + edgeColumns + ` FROM relationships`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
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
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO relationships (user_id, related_user_id, relationship_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, edge.SubjectID, edge.ObjectID, edge.TypeID, edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		return edgeWriteError("inserting relationship", edge, err)
	}
	edge.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading relationship id: %w", err)
	}
	return nil
}

func (s *store) UpdateEdge(ctx context.Context, edge *entities.Edge) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE relationships
		SET user_id = ?, related_user_id = ?, relationship_id = ?, updated_at = ?
		WHERE id = ?
	`, edge.SubjectID, edge.ObjectID, edge.TypeID, edge.UpdatedAt, edge.ID)
	if err != nil {
		return edgeWriteError("updating relationship", edge, err)
	}
	return requireAffected(res, edge.ID)
}

func (s *store) DeleteEdge(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	return requireAffected(res, id)
}

// CountEdges returns the total number of relationships.
func (r *Repository) CountEdges(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return count, nil
}

func scanEdge(row scanner, e *entities.Edge) error {
	return row.Scan(&e.ID, &e.SubjectID, &e.ObjectID, &e.TypeID, &e.CreatedAt, &e.UpdatedAt)
}

func scanOptionalEdge(row *sql.Row) (*entities.Edge, error) {
	var e entities.Edge
	err := scanEdge(row, &e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}
	return &e, nil
}

// edgeWriteError maps constraint violations raised by the schema onto
// domain errors.
func edgeWriteError(op string, edge *entities.Edge, err error) error {
	switch violation(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %d is %d of %d", entities.ErrDuplicateEdge, edge.SubjectID, edge.TypeID, edge.ObjectID)
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return fmt.Errorf("%w: %d", entities.ErrSelfRelationship, edge.SubjectID)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", entities.ErrEdgeNotFound, id)
	}
	return nil
}

// Audit log

func (s *store) LogAction(ctx context.Context, action string, edgeID int64, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var edgeIDPtr sql.NullInt64
	if edgeID != 0 {
		edgeIDPtr = sql.NullInt64{Int64: edgeID, Valid: true}
	}

	query := `INSERT INTO audit_log (action, edge_id, details, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query, action, edgeIDPtr, detailsJSON, timeNow().UTC())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

func (s *store) FindAuditLog(ctx context.Context, edgeID int64) ([]entities.AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, action, edge_id, details, created_at
		FROM audit_log
		WHERE edge_id = ?
		ORDER BY id ASC
	`, edgeID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var id sql.NullInt64
		var details sql.NullString

		if err := rows.Scan(&entry.ID, &entry.Action, &id, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entry.EdgeID = id.Int64

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// helpers

func (s *store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return ok, nil
}

// inClause builds the placeholders and arguments for an IN clause.
func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
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

// violation returns the extended constraint code of a SQLite error, or 0.
// Errors carrying only the primary code are classified by message.
func violation(err error) int {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0
	}
	code := sqliteErr.Code()
	if code != sqlite3.SQLITE_CONSTRAINT {
		return code
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "UNIQUE"):
		return sqlite3.SQLITE_CONSTRAINT_UNIQUE
	case strings.Contains(msg, "CHECK"):
		return sqlite3.SQLITE_CONSTRAINT_CHECK
	case strings.Contains(msg, "FOREIGN KEY"):
		return sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return code
}
