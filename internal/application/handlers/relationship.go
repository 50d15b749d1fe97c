package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/domain/services"
)

// RelationshipHandler handles relationship operations.
type RelationshipHandler struct {
	graph   *services.GraphService
	query   *services.QueryService
	types   *services.RelationshipTypeService
	people  *services.PersonService
	search  *services.SearchService
	logger  *zap.Logger
	metrics ports.Metrics
}

// Option configures a handler.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics ports.Metrics
	search  *services.SearchService
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics ports.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithSearch enables the semantic index. Without it mutations are not
// indexed and searches fail with services.ErrIndexDisabled.
func WithSearch(search *services.SearchService) Option {
	return func(o *options) { o.search = search }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(
	graph *services.GraphService,
	query *services.QueryService,
	types *services.RelationshipTypeService,
	people *services.PersonService,
	opts ...Option,
) *RelationshipHandler {
	o := buildOptions(opts)
	return &RelationshipHandler{
		graph:   graph,
		query:   query,
		types:   types,
		people:  people,
		search:  o.search,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// FormOptions lists the choices offered when creating or editing a relationship.
type FormOptions struct {
	People []entities.Person           `json:"users"`
	Types  []entities.RelationshipType `json:"relationshipTypes"`
}

// EditForm is an existing relationship together with its form options.
type EditForm struct {
	Relationship *entities.ResolvedEdge `json:"relationship"`
	Options      *FormOptions           `json:"options"`
}

// SearchResult is a relationship found by semantic search.
type SearchResult struct {
	entities.ResolvedEdge
	Score float32 `json:"score"`
}

// HandleCreate creates a new relationship.
func (h *RelationshipHandler) HandleCreate(ctx context.Context, in entities.EdgeInput) (*entities.ResolvedEdge, error) {
	edge, err := h.graph.Create(ctx, in)
	h.record("create", err)
	if err != nil {
		h.logFailure("create", err, zap.Int64("user_id", in.SubjectID),
			zap.Int64("related_user_id", in.ObjectID), zap.Int64("relationship_id", in.TypeID))
		return nil, err
	}

	resolved, err := h.query.ResolveOne(ctx, edge)
	if err != nil {
		return nil, fmt.Errorf("resolving relationship %d: %w", edge.ID, err)
	}
	h.logger.Info("relationship created",
		zap.Int64("id", edge.ID),
		zap.Int64("user_id", edge.SubjectID),
		zap.Int64("related_user_id", edge.ObjectID),
		zap.Int64("relationship_id", edge.TypeID),
	)
	h.index(ctx, "create", resolved)
	return resolved, nil
}

// HandleUpdate applies a partial update to a relationship.
func (h *RelationshipHandler) HandleUpdate(ctx context.Context, id int64, patch entities.EdgePatch) (*entities.ResolvedEdge, error) {
	edge, err := h.graph.Update(ctx, id, patch)
	h.record("update", err)
	if err != nil {
		h.logFailure("update", err, zap.Int64("id", id))
		return nil, err
	}

	resolved, err := h.query.ResolveOne(ctx, edge)
	if err != nil {
		return nil, fmt.Errorf("resolving relationship %d: %w", edge.ID, err)
	}
	h.logger.Info("relationship updated",
		zap.Int64("id", edge.ID),
		zap.Int64("user_id", edge.SubjectID),
		zap.Int64("related_user_id", edge.ObjectID),
		zap.Int64("relationship_id", edge.TypeID),
	)
	h.index(ctx, "update", resolved)
	return resolved, nil
}

// HandleDelete removes a relationship by ID.
func (h *RelationshipHandler) HandleDelete(ctx context.Context, id int64) error {
	err := h.graph.Delete(ctx, id)
	h.record("delete", err)
	if err != nil {
		h.logFailure("delete", err, zap.Int64("id", id))
		return err
	}
	h.logger.Info("relationship deleted", zap.Int64("id", id))

	if h.search != nil {
		if err := h.search.Remove(ctx, id); err != nil {
			h.metrics.RecordIndexFailure("delete")
			h.logger.Warn("removing relationship from index", zap.Int64("id", id), zap.Error(err))
		}
	}
	return nil
}

// HandleGet returns a single resolved relationship.
func (h *RelationshipHandler) HandleGet(ctx context.Context, id int64) (*entities.ResolvedEdge, error) {
	resolved, err := h.query.Get(ctx, id)
	h.record("get", err)
	return resolved, err
}

// HandleList returns resolved relationships matching the filter.
func (h *RelationshipHandler) HandleList(ctx context.Context, filter entities.EdgeFilter) ([]entities.ResolvedEdge, error) {
	resolved, err := h.query.List(ctx, filter)
	h.record("list", err)
	return resolved, err
}

// HandleHistory returns the audit trail of a relationship.
func (h *RelationshipHandler) HandleHistory(ctx context.Context, id int64) ([]entities.AuditEntry, error) {
	return h.graph.History(ctx, id)
}

// HandleCount returns the total number of relationships.
func (h *RelationshipHandler) HandleCount(ctx context.Context) (int, error) {
	return h.graph.Count(ctx)
}

// HandleFormOptions returns the people and types to choose from.
func (h *RelationshipHandler) HandleFormOptions(ctx context.Context) (*FormOptions, error) {
	people, err := h.people.List(ctx)
	if err != nil {
		return nil, err
	}
	types, err := h.types.List(ctx)
	if err != nil {
		return nil, err
	}
	return &FormOptions{People: people, Types: types}, nil
}

// HandleEditForm returns a relationship with the form options for editing it.
func (h *RelationshipHandler) HandleEditForm(ctx context.Context, id int64) (*EditForm, error) {
	resolved, err := h.HandleGet(ctx, id)
	if err != nil {
		return nil, err
	}
	opts, err := h.HandleFormOptions(ctx)
	if err != nil {
		return nil, err
	}
	return &EditForm{Relationship: resolved, Options: opts}, nil
}

// HandleSearch finds relationships semantically close to query. Matches
// whose relationship no longer exists are dropped.
func (h *RelationshipHandler) HandleSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if h.search == nil {
		return nil, services.ErrIndexDisabled
	}
	matches, err := h.search.Search(ctx, query, limit)
	h.record("search", err)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		resolved, err := h.query.Get(ctx, m.EdgeID)
		if errors.Is(err, entities.ErrEdgeNotFound) {
			h.logger.Debug("dropping stale index entry", zap.Int64("id", m.EdgeID))
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{ResolvedEdge: *resolved, Score: m.Score})
	}
	return results, nil
}

// HandleReindex rebuilds the semantic index from every stored relationship.
func (h *RelationshipHandler) HandleReindex(ctx context.Context) (int, error) {
	if h.search == nil {
		return 0, services.ErrIndexDisabled
	}
	resolved, err := h.query.List(ctx, entities.EdgeFilter{})
	if err != nil {
		return 0, err
	}
	n, err := h.search.Rebuild(ctx, resolved)
	if err != nil {
		return n, fmt.Errorf("rebuilding index: %w", err)
	}
	h.logger.Info("index rebuilt", zap.Int("relationships", n))
	return n, nil
}

// ResolveTypeRef turns a type reference into a type ID. The reference is
// either a numeric ID or a kind name looked up under locale.
func (h *RelationshipHandler) ResolveTypeRef(ctx context.Context, ref, locale string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}

	kind, err := entities.ParseKind(ref)
	if err != nil {
		return 0, err
	}
	rt, err := h.types.Find(ctx, kind, locale)
	if err != nil {
		return 0, err
	}
	if rt == nil {
		if locale == "" {
			locale = entities.DefaultLocale
		}
		return 0, fmt.Errorf("%w: %s (%s)", entities.ErrTypeNotFound, kind, locale)
	}
	return rt.ID, nil
}

// index writes a committed relationship to the semantic index. Failures are
// logged and counted, never returned.
func (h *RelationshipHandler) index(ctx context.Context, operation string, resolved *entities.ResolvedEdge) {
	if h.search == nil {
		return
	}
	if err := h.search.Index(ctx, resolved); err != nil {
		h.metrics.RecordIndexFailure(operation)
		h.logger.Warn("indexing relationship", zap.Int64("id", resolved.ID), zap.Error(err))
	}
}

func (h *RelationshipHandler) record(operation string, err error) {
	h.metrics.RecordOperation(operation, Outcome(err))
}

func (h *RelationshipHandler) logFailure(operation string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", operation), zap.Error(err))
	if Outcome(err) == OutcomeError {
		h.logger.Error("relationship operation failed", fields...)
		return
	}
	h.logger.Warn("relationship operation rejected", fields...)
}
