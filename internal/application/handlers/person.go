package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/domain/services"
)

// PersonHandler handles person directory operations.
type PersonHandler struct {
	service *services.PersonService
	query   *services.QueryService
	logger  *zap.Logger
	metrics ports.Metrics
}

// NewPersonHandler creates a new PersonHandler.
func NewPersonHandler(service *services.PersonService, query *services.QueryService, opts ...Option) *PersonHandler {
	o := buildOptions(opts)
	return &PersonHandler{
		service: service,
		query:   query,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// HandleAdd adds a person to the directory.
func (h *PersonHandler) HandleAdd(ctx context.Context, fullName, email string) (*entities.Person, error) {
	person, err := h.service.Add(ctx, fullName, email)
	h.metrics.RecordOperation("person_add", Outcome(err))
	if err != nil {
		return nil, err
	}
	h.logger.Info("person added", zap.Int64("id", person.ID))
	return person, nil
}

// HandleGet returns a person by ID with its relationships in both directions.
func (h *PersonHandler) HandleGet(ctx context.Context, id int64) (*entities.PersonView, error) {
	person, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	outgoing, incoming, err := h.query.ForPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	return &entities.PersonView{
		Person:               *person,
		Relationships:        outgoing,
		InverseRelationships: incoming,
	}, nil
}

// HandleList returns every person.
func (h *PersonHandler) HandleList(ctx context.Context) ([]entities.Person, error) {
	return h.service.List(ctx)
}
