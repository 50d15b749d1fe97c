package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/services"
)

// TypeHandler handles relationship type operations.
type TypeHandler struct {
	service *services.RelationshipTypeService
	logger  *zap.Logger
}

// NewTypeHandler creates a new TypeHandler.
func NewTypeHandler(service *services.RelationshipTypeService, opts ...Option) *TypeHandler {
	o := buildOptions(opts)
	return &TypeHandler{
		service: service,
		logger:  o.logger,
	}
}

// HandleList returns the relationship type catalog.
func (h *TypeHandler) HandleList(ctx context.Context) ([]entities.RelationshipType, error) {
	return h.service.List(ctx)
}

// HandleSeed inserts any missing default types and returns how many were added.
func (h *TypeHandler) HandleSeed(ctx context.Context) (int, error) {
	added, err := h.service.LoadDefaults(ctx)
	if err != nil {
		return added, err
	}
	h.logger.Info("relationship types seeded", zap.Int("added", added))
	return added, nil
}
