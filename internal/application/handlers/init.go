// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/domain/services"
)

// InitHandler prepares storage for a new installation.
type InitHandler struct {
	relationalDB      ports.RelationalDB
	types             *services.RelationshipTypeService
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewInitHandler creates a new init handler. collectionManager may be nil
// when the semantic index is disabled.
func NewInitHandler(
	relationalDB ports.RelationalDB,
	types *services.RelationshipTypeService,
	collectionManager ports.CollectionManager,
	vectorSize uint64,
) *InitHandler {
	return &InitHandler{
		relationalDB:      relationalDB,
		types:             types,
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	TypesSeeded       int
	CollectionCreated bool
}

// Handle creates the schema, seeds the default relationship types and, when
// the index is enabled, the vector collection. Running it again is harmless.
func (h *InitHandler) Handle(ctx context.Context) (*InitResult, error) {
	if err := h.relationalDB.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	seeded, err := h.types.LoadDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding relationship types: %w", err)
	}

	result := &InitResult{TypesSeeded: seeded}
	if h.collectionManager != nil {
		if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
		result.CollectionCreated = true
	}

	return result, nil
}
