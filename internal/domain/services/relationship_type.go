package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
)

// RelationshipTypeService serves the closed relationship type catalog.
type RelationshipTypeService struct {
	relationalDB ports.RelationalDB
	cache        map[int64]*entities.RelationshipType
	byKey        map[typeKey]*entities.RelationshipType
	cacheMu      sync.RWMutex
}

type typeKey struct {
	kind   entities.Kind
	locale string
}

// NewRelationshipTypeService creates a new RelationshipTypeService.
func NewRelationshipTypeService(relationalDB ports.RelationalDB) *RelationshipTypeService {
	return &RelationshipTypeService{
		relationalDB: relationalDB,
		cache:        make(map[int64]*entities.RelationshipType),
		byKey:        make(map[typeKey]*entities.RelationshipType),
	}
}

// LoadDefaults seeds every kind under the default locale. Existing rows are
// left alone. Returns the number of types inserted.
func (s *RelationshipTypeService) LoadDefaults(ctx context.Context) (int, error) {
	existing, err := s.relationalDB.ListRelationshipTypes(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing relationship types: %w", err)
	}

	existingSet := make(map[typeKey]bool, len(existing))
	for _, rt := range existing {
		existingSet[typeKey{rt.Kind, rt.Locale}] = true
	}

	added := 0
	for _, rt := range entities.DefaultRelationshipTypes() {
		if existingSet[typeKey{rt.Kind, rt.Locale}] {
			continue
		}
		rtCopy := rt
		if err := s.relationalDB.SaveRelationshipType(ctx, &rtCopy); err != nil {
			return added, fmt.Errorf("seeding relationship type %s: %w", rt.Kind, err)
		}
		added++
	}
	s.invalidateCache()
	return added, nil
}

// List returns the whole catalog ordered by ID.
func (s *RelationshipTypeService) List(ctx context.Context) ([]entities.RelationshipType, error) {
	types, err := s.relationalDB.ListRelationshipTypes(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("listing relationship types: %w", err))
	}
	return types, nil
}

// Exists reports whether a type with the given ID exists.
func (s *RelationshipTypeService) Exists(ctx context.Context, id int64) (bool, error) {
	rt, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return rt != nil, nil
}

// Get returns a type by ID, or nil if not found.
func (s *RelationshipTypeService) Get(ctx context.Context, id int64) (*entities.RelationshipType, error) {
	if err := s.ensureCache(ctx); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	rt, ok := s.cache[id]
	s.cacheMu.RUnlock()
	if ok {
		return copyType(rt), nil
	}

	// Seeded by another process since the cache was filled.
	rt, err := s.relationalDB.FindRelationshipType(ctx, id)
	if err != nil {
		return nil, classify(fmt.Errorf("finding relationship type: %w", err))
	}
	if rt != nil {
		s.invalidateCache()
	}
	return rt, nil
}

// Find returns the type for a kind and locale, or nil if not found.
// An empty locale means the default locale.
func (s *RelationshipTypeService) Find(ctx context.Context, kind entities.Kind, locale string) (*entities.RelationshipType, error) {
	if locale == "" {
		locale = entities.DefaultLocale
	}
	if err := s.ensureCache(ctx); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	rt, ok := s.byKey[typeKey{kind, locale}]
	s.cacheMu.RUnlock()
	if ok {
		return copyType(rt), nil
	}

	s.invalidateCache()
	if err := s.ensureCache(ctx); err != nil {
		return nil, err
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return copyType(s.byKey[typeKey{kind, locale}]), nil
}

// copyType keeps callers from writing through to the shared cache.
func copyType(rt *entities.RelationshipType) *entities.RelationshipType {
	if rt == nil {
		return nil
	}
	c := *rt
	return &c
}

func (s *RelationshipTypeService) ensureCache(ctx context.Context) error {
	s.cacheMu.RLock()
	if len(s.cache) > 0 {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	// Double-check: another goroutine may have populated the cache
	if len(s.cache) > 0 {
		return nil
	}

	types, err := s.relationalDB.ListRelationshipTypes(ctx)
	if err != nil {
		return classify(fmt.Errorf("loading relationship types: %w", err))
	}
	for i := range types {
		s.cache[types[i].ID] = &types[i]
		s.byKey[typeKey{types[i].Kind, types[i].Locale}] = &types[i]
	}
	return nil
}

func (s *RelationshipTypeService) invalidateCache() {
	s.cacheMu.Lock()
	s.cache = make(map[int64]*entities.RelationshipType)
	s.byKey = make(map[typeKey]*entities.RelationshipType)
	s.cacheMu.Unlock()
}
