package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/ports"
)

// PersonService is the minimal person directory.
type PersonService struct {
	relationalDB ports.RelationalDB
}

// NewPersonService creates a new PersonService.
func NewPersonService(relationalDB ports.RelationalDB) *PersonService {
	return &PersonService{relationalDB: relationalDB}
}

// Exists reports whether a person with the given ID exists.
func (s *PersonService) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.relationalDB.PersonExists(ctx, id)
	if err != nil {
		return false, classify(fmt.Errorf("checking person: %w", err))
	}
	return ok, nil
}

// Add stores a new person. Email is optional but unique when given.
func (s *PersonService) Add(ctx context.Context, fullName, email string) (*entities.Person, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name", entities.ErrMissingField)
	}

	person := &entities.Person{
		FullName:  fullName,
		Email:     entities.NormalizeEmail(email),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.relationalDB.SavePerson(ctx, person); err != nil {
		return nil, classify(fmt.Errorf("saving person: %w", err))
	}
	return person, nil
}

// Get returns a person by ID.
func (s *PersonService) Get(ctx context.Context, id int64) (*entities.Person, error) {
	person, err := s.relationalDB.FindPerson(ctx, id)
	if err != nil {
		return nil, classify(fmt.Errorf("finding person: %w", err))
	}
	if person == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrPersonNotFound, id)
	}
	return person, nil
}

// List returns every person ordered by ID.
func (s *PersonService) List(ctx context.Context) ([]entities.Person, error) {
	people, err := s.relationalDB.ListPeople(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("listing people: %w", err))
	}
	return people, nil
}
