package entities

import (
	"strings"
	"time"
)

// Person is an identity in the directory. The graph only needs the ID;
// name and email are kept for presentation.
type Person struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PersonView is a person with the edges it takes part in: Relationships
// where it is the subject, InverseRelationships where it is the object.
type PersonView struct {
	Person
	Relationships        []ResolvedEdge `json:"relationships"`
	InverseRelationships []ResolvedEdge `json:"inverseRelationships"`
}

// NormalizeEmail lowercases and trims an email address for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName returns the name shown for p, falling back to its email.
func (p *Person) DisplayName() string {
	if p == nil {
		return "unknown"
	}
	if p.FullName != "" {
		return p.FullName
	}
	if p.Email != "" {
		return p.Email
	}
	return "unknown"
}
