package entities

import "errors"

// Errors returned by the relationship graph. Callers classify with errors.Is;
// services wrap them with the offending ids.
var (
	ErrMissingField     = errors.New("missing required field")
	ErrSelfRelationship = errors.New("a person cannot have a relationship with themselves")
	ErrPersonNotFound   = errors.New("person not found")
	ErrTypeNotFound     = errors.New("relationship type not found")
	ErrDuplicateEdge    = errors.New("relationship already exists")
	ErrEdgeNotFound     = errors.New("relationship not found")
	ErrStorage          = errors.New("storage failure")

	ErrInvalidKind     = errors.New("invalid relationship kind")
	ErrInvalidLocale   = errors.New("invalid locale")
	ErrDuplicatePerson = errors.New("person already exists")
)

// IsRetryable reports whether err may be transient. Only storage failures
// qualify; validation errors fail identically on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsValidation reports whether err was caused by caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrSelfRelationship) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidLocale)
}

// IsNotFound reports whether err refers to a missing person, type or edge.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonNotFound) ||
		errors.Is(err, ErrTypeNotFound) ||
		errors.Is(err, ErrEdgeNotFound)
}

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateEdge) || errors.Is(err, ErrDuplicatePerson)
}
