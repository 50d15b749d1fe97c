package handlers

import "github.com/ersonp/kinship/internal/domain/entities"

// Operation outcomes reported to metrics.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Outcome classifies an operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case entities.IsValidation(err):
		return OutcomeInvalid
	case entities.IsNotFound(err):
		return OutcomeNotFound
	case entities.IsConflict(err):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, string) {}
func (nopMetrics) RecordIndexFailure(string)      {}
