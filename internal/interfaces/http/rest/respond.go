package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/services"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Message string `json:"message"`
}

// messageResponse acknowledges a request that returns no resource.
type messageResponse struct {
	Message string `json:"message"`
}

// badRequest marks malformed input caught before reaching a handler.
type badRequest struct {
	msg string
}

func (e badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return badRequest{msg: msg} }

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br), entities.IsValidation(err):
		return http.StatusBadRequest
	case entities.IsNotFound(err), errors.Is(err, services.ErrIndexDisabled):
		return http.StatusNotFound
	case entities.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError writes err as {"message": ...}. Server errors are logged and
// answered with fallback so storage details stay internal.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
		msg = fallback
	}
	respondJSON(w, status, errorResponse{Message: msg})
}
