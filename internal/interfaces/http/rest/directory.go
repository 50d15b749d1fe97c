package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/application/handlers"
)

type personRoutes struct {
	handler *handlers.PersonHandler
	logger  *zap.Logger
}

type addPersonRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (h *personRoutes) list(w http.ResponseWriter, r *http.Request) {
	people, err := h.handler.HandleList(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch people")
		return
	}
	respondJSON(w, http.StatusOK, people)
}

func (h *personRoutes) add(w http.ResponseWriter, r *http.Request) {
	var req addPersonRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	person, err := h.handler.HandleAdd(r.Context(), req.FullName, req.Email)
	if err != nil {
		respondError(w, h.logger, err, "Failed to add person")
		return
	}
	respondJSON(w, http.StatusCreated, person)
}

func (h *personRoutes) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "Invalid person ID")
	if err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	person, err := h.handler.HandleGet(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch person")
		return
	}
	respondJSON(w, http.StatusOK, person)
}

type typeRoutes struct {
	handler *handlers.TypeHandler
	logger  *zap.Logger
}

func (h *typeRoutes) list(w http.ResponseWriter, r *http.Request) {
	types, err := h.handler.HandleList(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch relationship types")
		return
	}
	respondJSON(w, http.StatusOK, types)
}
