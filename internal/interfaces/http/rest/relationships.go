package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/application/handlers"
	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/domain/services"
)

const invalidRelationshipID = "Invalid relationship ID"

type relationshipRoutes struct {
	handler *handlers.RelationshipHandler
	logger  *zap.Logger
}

// createRelationshipRequest is the body of POST /relationships.
type createRelationshipRequest struct {
	UserID         *int64 `json:"userId" validate:"required"`
	RelatedUserID  *int64 `json:"relatedUserId" validate:"required"`
	RelationshipID *int64 `json:"relationshipId" validate:"required"`
}

func (req createRelationshipRequest) input() entities.EdgeInput {
	return entities.EdgeInput{
		SubjectID: *req.UserID,
		ObjectID:  *req.RelatedUserID,
		TypeID:    *req.RelationshipID,
	}
}

// searchRequest holds the query string of GET /relationships/search.
type searchRequest struct {
	Query string `query:"q" validate:"required"`
	Limit int    `query:"limit" validate:"gte=1,lte=100"`
}

// formField describes one input of the relationship form.
type formField struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Current  *int64 `json:"current,omitempty"`
}

type formResponse struct {
	Relationship *entities.ResolvedEdge `json:"relationship,omitempty"`
	Fields       map[string]formField   `json:"fields"`
	Options      *handlers.FormOptions  `json:"options"`
}

type reindexResponse struct {
	Indexed int `json:"indexed"`
}

func formFields(current *entities.Edge) map[string]formField {
	field := func(v int64) formField {
		f := formField{Type: "number", Required: true}
		if current != nil {
			f.Current = entities.Int64(v)
		}
		return f
	}
	var e entities.Edge
	if current != nil {
		e = *current
	}
	return map[string]formField{
		"userId":         field(e.SubjectID),
		"relatedUserId":  field(e.ObjectID),
		"relationshipId": field(e.TypeID),
	}
}

func relationshipID(r *http.Request) (int64, error) {
	return parseID(chi.URLParam(r, "id"), invalidRelationshipID)
}

func (h *relationshipRoutes) list(w http.ResponseWriter, r *http.Request) {
	var filter entities.EdgeFilter
	var err error
	if filter.SubjectID, err = optionalID(r, "userId"); err != nil {
		respondError(w, h.logger, err, "")
		return
	}
	if filter.ObjectID, err = optionalID(r, "relatedUserId"); err != nil {
		respondError(w, h.logger, err, "")
		return
	}
	if filter.TypeID, err = optionalID(r, "relationshipId"); err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	relationships, err := h.handler.HandleList(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch relationships")
		return
	}
	respondJSON(w, http.StatusOK, relationships)
}

func (h *relationshipRoutes) createForm(w http.ResponseWriter, r *http.Request) {
	opts, err := h.handler.HandleFormOptions(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch form data")
		return
	}
	respondJSON(w, http.StatusOK, formResponse{Fields: formFields(nil), Options: opts})
}

func (h *relationshipRoutes) create(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	created, err := h.handler.HandleCreate(r.Context(), req.input())
	if err != nil {
		respondError(w, h.logger, err, "Failed to create relationship")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *relationshipRoutes) get(w http.ResponseWriter, r *http.Request) {
	id, err := relationshipID(r)
	if err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	resolved, err := h.handler.HandleGet(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch relationship")
		return
	}
	respondJSON(w, http.StatusOK, resolved)
}

func (h *relationshipRoutes) editForm(w http.ResponseWriter, r *http.Request) {
	id, err := relationshipID(r)
	if err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	form, err := h.handler.HandleEditForm(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch relationship for editing")
		return
	}
	respondJSON(w, http.StatusOK, formResponse{
		Relationship: form.Relationship,
		Fields:       formFields(&form.Relationship.Edge),
		Options:      form.Options,
	})
}

// update applies a partial update. Keys absent from the body keep their
// current values.
func (h *relationshipRoutes) update(w http.ResponseWriter, r *http.Request) {
	id, err := relationshipID(r)
	if err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	var patch entities.EdgePatch
	if err := decodeAndValidate(r, &patch); err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	updated, err := h.handler.HandleUpdate(r.Context(), id, patch)
	if err != nil {
		respondError(w, h.logger, err, "Failed to update relationship")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *relationshipRoutes) delete(w http.ResponseWriter, r *http.Request) {
	id, err := relationshipID(r)
	if err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	if err := h.handler.HandleDelete(r.Context(), id); err != nil {
		respondError(w, h.logger, err, "Failed to delete relationship")
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Relationship deleted successfully"})
}

func (h *relationshipRoutes) history(w http.ResponseWriter, r *http.Request) {
	id, err := relationshipID(r)
	if err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	entries, err := h.handler.HandleHistory(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to fetch relationship history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *relationshipRoutes) search(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Query: r.URL.Query().Get("q"), Limit: services.DefaultSearchLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, h.logger, errBadRequest("invalid limit"), "")
			return
		}
		req.Limit = limit
	}
	if err := validateStruct(req); err != nil {
		respondError(w, h.logger, err, "")
		return
	}

	results, err := h.handler.HandleSearch(r.Context(), req.Query, req.Limit)
	if err != nil {
		respondError(w, h.logger, err, "Failed to search relationships")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *relationshipRoutes) reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.handler.HandleReindex(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to rebuild search index")
		return
	}
	respondJSON(w, http.StatusOK, reindexResponse{Indexed: n})
}
