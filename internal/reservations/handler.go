package reservations

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-booking/internal/clinicapi"
	"github.com/wolfman30/dental-booking/internal/http/middleware"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// Handler exposes staff reservation actions over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Mount registers the reservation routes on r. Status changes need the
// admin role; notes accept doctors and admins.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/reservations/{id}", func(r chi.Router) {
		r.With(middleware.RequireRole(h.svc.ResolveRole, clinicapi.RoleAdmin)).
			Patch("/status", h.UpdateStatus)
		r.With(middleware.RequireRole(h.svc.ResolveRole, clinicapi.RoleAdmin, clinicapi.RoleDoctor)).
			Patch("/notes", h.UpdateNotes)
	})
}

// UpdateStatus handles PATCH /api/reservations/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateNotes handles PATCH /api/reservations/{id}/notes.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes *string `json:"notas_doctor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Notes == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "notas_doctor is required"})
		return
	}
	res, err := h.svc.UpdateNotes(r.Context(), chi.URLParam(r, "id"), *req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WhoAmI handles GET /api/me.
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.WhoAmI(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *clinicapi.APIError
	switch {
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNotesTooLong), errors.Is(err, ErrMissingID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, clinicapi.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reservation not found"})
	case errors.Is(err, clinicapi.ErrUnauthorized), errors.Is(err, clinicapi.ErrMissingToken):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authorized by clinic backend"})
	case errors.As(err, &apiErr):
		h.logger.Warn("clinic backend rejected reservation update", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "clinic backend error"})
	default:
		h.logger.Error("reservation request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
