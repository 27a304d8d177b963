package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-booking/internal/clinicapi"
	"github.com/wolfman30/dental-booking/internal/http/middleware"
	"github.com/wolfman30/dental-booking/internal/scheduling"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// Handler exposes the booking flow over HTTP.
type Handler struct {
	svc    *Service
	loc    *time.Location
	logger *logging.Logger
}

// NewHandler creates a booking handler. loc interprets candidate starts sent
// without an offset.
func NewHandler(svc *Service, loc *time.Location, logger *logging.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, loc: loc, logger: logger}
}

// SessionView is the JSON shape of a session returned to the browser.
type SessionView struct {
	*Session
	Events []scheduling.CalendarEvent `json:"events"`
}

// SelectionResponse carries the validator decision with the updated session.
type SelectionResponse struct {
	Decision scheduling.Decision `json:"decision"`
	Session  SessionView         `json:"session"`
}

// SlotsResponse lists bookable starts.
type SlotsResponse struct {
	Slots []time.Time `json:"slots"`
}

// Mount registers the catalog and session routes on r. submitMiddleware
// wraps only the submit route, e.g. with a rate limiter.
func (h *Handler) Mount(r chi.Router, submitMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/procedures", h.Procedures)
	r.Get("/doctors", h.Doctors)
	r.Route("/booking/sessions", func(r chi.Router) {
		r.Use(requireVerifiedEmail)
		r.Post("/", h.StartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Put("/procedure", h.ChooseProcedure)
			r.Put("/doctor", h.ChooseDoctor)
			r.Get("/slots", h.Slots)
			r.Post("/selection", h.Select)
			r.Delete("/selection", h.CancelSelection)
			r.With(submitMiddleware...).Post("/submit", h.Submit)
		})
	})
}

// requireVerifiedEmail admits only callers whose email can own a session.
func requireVerifiedEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok || claims.Email == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "email claim required"})
			return
		}
		if claims.EmailUnverified() {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "email not verified"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Procedures handles GET /api/procedures.
func (h *Handler) Procedures(w http.ResponseWriter, r *http.Request) {
	procedures, err := h.svc.Procedures(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, procedures)
}

// Doctors handles GET /api/doctors.
func (h *Handler) Doctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.Doctors(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doctors)
}

// StartSession handles POST /api/booking/sessions.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Email == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "email claim required"})
		return
	}
	sess, err := h.svc.Start(r.Context(), claims.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view(sess))
}

// GetSession handles GET /api/booking/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(ownerContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// ChooseProcedure handles PUT /api/booking/sessions/{id}/procedure.
func (h *Handler) ChooseProcedure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProcedureID string `json:"procedure_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProcedureID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "procedure_id is required"})
		return
	}
	sess, err := h.svc.ChooseProcedure(ownerContext(r), chi.URLParam(r, "id"), req.ProcedureID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// ChooseDoctor handles PUT /api/booking/sessions/{id}/doctor. An
// availability failure still answers 200: the session carries the
// "no schedule available" message and an empty calendar.
func (h *Handler) ChooseDoctor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DoctorID string `json:"doctor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DoctorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "doctor_id is required"})
		return
	}
	sess, err := h.svc.ChooseDoctor(ownerContext(r), chi.URLParam(r, "id"), req.DoctorID)
	if err != nil && !(errors.Is(err, ErrNoAvailability) && sess != nil) {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// Slots handles GET /api/booking/sessions/{id}/slots.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.svc.Slots(ownerContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{Slots: slots})
}

// Select handles POST /api/booking/sessions/{id}/selection. Accepted
// candidates answer 200 and rejected ones 409, both with the decision.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start string `json:"start"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	candidate, err := ParseCandidate(req.Start, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sess, decision, err := h.svc.Select(ownerContext(r), chi.URLParam(r, "id"), candidate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !decision.Accepted {
		status = http.StatusConflict
	}
	writeJSON(w, status, SelectionResponse{Decision: decision, Session: view(sess)})
}

// CancelSelection handles DELETE /api/booking/sessions/{id}/selection.
func (h *Handler) CancelSelection(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.CancelSelection(ownerContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// Submit handles POST /api/booking/sessions/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Submit(ownerContext(r), chi.URLParam(r, "id"))
	if err != nil {
		if sess != nil {
			status := http.StatusBadGateway
			if errors.Is(err, ErrSlotTaken) {
				status = http.StatusConflict
			}
			writeJSON(w, status, view(sess))
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view(sess))
}

// ParseCandidate accepts RFC 3339 or a zone-less local timestamp in loc.
func ParseCandidate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("start must be an RFC 3339 timestamp")
}

func view(s *Session) SessionView {
	return SessionView{Session: s, Events: s.CalendarEvents()}
}

func ownerContext(r *http.Request) context.Context {
	ctx := r.Context()
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		return WithOwner(ctx, claims.Email)
	}
	return ctx
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, ErrProcedureNotFound), errors.Is(err, ErrDoctorNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ErrNoProcedure), errors.Is(err, ErrNoDoctor), errors.Is(err, ErrNoPendingSelection):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ErrSubmitInProgress), errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrSessionBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, clinicapi.ErrUnauthorized), errors.Is(err, clinicapi.ErrMissingToken):
		return http.StatusUnauthorized, "not authorized by clinic backend"
	case errors.Is(err, ErrNoAvailability):
		return http.StatusBadGateway, MessageNoAvailability
	default:
		var apiErr *clinicapi.APIError
		if errors.As(err, &apiErr) {
			return http.StatusBadGateway, "clinic backend error"
		}
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
