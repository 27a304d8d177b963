// Package reservations lets clinic staff act on existing reservations:
// admins approve or reject them and doctors attach notes.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/dental-booking/internal/clinicapi"
	"github.com/wolfman30/dental-booking/internal/http/middleware"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// Reservation states understood by the clinic backend.
const (
	StatusPending   = "pendiente"
	StatusConfirmed = "confirmada"
	StatusRejected  = "rechazada"
	StatusCancelled = "cancelada"
	StatusCompleted = "completada"
)

var statuses = []string{StatusPending, StatusConfirmed, StatusRejected, StatusCancelled, StatusCompleted}

// maxNotesLen is counted in characters, not bytes.
const maxNotesLen = 4000

var (
	ErrInvalidStatus = errors.New("reservations: invalid estado")
	ErrNotesTooLong  = errors.New("reservations: notes too long")
	ErrMissingID     = errors.New("reservations: reservation id is required")
)

// Backend is the slice of the clinic API this package needs.
type Backend interface {
	UpdateReservationStatus(ctx context.Context, reservationID, status string) (*clinicapi.Reservation, error)
	UpdateReservationNotes(ctx context.Context, reservationID, notes string) (*clinicapi.Reservation, error)
	WhoAmI(ctx context.Context) (*clinicapi.Identity, error)
}

// BackendFunc resolves the backend for the caller carried by ctx.
type BackendFunc func(ctx context.Context) (Backend, error)

// ValidStatus reports whether s is a known estado.
func ValidStatus(s string) bool {
	return slices.Contains(statuses, s)
}

// Service forwards staff actions to the clinic backend.
type Service struct {
	backends BackendFunc
	logger   *logging.Logger

	roleTTL time.Duration
	now     func() time.Time
	mu      sync.Mutex
	roles   map[string]cachedRole
}

type cachedRole struct {
	role    string
	expires time.Time
}

// NewService builds a reservation service. Roles looked up through
// ResolveRole are cached per bearer token for roleTTL; zero disables caching.
func NewService(backends BackendFunc, roleTTL time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		backends: backends,
		logger:   logger.Component("reservations"),
		roleTTL:  roleTTL,
		now:      time.Now,
		roles:    make(map[string]cachedRole),
	}
}

// UpdateStatus sets the estado of a reservation. Unknown values never reach
// the backend.
func (s *Service) UpdateStatus(ctx context.Context, reservationID, status string) (*clinicapi.Reservation, error) {
	reservationID = strings.TrimSpace(reservationID)
	status = strings.ToLower(strings.TrimSpace(status))
	if reservationID == "" {
		return nil, ErrMissingID
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, fmt.Errorf("reservations: resolve backend: %w", err)
	}
	res, err := backend.UpdateReservationStatus(ctx, reservationID, status)
	if err != nil {
		return nil, fmt.Errorf("reservations: update status: %w", err)
	}
	s.logger.Info("reservation status updated", "reservation_id", reservationID, "estado", status)
	return res, nil
}

// UpdateNotes replaces the doctor's notes on a reservation.
func (s *Service) UpdateNotes(ctx context.Context, reservationID, notes string) (*clinicapi.Reservation, error) {
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return nil, ErrMissingID
	}
	if utf8.RuneCountInString(notes) > maxNotesLen {
		return nil, ErrNotesTooLong
	}
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, fmt.Errorf("reservations: resolve backend: %w", err)
	}
	res, err := backend.UpdateReservationNotes(ctx, reservationID, notes)
	if err != nil {
		return nil, fmt.Errorf("reservations: update notes: %w", err)
	}
	s.logger.Info("reservation notes updated", "reservation_id", reservationID, "length", len(notes))
	return res, nil
}

// WhoAmI returns the caller's identity as known to the clinic backend.
func (s *Service) WhoAmI(ctx context.Context) (*clinicapi.Identity, error) {
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, fmt.Errorf("reservations: resolve backend: %w", err)
	}
	id, err := backend.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("reservations: whoami: %w", err)
	}
	return id, nil
}

// ResolveRole satisfies middleware.RoleResolver.
func (s *Service) ResolveRole(ctx context.Context) (string, error) {
	token, _ := middleware.BearerTokenFromContext(ctx)
	if token == "" {
		return "", middleware.ErrRoleUnavailable
	}
	if role, ok := s.cachedRole(token); ok {
		return role, nil
	}
	id, err := s.WhoAmI(ctx)
	if err != nil {
		return "", errors.Join(middleware.ErrRoleUnavailable, err)
	}
	role := strings.ToLower(strings.TrimSpace(id.Role))
	if role == "" {
		return "", middleware.ErrRoleUnavailable
	}
	s.storeRole(token, role)
	return role, nil
}

func (s *Service) cachedRole(token string) (string, bool) {
	if s.roleTTL <= 0 {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.roles[token]
	if !ok {
		return "", false
	}
	if !s.now().Before(c.expires) {
		delete(s.roles, token)
		return "", false
	}
	return c.role, true
}

func (s *Service) storeRole(token, role string) {
	if s.roleTTL <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, c := range s.roles {
		if !now.Before(c.expires) {
			delete(s.roles, k)
		}
	}
	s.roles[token] = cachedRole{role: role, expires: now.Add(s.roleTTL)}
}
