package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-booking/internal/scheduling"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

const (
	defaultSlotStep = 15 * time.Minute
	// A session left in submitting this long (process restart, lost
	// response) may be submitted again.
	staleSubmitAfter = 2 * time.Minute
)

// Backend is the per-caller view of the clinic backend.
type Backend interface {
	SubmitBackend
	ListProcedures(ctx context.Context) ([]scheduling.Procedure, error)
	ListDoctors(ctx context.Context) ([]scheduling.Doctor, error)
}

// BackendFunc resolves the backend for the caller carried by ctx, typically
// by attaching the caller's bearer token to a shared client.
type BackendFunc func(ctx context.Context) (Backend, error)

// StaticBackend always returns b.
func StaticBackend(b Backend) BackendFunc {
	return func(context.Context) (Backend, error) { return b, nil }
}

type ownerKey struct{}

// WithOwner scopes session access in ctx to the given patient email.
func WithOwner(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ownerKey{}, strings.ToLower(strings.TrimSpace(email)))
}

func ownerFrom(ctx context.Context) string {
	v, _ := ctx.Value(ownerKey{}).(string)
	return v
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store     SessionStore
	Backends  BackendFunc
	Fetcher   *Fetcher
	Submitter *Submitter
	Metrics   Observer
	Logger    *logging.Logger
	SlotStep  time.Duration
	Now       func() time.Time
}

// Service runs the booking flow over stored sessions.
type Service struct {
	store     SessionStore
	backends  BackendFunc
	fetcher   *Fetcher
	submitter *Submitter
	metrics   Observer
	logger    *logging.Logger
	slotStep  time.Duration
	now       func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("booking: session store is required")
	}
	if cfg.Backends == nil {
		return nil, errors.New("booking: backend resolver is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopObserver{}
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(time.UTC, metrics, logger)
	}
	submitter := cfg.Submitter
	if submitter == nil {
		submitter = NewSubmitter(SubmitterConfig{Fetcher: fetcher, Metrics: metrics, Logger: logger})
	}
	step := cfg.SlotStep
	if step <= 0 {
		step = defaultSlotStep
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     cfg.Store,
		backends:  cfg.Backends,
		fetcher:   fetcher,
		submitter: submitter,
		metrics:   metrics,
		logger:    logger.Component("booking"),
		slotStep:  step,
		now:       now,
	}, nil
}

// Procedures lists the bookable procedures.
func (s *Service) Procedures(ctx context.Context) ([]scheduling.Procedure, error) {
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ListProcedures(ctx)
}

// Doctors lists the clinic doctors.
func (s *Service) Doctors(ctx context.Context) ([]scheduling.Doctor, error) {
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ListDoctors(ctx)
}

// Start opens a new idle session for the patient.
func (s *Service) Start(ctx context.Context, patientEmail string) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(patientEmail))
	if email == "" {
		return nil, errors.New("booking: patient email is required")
	}
	sess := NewSession(uuid.NewString(), email, s.now())
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("booking session started", "session_id", sess.ID)
	return sess, nil
}

// Get returns the current session snapshot.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner := ownerFrom(ctx); owner != "" && owner != sess.PatientEmail {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// update runs fn on the session under the store lock and persists the result.
// Nothing is saved when fn fails.
func (s *Service) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock, err := s.store.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return sess, err
	}
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ChooseProcedure sets the procedure by id. Doctor, availability and any
// pending selection are reset.
func (s *Service) ChooseProcedure(ctx context.Context, id, procedureID string) (*Session, error) {
	procedures, err := s.Procedures(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: list procedures: %w", err)
	}
	var chosen *scheduling.Procedure
	for i := range procedures {
		if procedures[i].ID == procedureID {
			chosen = &procedures[i]
			break
		}
	}
	if chosen == nil {
		return nil, ErrProcedureNotFound
	}
	return s.update(ctx, id, func(sess *Session) error {
		return sess.ChooseProcedure(*chosen)
	})
}

// ChooseDoctor sets the doctor and loads the availability window. A fetch
// failure leaves the session with an empty calendar and the "no schedule"
// message; the returned error then wraps ErrNoAvailability alongside a
// usable session.
func (s *Service) ChooseDoctor(ctx context.Context, id, doctorID string) (*Session, error) {
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := backend.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: list doctors: %w", err)
	}
	var chosen *scheduling.Doctor
	for i := range doctors {
		if doctors[i].ID == doctorID {
			chosen = &doctors[i]
			break
		}
	}
	if chosen == nil {
		return nil, ErrDoctorNotFound
	}

	var (
		generation  int64
		procedureID string
	)
	if _, err := s.update(ctx, id, func(sess *Session) error {
		gen, err := sess.ChooseDoctor(*chosen)
		if err != nil {
			return err
		}
		generation, procedureID = gen, sess.Procedure.ID
		return nil
	}); err != nil {
		return nil, err
	}

	av, fetchErr := s.fetcher.Fetch(ctx, backend, doctorID, procedureID, s.now())

	sess, err := s.update(context.WithoutCancel(ctx), id, func(sess *Session) error {
		if !sess.ApplyAvailability(generation, av, fetchErr) {
			s.logger.Debug("discarding stale availability",
				"session_id", id,
				"generation", generation,
				"current_generation", sess.Generation,
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, fetchErr
}

// Select validates a candidate start against the session's availability.
// Rejections are not errors; they come back in the Decision.
func (s *Service) Select(ctx context.Context, id string, candidate time.Time) (*Session, scheduling.Decision, error) {
	var decision scheduling.Decision
	sess, err := s.update(ctx, id, func(sess *Session) error {
		d, err := sess.Select(candidate, s.now())
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		return sess, scheduling.Decision{}, err
	}
	s.metrics.ObserveSlotDecision(decision.Accepted, string(decision.Reason))
	return sess, decision, nil
}

// CancelSelection clears the pending selection.
func (s *Service) CancelSelection(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.CancelSelection()
	})
}

// Slots returns the bookable start times on the configured grid.
func (s *Service) Slots(ctx context.Context, id string) ([]time.Time, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Procedure == nil {
		return nil, ErrNoProcedure
	}
	if sess.DoctorID == "" {
		return nil, ErrNoDoctor
	}
	return scheduling.BookableStarts(sess.Availability, sess.Procedure.DurationMinutes, s.slotStep, s.now()), nil
}

// Submit books the pending selection. A second submit while the first is
// running fails with ErrSubmitInProgress; a booked session rejects with
// ErrAlreadyBooked. On failure the selection is kept for retry.
func (s *Service) Submit(ctx context.Context, id string) (*Session, error) {
	backend, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}

	var req SubmitRequest
	if _, err := s.update(ctx, id, func(sess *Session) error {
		if sess.State == StateSubmitting && s.now().Sub(sess.UpdatedAt) > staleSubmitAfter {
			s.logger.Warn("recovering stale submission", "session_id", id)
			sess.State = StateFailed
		}
		if err := sess.BeginSubmit(); err != nil {
			return err
		}
		req = SubmitRequest{
			SessionID:    sess.ID,
			PatientEmail: sess.PatientEmail,
			Procedure:    *sess.Procedure,
			DoctorID:     sess.DoctorID,
			DoctorName:   sess.DoctorName,
			Pending:      *sess.Pending,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// The outcome must be persisted even if the caller went away.
	ctx = context.WithoutCancel(ctx)
	reservation, submitErr := s.submitter.Submit(ctx, backend, req, s.now())

	sess, err := s.update(ctx, id, func(sess *Session) error {
		if submitErr != nil {
			msg := MessageSubmitFailed
			if errors.Is(submitErr, ErrSlotTaken) {
				msg = MessageSlotTaken
			}
			sess.FailSubmit(msg)
			return nil
		}
		sess.CompleteSubmit(string(reservation.ID))
		return nil
	})
	if err != nil {
		s.logger.Error("booking outcome not persisted", "session_id", id, "error", err)
		if submitErr != nil {
			return nil, submitErr
		}
		return nil, err
	}
	return sess, submitErr
}
