package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking/internal/audit"
	"github.com/wolfman30/dental-booking/internal/clinicapi"
	"github.com/wolfman30/dental-booking/internal/notify"
	"github.com/wolfman30/dental-booking/internal/scheduling"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// PatientLookup resolves the patient record for the logged-in email.
type PatientLookup interface {
	GetPatientByEmail(ctx context.Context, email string) (*clinicapi.Patient, error)
}

// ReservationCreator issues the create-reservation call.
type ReservationCreator interface {
	CreateReservation(ctx context.Context, req clinicapi.CreateReservationRequest) (*clinicapi.Reservation, error)
}

// AttemptRecorder appends submit outcomes to the audit ledger.
type AttemptRecorder interface {
	Record(ctx context.Context, a audit.Attempt) error
}

// ConfirmationNotifier is told about every successful booking.
type ConfirmationNotifier interface {
	NotifyBookingConfirmed(ctx context.Context, c notify.Confirmation) error
}

// SubmitBackend is what a submit needs from the clinic backend.
type SubmitBackend interface {
	AvailabilitySource
	PatientLookup
	ReservationCreator
}

// SubmitRequest is a snapshot of the session taken when submit began.
type SubmitRequest struct {
	SessionID    string
	PatientEmail string
	Procedure    scheduling.Procedure
	DoctorID     string
	DoctorName   string
	Pending      scheduling.PendingSelection
}

// SubmitterConfig wires the optional collaborators of a Submitter.
type SubmitterConfig struct {
	// Revalidate re-fetches availability and re-runs the validator before
	// the create call.
	Revalidate bool
	Fetcher    *Fetcher
	Recorder   AttemptRecorder
	Notifier   ConfirmationNotifier
	Metrics    Observer
	Logger     *logging.Logger
}

// Submitter turns a pending selection into a reservation.
type Submitter struct {
	revalidate bool
	fetcher    *Fetcher
	recorder   AttemptRecorder
	notifier   ConfirmationNotifier
	metrics    Observer
	logger     *logging.Logger
}

func NewSubmitter(cfg SubmitterConfig) *Submitter {
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
	return &Submitter{
		revalidate: cfg.Revalidate,
		fetcher:    fetcher,
		recorder:   cfg.Recorder,
		notifier:   cfg.Notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Submit creates the reservation. On error the caller keeps the pending
// selection so the patient can retry; the returned error wraps
// ErrSlotTaken or ErrSubmitFailed.
func (s *Submitter) Submit(ctx context.Context, backend SubmitBackend, req SubmitRequest, now time.Time) (*clinicapi.Reservation, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.session_id", req.SessionID),
		attribute.String("booking.doctor_id", req.DoctorID),
		attribute.String("booking.procedure_id", req.Procedure.ID),
	)

	attempt := audit.Attempt{
		SessionID:       req.SessionID,
		PatientEmail:    req.PatientEmail,
		DoctorID:        req.DoctorID,
		ProcedureID:     req.Procedure.ID,
		StartsAt:        req.Pending.Start,
		DurationMinutes: req.Procedure.DurationMinutes,
	}

	reservation, patient, err := s.submit(ctx, backend, req, now)
	if err != nil {
		span.RecordError(err)
		attempt.Error = err.Error()
		attempt.Outcome = audit.OutcomeFailed
		if errors.Is(err, ErrSlotTaken) {
			attempt.Outcome = audit.OutcomeSlotTaken
		}
		s.metrics.ObserveSubmission(string(attempt.Outcome))
		s.record(ctx, attempt)
		s.logger.Error("booking submit failed",
			"session_id", req.SessionID,
			"doctor_id", req.DoctorID,
			"procedure_id", req.Procedure.ID,
			"start", req.Pending.Start,
			"error", err,
		)
		return nil, err
	}

	attempt.Outcome = audit.OutcomeBooked
	attempt.ReservationID = string(reservation.ID)
	s.metrics.ObserveSubmission(string(attempt.Outcome))
	s.record(ctx, attempt)
	s.logger.Info("booking created",
		"session_id", req.SessionID,
		"reservation_id", reservation.ID,
		"doctor_id", req.DoctorID,
		"start", req.Pending.Start,
	)

	if s.notifier != nil {
		err := s.notifier.NotifyBookingConfirmed(ctx, notify.Confirmation{
			ReservationID: string(reservation.ID),
			PatientEmail:  req.PatientEmail,
			PatientName:   patientName(patient),
			ProcedureName: req.Procedure.Name,
			DoctorName:    req.DoctorName,
			Start:         req.Pending.Start,
			End:           req.Pending.End,
		})
		if err != nil {
			s.logger.Warn("booking confirmation email failed", "reservation_id", reservation.ID, "error", err)
		}
	}
	return reservation, nil
}

func (s *Submitter) submit(ctx context.Context, backend SubmitBackend, req SubmitRequest, now time.Time) (*clinicapi.Reservation, *clinicapi.Patient, error) {
	patient, err := backend.GetPatientByEmail(ctx, req.PatientEmail)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: patient lookup: %w", ErrSubmitFailed, err)
	}

	if s.revalidate {
		av, err := s.fetcher.Fetch(ctx, backend, req.DoctorID, req.Procedure.ID, now)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: revalidate: %w", ErrSubmitFailed, err)
		}
		d := scheduling.Validate(req.Pending.Start, av.OpenBlocks, av.Booked, req.Procedure.DurationMinutes, now)
		if !d.Accepted {
			return nil, nil, fmt.Errorf("%w (%s)", ErrSlotTaken, d.Reason)
		}
	}

	reservation, err := backend.CreateReservation(ctx, clinicapi.CreateReservationRequest{
		PatientID:       string(patient.ID),
		DoctorID:        req.DoctorID,
		ProcedureID:     req.Procedure.ID,
		StartsAt:        req.Pending.Start,
		DurationMinutes: req.Procedure.DurationMinutes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	return reservation, patient, nil
}

func (s *Submitter) record(ctx context.Context, a audit.Attempt) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, a); err != nil {
		s.logger.Warn("booking attempt not recorded", "session_id", a.SessionID, "error", err)
	}
}

func patientName(p *clinicapi.Patient) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.User.FirstName + " " + p.User.LastName)
}
