// Package audit keeps an append-only ledger of booking submissions.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Outcome of a submit attempt.
type Outcome string

const (
	OutcomeBooked    Outcome = "booked"
	OutcomeFailed    Outcome = "failed"
	OutcomeSlotTaken Outcome = "slot_taken"
)

// Attempt is one row of booking_attempts.
type Attempt struct {
	ID              uuid.UUID
	SessionID       string
	PatientEmail    string
	DoctorID        string
	ProcedureID     string
	StartsAt        time.Time
	DurationMinutes int
	Outcome         Outcome
	ReservationID   string
	Error           string
	CreatedAt       time.Time
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store writes and reads booking attempts.
type Store struct {
	db DB
}

// NewStore creates a new audit store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const maxErrorLen = 500

// Record appends an attempt.
func (s *Store) Record(ctx context.Context, a Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Error = truncate(a.Error, maxErrorLen)

	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_attempts (id, session_id, patient_email, doctor_id, procedure_id, starts_at, duration_minutes, outcome, reservation_id, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.SessionID, strings.ToLower(a.PatientEmail), a.DoctorID, a.ProcedureID,
		a.StartsAt.UTC(), a.DurationMinutes, string(a.Outcome), nullable(a.ReservationID), nullable(a.Error), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record attempt: %w", err)
	}
	return nil
}

// ListByPatient returns the most recent attempts for a patient, newest first.
func (s *Store) ListByPatient(ctx context.Context, email string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, patient_email, doctor_id, procedure_id, starts_at, duration_minutes, outcome, reservation_id, error, created_at
		FROM booking_attempts
		WHERE patient_email = $1
		ORDER BY created_at DESC LIMIT $2`, strings.ToLower(strings.TrimSpace(email)), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list by patient: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a             Attempt
			outcome       string
			reservationID *string
			errText       *string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.PatientEmail, &a.DoctorID, &a.ProcedureID,
			&a.StartsAt, &a.DurationMinutes, &outcome, &reservationID, &errText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan attempt: %w", err)
		}
		a.Outcome = Outcome(outcome)
		if reservationID != nil {
			a.ReservationID = *reservationID
		}
		if errText != nil {
			a.Error = *errText
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate attempts: %w", err)
	}
	return out, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
