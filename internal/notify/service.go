package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/dental-booking/pkg/logging"
)

// Confirmation describes a reservation that was just created.
type Confirmation struct {
	ReservationID string    `json:"reservation_id"`
	PatientEmail  string    `json:"patient_email"`
	PatientName   string    `json:"patient_name,omitempty"`
	ProcedureName string    `json:"procedure_name"`
	DoctorName    string    `json:"doctor_name"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// ServiceConfig controls who is emailed after a booking.
type ServiceConfig struct {
	// Location renders appointment times in the clinic's zone.
	Location *time.Location
	// ClinicEmail receives a copy of every new booking request; empty disables it.
	ClinicEmail string
	// PatientEnabled toggles the patient confirmation email.
	PatientEnabled bool
}

// Service sends booking emails.
type Service struct {
	email  EmailSender
	cfg    ServiceConfig
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, cfg ServiceConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{email: email, cfg: cfg, logger: logger}
}

// NotifyBookingConfirmed emails the patient and, when configured, the clinic.
// Each channel is attempted even if the other fails.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, c Confirmation) error {
	if s == nil || s.email == nil {
		return nil
	}

	var errs []error
	if s.cfg.PatientEnabled && strings.TrimSpace(c.PatientEmail) != "" {
		msg := PatientConfirmation(c, s.cfg.Location)
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: patient confirmation failed", "error", err, "reservation_id", c.ReservationID)
			errs = append(errs, fmt.Errorf("patient: %w", err))
		}
	}
	if s.cfg.ClinicEmail != "" {
		msg := ClinicSummary(c, s.cfg.Location)
		msg.To = s.cfg.ClinicEmail
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: clinic summary failed", "error", err, "reservation_id", c.ReservationID)
			errs = append(errs, fmt.Errorf("clinic: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: booking confirmation: %w", errors.Join(errs...))
	}
	return nil
}

const (
	dateLayout = "Monday, January 2, 2006"
	timeLayout = "15:04"
)

// PatientConfirmation builds the email sent to the patient.
func PatientConfirmation(c Confirmation, loc *time.Location) EmailMessage {
	if loc == nil {
		loc = time.UTC
	}
	start, end := c.Start.In(loc), c.End.In(loc)
	name := valueOr(c.PatientName, "there")
	procedure := valueOr(c.ProcedureName, "your appointment")

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "We received your booking for %s on %s from %s to %s.\n",
		procedure, start.Format(dateLayout), start.Format(timeLayout), end.Format(timeLayout))
	if c.DoctorName != "" {
		fmt.Fprintf(&b, "Doctor: %s\n", c.DoctorName)
	}
	if c.ReservationID != "" {
		fmt.Fprintf(&b, "Reservation: %s\n", c.ReservationID)
	}
	b.WriteString("\nThe clinic will confirm your appointment shortly.\n")

	return EmailMessage{
		To:      c.PatientEmail,
		ToName:  c.PatientName,
		Subject: fmt.Sprintf("Booking received: %s on %s", procedure, start.Format("Jan 2 15:04")),
		Body:    b.String(),
		HTML:    summaryHTML("Your booking was received", c, start, end),
	}
}

// ClinicSummary builds the staff notification for a new booking request.
// The recipient is left empty for the caller to fill in.
func ClinicSummary(c Confirmation, loc *time.Location) EmailMessage {
	if loc == nil {
		loc = time.UTC
	}
	start, end := c.Start.In(loc), c.End.In(loc)

	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", valueOr(c.PatientName, "N/A"))
	fmt.Fprintf(&b, "Email: %s\n", valueOr(c.PatientEmail, "N/A"))
	fmt.Fprintf(&b, "Procedure: %s\n", valueOr(c.ProcedureName, "N/A"))
	fmt.Fprintf(&b, "Doctor: %s\n", valueOr(c.DoctorName, "N/A"))
	fmt.Fprintf(&b, "When: %s %s-%s\n", start.Format(dateLayout), start.Format(timeLayout), end.Format(timeLayout))
	fmt.Fprintf(&b, "Reservation: %s\n", valueOr(c.ReservationID, "N/A"))

	return EmailMessage{
		Subject: fmt.Sprintf("New booking request: %s (%s)", valueOr(c.PatientName, c.PatientEmail), valueOr(c.ProcedureName, "procedure")),
		Body:    b.String(),
		HTML:    summaryHTML("New booking request", c, start, end),
	}
}

func summaryHTML(title string, c Confirmation, start, end time.Time) string {
	row := func(label, value string) string {
		return fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">%s</td><td style="padding:6px 12px;">%s</td></tr>`,
			label, html.EscapeString(valueOr(value, "N/A")))
	}
	var rows strings.Builder
	rows.WriteString(row("Patient", c.PatientName))
	rows.WriteString(row("Procedure", c.ProcedureName))
	rows.WriteString(row("Doctor", c.DoctorName))
	rows.WriteString(row("Date", start.Format(dateLayout)))
	rows.WriteString(row("Time", start.Format(timeLayout)+" - "+end.Format(timeLayout)))
	rows.WriteString(row("Reservation", c.ReservationID))

	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;">
<h2 style="color:#333;">%s</h2>
<table style="border-collapse:collapse;width:100%%;">
%s</table>
</div>`, html.EscapeString(title), rows.String())
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
