package booking

import (
	"time"

	"github.com/wolfman30/dental-booking/internal/scheduling"
)

// State is a step of the booking flow.
type State string

const (
	StateIdle            State = "idle"
	StateProcedureChosen State = "procedure_chosen"
	StateDoctorChosen    State = "doctor_chosen"
	StateSlotPending     State = "slot_pending"
	StateSubmitting      State = "submitting"
	StateSuccess         State = "success"
	StateFailed          State = "failed"
)

// Session is the booking flow of one patient in one browser session.
type Session struct {
	ID           string `json:"id"`
	PatientEmail string `json:"patient_email"`
	State        State  `json:"state"`

	Procedure  *scheduling.Procedure `json:"procedure,omitempty"`
	DoctorID   string                `json:"doctor_id,omitempty"`
	DoctorName string                `json:"doctor_name,omitempty"`

	// Generation increments on every procedure or doctor change. A fetch
	// result is applied only if the generation it was started with is
	// still current.
	Generation        int64                   `json:"generation"`
	Availability      scheduling.Availability `json:"availability"`
	AvailabilityError string                  `json:"availability_error,omitempty"`

	Pending *scheduling.PendingSelection `json:"pending,omitempty"`

	LastMessage   string `json:"last_message,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession starts an idle session.
func NewSession(id, patientEmail string, now time.Time) *Session {
	return &Session{ID: id, PatientEmail: patientEmail, State: StateIdle, CreatedAt: now, UpdatedAt: now}
}

func (s *Session) guardMutable() error {
	switch s.State {
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateSuccess:
		return ErrAlreadyBooked
	}
	return nil
}

// ChooseProcedure sets the procedure and resets everything that depends on it.
func (s *Session) ChooseProcedure(p scheduling.Procedure) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	s.Procedure = &p
	s.DoctorID = ""
	s.DoctorName = ""
	s.resetAvailability()
	s.State = StateProcedureChosen
	return nil
}

// ChooseDoctor sets the doctor and returns the generation the caller must
// present when applying the fetched availability.
func (s *Session) ChooseDoctor(doctor scheduling.Doctor) (int64, error) {
	if err := s.guardMutable(); err != nil {
		return 0, err
	}
	if s.Procedure == nil {
		return 0, ErrNoProcedure
	}
	s.DoctorID = doctor.ID
	s.DoctorName = doctor.DisplayName()
	s.resetAvailability()
	s.State = StateDoctorChosen
	return s.Generation, nil
}

func (s *Session) resetAvailability() {
	s.Generation++
	s.Availability = scheduling.Availability{}
	s.AvailabilityError = ""
	s.Pending = nil
	s.LastMessage = ""
}

// ApplyAvailability replaces the availability wholesale. It reports false
// and leaves the session untouched when the result is stale.
func (s *Session) ApplyAvailability(generation int64, av scheduling.Availability, fetchErr error) bool {
	if generation != s.Generation {
		return false
	}
	s.Availability = av
	s.AvailabilityError = ""
	if fetchErr != nil {
		s.Availability = scheduling.Availability{}
		s.AvailabilityError = MessageNoAvailability
	} else if av.Empty() {
		s.AvailabilityError = MessageNoAvailability
	}
	return true
}

// Select validates a candidate start. An accepted candidate replaces any
// previous pending selection; a rejected one clears it.
func (s *Session) Select(candidate, now time.Time) (scheduling.Decision, error) {
	if err := s.guardMutable(); err != nil {
		return scheduling.Decision{}, err
	}
	if s.Procedure == nil {
		return scheduling.Decision{}, ErrNoProcedure
	}
	if s.DoctorID == "" {
		return scheduling.Decision{}, ErrNoDoctor
	}

	d := scheduling.Validate(candidate, s.Availability.OpenBlocks, s.Availability.Booked, s.Procedure.DurationMinutes, now)
	s.LastMessage = d.Message
	if !d.Accepted {
		s.Pending = nil
		s.State = StateDoctorChosen
		return d, nil
	}
	s.Pending = &scheduling.PendingSelection{Start: candidate, End: d.End}
	s.State = StateSlotPending
	return d, nil
}

// CancelSelection drops the pending selection.
func (s *Session) CancelSelection() error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	s.Pending = nil
	s.LastMessage = MessageSelectionReset
	if s.DoctorID != "" {
		s.State = StateDoctorChosen
	}
	return nil
}

// BeginSubmit moves a pending (or previously failed) selection into submitting.
func (s *Session) BeginSubmit() error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if s.Pending == nil || s.Procedure == nil || s.DoctorID == "" {
		return ErrNoPendingSelection
	}
	s.State = StateSubmitting
	return nil
}

// CompleteSubmit clears procedure, doctor and pending selection and marks
// the session booked.
func (s *Session) CompleteSubmit(reservationID string) {
	s.Procedure = nil
	s.DoctorID = ""
	s.DoctorName = ""
	s.resetAvailability()
	s.ReservationID = reservationID
	s.LastMessage = MessageBooked
	s.State = StateSuccess
}

// FailSubmit keeps the selection so the patient can retry.
func (s *Session) FailSubmit(message string) {
	s.LastMessage = message
	s.State = StateFailed
}

// CalendarEvents renders the session for the calendar widget.
func (s *Session) CalendarEvents() []scheduling.CalendarEvent {
	name := ""
	if s.Procedure != nil {
		name = s.Procedure.Name
	}
	return scheduling.CalendarEvents(s.Availability, s.Pending, name)
}
