package booking

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("booking: session not found")

	// ErrSessionBusy is returned when another request holds the session lock.
	ErrSessionBusy = errors.New("booking: session busy")

	// ErrProcedureNotFound is returned when the chosen procedure is not offered.
	ErrProcedureNotFound = errors.New("booking: procedure not found")

	// ErrDoctorNotFound is returned when the chosen doctor is unknown.
	ErrDoctorNotFound = errors.New("booking: doctor not found")

	// ErrNoProcedure is returned when a doctor or slot is chosen before a procedure.
	ErrNoProcedure = errors.New("booking: choose a procedure first")

	// ErrNoDoctor is returned when a slot is chosen before a doctor.
	ErrNoDoctor = errors.New("booking: choose a doctor first")

	// ErrNoPendingSelection is returned when submitting without a pending slot.
	ErrNoPendingSelection = errors.New("booking: no pending selection")

	// ErrSubmitInProgress is returned for a second submit while one is running.
	ErrSubmitInProgress = errors.New("booking: submission already in progress")

	// ErrAlreadyBooked is returned once the session completed a booking.
	ErrAlreadyBooked = errors.New("booking: session already booked")

	// ErrNoAvailability wraps availability fetch failures.
	ErrNoAvailability = errors.New("booking: no schedule available")

	// ErrSlotTaken is returned when re-validation right before submit rejects the slot.
	ErrSlotTaken = errors.New("booking: selected time is no longer available")

	// ErrSubmitFailed wraps patient lookup and create-reservation failures.
	ErrSubmitFailed = errors.New("booking: reservation could not be created")
)

// User-facing messages.
const (
	MessageNoAvailability = "No schedule available for this doctor and procedure"
	MessageBooked         = "Your appointment has been booked"
	MessageSubmitFailed   = "We could not book your appointment, please try again"
	MessageSlotTaken      = "That time was just taken, please pick another one"
	MessageSelectionReset = "Selection cleared"
)
