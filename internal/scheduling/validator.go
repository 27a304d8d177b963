package scheduling

import "time"

// RejectReason is a machine-readable cause for a rejected candidate. It is
// meant for logs and metrics; users only ever see MessageNotAvailable.
type RejectReason string

const (
	ReasonNone             RejectReason = ""
	ReasonInvalidDuration  RejectReason = "invalid_duration"
	ReasonPast             RejectReason = "past"
	ReasonOutsideBlocks    RejectReason = "outside_blocks"
	ReasonBooked           RejectReason = "booked"
	ReasonDurationOverflow RejectReason = "duration_overflow"
)

const (
	MessageAccepted     = "Time slot selected"
	MessageNotAvailable = "This time is not available"
)

// Decision is the outcome of validating one candidate start.
type Decision struct {
	Accepted bool         `json:"accepted"`
	End      time.Time    `json:"end,omitzero"`
	Message  string       `json:"message"`
	Reason   RejectReason `json:"reason,omitempty"`
}

// Validate decides whether an appointment of durationMinutes may start at
// candidate. All of the following must hold:
//
//  1. candidate lies inside some open block (blockStart <= c < blockEnd)
//  2. candidate does not lie inside any booked interval (bookedStart <= c < bookedEnd)
//  3. some open block holds the whole appointment (blockStart <= c && c+d <= blockEnd)
//  4. candidate is not before now
//
// Checks 1 and 3 are evaluated independently and may be satisfied by
// different blocks. Check 2 only looks at the start instant, so an
// appointment whose tail runs into a booking is still accepted.
func Validate(candidate time.Time, blocks []TimeBlock, booked []BookedInterval, durationMinutes int, now time.Time) Decision {
	if durationMinutes <= 0 {
		return reject(ReasonInvalidDuration)
	}
	if candidate.Before(now) {
		return reject(ReasonPast)
	}
	if !startsInBlock(candidate, blocks) {
		return reject(ReasonOutsideBlocks)
	}
	if startsInBooking(candidate, booked) {
		return reject(ReasonBooked)
	}
	end := candidate.Add(time.Duration(durationMinutes) * time.Minute)
	if !fitsInBlock(candidate, end, blocks) {
		return reject(ReasonDurationOverflow)
	}
	return Decision{Accepted: true, End: end, Message: MessageAccepted}
}

func reject(reason RejectReason) Decision {
	return Decision{Accepted: false, Message: MessageNotAvailable, Reason: reason}
}

func startsInBlock(c time.Time, blocks []TimeBlock) bool {
	for _, b := range blocks {
		if contains(b.Start, b.End, c) {
			return true
		}
	}
	return false
}

func startsInBooking(c time.Time, booked []BookedInterval) bool {
	for _, b := range booked {
		if contains(b.Start, b.End, c) {
			return true
		}
	}
	return false
}

func fitsInBlock(start, end time.Time, blocks []TimeBlock) bool {
	for _, b := range blocks {
		if !b.Start.After(start) && !end.After(b.End) {
			return true
		}
	}
	return false
}
