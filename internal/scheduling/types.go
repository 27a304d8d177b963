// Package scheduling holds the availability data model of the booking flow
// and the rules deciding whether a candidate appointment start is bookable.
package scheduling

import (
	"strings"
	"time"
)

// TimeBlock is a doctor-declared open window, half-open [Start, End).
type TimeBlock struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BookedInterval is an existing reservation, half-open [Start, End).
type BookedInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Procedure determines how long a candidate slot must stay free.
type Procedure struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Duration returns the procedure length as a time.Duration.
func (p Procedure) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Doctor is a bookable practitioner.
type Doctor struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DisplayName renders "First Last", tolerating missing parts.
func (d Doctor) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// PendingSelection is the single tentative, unconfirmed slot of a session.
type PendingSelection struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Availability is everything fetched for one (doctor, procedure) pair.
// It is replaced wholesale on every fetch and never merged.
type Availability struct {
	OpenBlocks []TimeBlock      `json:"open_blocks"`
	Booked     []BookedInterval `json:"booked"`
}

// Empty reports whether no open block was returned.
func (a Availability) Empty() bool {
	return len(a.OpenBlocks) == 0
}

func contains(start, end, t time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
