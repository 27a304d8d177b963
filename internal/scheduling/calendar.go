package scheduling

import (
	"sort"
	"time"
)

// EventKind distinguishes what a calendar event represents.
type EventKind string

const (
	EventOpen    EventKind = "open"
	EventBooked  EventKind = "booked"
	EventPending EventKind = "pending"
)

const (
	colorOpen    = "#d1fae5"
	colorBooked  = "#9ca3af"
	colorPending = "#f59e0b"
)

// CalendarEvent is a render-ready description of one calendar entry.
type CalendarEvent struct {
	Kind  EventKind `json:"kind"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Color string    `json:"color"`
}

// CalendarEvents lays out open blocks, booked intervals and the pending
// selection, each with its own color and label.
func CalendarEvents(av Availability, pending *PendingSelection, procedureName string) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(av.OpenBlocks)+len(av.Booked)+1)
	for _, b := range av.OpenBlocks {
		events = append(events, CalendarEvent{Kind: EventOpen, Title: "Available", Start: b.Start, End: b.End, Color: colorOpen})
	}
	for _, b := range av.Booked {
		events = append(events, CalendarEvent{Kind: EventBooked, Title: "Busy", Start: b.Start, End: b.End, Color: colorBooked})
	}
	if pending != nil {
		title := "Pending"
		if procedureName != "" {
			title = "Pending: " + procedureName
		}
		events = append(events, CalendarEvent{Kind: EventPending, Title: title, Start: pending.Start, End: pending.End, Color: colorPending})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events
}
