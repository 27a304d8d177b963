package scheduling

import "time"

const (
	dateLayout = "2006-01-02"

	// windowWeeks is how far ahead availability is requested.
	windowWeeks = 3
)

// Window is the inclusive date range availability is requested for.
// Start is a Monday, End is a Sunday, both at midnight in the clinic zone.
type Window struct {
	Start time.Time
	End   time.Time
}

// BookingWindow spans from the start of the week containing now to the end
// of the week containing now + 3 weeks.
func BookingWindow(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	today := midnight(now.In(loc))
	return Window{
		Start: startOfWeek(today),
		End:   startOfWeek(today.AddDate(0, 0, 7*windowWeeks)).AddDate(0, 0, 6),
	}
}

// StartDate formats Start for the availability query string.
func (w Window) StartDate() string { return w.Start.Format(dateLayout) }

// EndDate formats End for the availability query string.
func (w Window) EndDate() string { return w.End.Format(dateLayout) }

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday on or before day.
func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
