package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingWindow(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		start string
		end   string
	}{
		{"tuesday", time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), "2026-03-09", "2026-04-05"},
		{"monday", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), "2026-03-09", "2026-04-05"},
		{"sunday", time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC), "2026-03-09", "2026-04-05"},
		{"month boundary", time.Date(2026, 12, 30, 9, 0, 0, 0, time.UTC), "2026-12-28", "2027-01-24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := BookingWindow(tt.now, time.UTC)
			assert.Equal(t, tt.start, w.StartDate())
			assert.Equal(t, tt.end, w.EndDate())
			assert.Equal(t, time.Monday, w.Start.Weekday())
			assert.Equal(t, time.Sunday, w.End.Weekday())
		})
	}
}

func TestBookingWindow_UsesClinicZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// Tuesday 02:00 UTC is still Monday evening in the clinic.
	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	w := BookingWindow(now, loc)
	assert.Equal(t, "2026-03-09", w.StartDate())
	assert.Equal(t, "2026-04-05", w.EndDate())
	assert.Equal(t, loc, w.Start.Location())
}

func TestBookingWindow_NilLocation(t *testing.T) {
	w := BookingWindow(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), nil)
	require.Equal(t, time.UTC, w.Start.Location())
}
