package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking/internal/clinicapi"
	"github.com/wolfman30/dental-booking/internal/scheduling"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

var bookingTracer = otel.Tracer("dental.internal.booking")

// AvailabilitySource returns open blocks and bookings for a query window.
type AvailabilitySource interface {
	GetAvailability(ctx context.Context, q clinicapi.AvailabilityQuery) (scheduling.Availability, error)
}

// Observer receives booking flow measurements. *metrics.BookingMetrics
// satisfies it.
type Observer interface {
	ObserveFetch(outcome string)
	ObserveSlotDecision(accepted bool, reason string)
	ObserveSubmission(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string)              {}
func (nopObserver) ObserveSlotDecision(bool, string) {}
func (nopObserver) ObserveSubmission(string)         {}

// Fetcher loads availability for the current booking window. There is no
// retry: a failure is reported once and the caller shows "no schedule".
type Fetcher struct {
	loc     *time.Location
	logger  *logging.Logger
	metrics Observer
}

// NewFetcher creates a fetcher that computes windows in loc.
func NewFetcher(loc *time.Location, metrics Observer, logger *logging.Logger) *Fetcher {
	if loc == nil {
		loc = time.UTC
	}
	if metrics == nil {
		metrics = nopObserver{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Fetcher{loc: loc, logger: logger, metrics: metrics}
}

// Fetch returns the availability for doctor and procedure. The result
// replaces whatever the caller held before; nothing is merged.
func (f *Fetcher) Fetch(ctx context.Context, src AvailabilitySource, doctorID, procedureID string, now time.Time) (scheduling.Availability, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.fetch_availability")
	defer span.End()

	w := scheduling.BookingWindow(now, f.loc)
	span.SetAttributes(
		attribute.String("booking.doctor_id", doctorID),
		attribute.String("booking.procedure_id", procedureID),
		attribute.String("booking.window_start", w.StartDate()),
		attribute.String("booking.window_end", w.EndDate()),
	)

	av, err := src.GetAvailability(ctx, clinicapi.AvailabilityQuery{
		DoctorID:    doctorID,
		ProcedureID: procedureID,
		StartDate:   w.StartDate(),
		EndDate:     w.EndDate(),
	})
	if err != nil {
		span.RecordError(err)
		f.metrics.ObserveFetch("error")
		f.logger.Error("availability fetch failed",
			"doctor_id", doctorID,
			"procedure_id", procedureID,
			"error", err,
		)
		return scheduling.Availability{}, fmt.Errorf("%w: %w", ErrNoAvailability, err)
	}
	if av.Empty() {
		f.metrics.ObserveFetch("empty")
	} else {
		f.metrics.ObserveFetch("ok")
	}
	f.logger.Debug("availability loaded",
		"doctor_id", doctorID,
		"procedure_id", procedureID,
		"open_blocks", len(av.OpenBlocks),
		"booked", len(av.Booked),
	)
	return av, nil
}
