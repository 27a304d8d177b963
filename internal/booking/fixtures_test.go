package booking

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/dental-booking/internal/audit"
	"github.com/wolfman30/dental-booking/internal/clinicapi"
	"github.com/wolfman30/dental-booking/internal/notify"
	"github.com/wolfman30/dental-booking/internal/scheduling"
)

// 2026-03-10 is a Tuesday.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

var (
	cleaning = scheduling.Procedure{ID: "1", Name: "Limpieza", DurationMinutes: 30}
	crown    = scheduling.Procedure{ID: "2", Name: "Corona", DurationMinutes: 60}
	drGomez  = scheduling.Doctor{ID: "4", FirstName: "Luis", LastName: "Gómez"}
	drRuiz   = scheduling.Doctor{ID: "5", FirstName: "Marta", LastName: "Ruiz"}
)

// morning is 09:00-12:00 open with 10:00-10:30 already booked.
func morning() scheduling.Availability {
	return scheduling.Availability{
		OpenBlocks: []scheduling.TimeBlock{{Start: at(9, 0), End: at(12, 0)}},
		Booked:     []scheduling.BookedInterval{{Start: at(10, 0), End: at(10, 30)}},
	}
}

func afternoon() scheduling.Availability {
	return scheduling.Availability{
		OpenBlocks: []scheduling.TimeBlock{{Start: at(14, 0), End: at(17, 0)}},
	}
}

type fakeBackend struct {
	mu sync.Mutex

	procedures   []scheduling.Procedure
	doctors      []scheduling.Doctor
	availability map[string]scheduling.Availability
	availErr     error
	patient      *clinicapi.Patient
	patientErr   error
	createErr    error

	// hooks run once, outside the mutex
	onAvailability func(q clinicapi.AvailabilityQuery)
	onCreate       func()

	queries      []clinicapi.AvailabilityQuery
	created      []clinicapi.CreateReservationRequest
	patientCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		procedures: []scheduling.Procedure{cleaning, crown},
		doctors:    []scheduling.Doctor{drGomez, drRuiz},
		availability: map[string]scheduling.Availability{
			drGomez.ID: morning(),
			drRuiz.ID:  afternoon(),
		},
		patient: &clinicapi.Patient{ID: "31", User: clinicapi.UserRef{FirstName: "Ana", LastName: "Pérez"}},
	}
}

func (f *fakeBackend) ListProcedures(context.Context) ([]scheduling.Procedure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduling.Procedure(nil), f.procedures...), nil
}

func (f *fakeBackend) ListDoctors(context.Context) ([]scheduling.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduling.Doctor(nil), f.doctors...), nil
}

func (f *fakeBackend) GetAvailability(_ context.Context, q clinicapi.AvailabilityQuery) (scheduling.Availability, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hook := f.onAvailability
	f.onAvailability = nil
	f.mu.Unlock()

	if hook != nil {
		hook(q)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.availErr != nil {
		return scheduling.Availability{}, f.availErr
	}
	return f.availability[q.DoctorID], nil
}

func (f *fakeBackend) GetPatientByEmail(_ context.Context, _ string) (*clinicapi.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patientCalls++
	if f.patientErr != nil {
		return nil, f.patientErr
	}
	return f.patient, nil
}

func (f *fakeBackend) CreateReservation(_ context.Context, req clinicapi.CreateReservationRequest) (*clinicapi.Reservation, error) {
	f.mu.Lock()
	hook := f.onCreate
	f.onCreate = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &clinicapi.Reservation{ID: "77", Status: "pendiente"}, nil
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recordingObserver struct {
	mu          sync.Mutex
	fetches     []string
	decisions   []string
	submissions []string
}

func (o *recordingObserver) ObserveFetch(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches = append(o.fetches, outcome)
}

func (o *recordingObserver) ObserveSlotDecision(accepted bool, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if accepted {
		o.decisions = append(o.decisions, "accepted")
		return
	}
	o.decisions = append(o.decisions, reason)
}

func (o *recordingObserver) ObserveSubmission(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submissions = append(o.submissions, outcome)
}

type recordingAudit struct {
	mu       sync.Mutex
	attempts []audit.Attempt
	err      error
}

func (r *recordingAudit) Record(_ context.Context, a audit.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return r.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Confirmation
	err  error
}

func (n *recordingNotifier) NotifyBookingConfirmed(_ context.Context, c notify.Confirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.err
}
