package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/wolfman30/dental-booking/internal/scheduling"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

const defaultTimeout = 15 * time.Second

var clinicTracer = otel.Tracer("dental.internal.clinicapi")

// RequestObserver receives one observation per backend call.
type RequestObserver interface {
	ObserveBackendRequest(operation, outcome string, seconds float64)
}

// Config holds configuration for the clinic backend client.
type Config struct {
	BaseURL     string // e.g. "https://clinic.example.com/api"
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
	Timeout     time.Duration
	// Location interprets backend timestamps that carry no offset.
	Location *time.Location
	Logger   *logging.Logger
	Metrics  RequestObserver
}

// Client is a typed REST client for the clinic backend. It is constructed
// explicitly and handed to whoever needs it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	loc        *time.Location
	logger     *logging.Logger
	metrics    RequestObserver
}

// New creates a clinic backend client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("clinicapi: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("clinicapi: invalid BaseURL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: httpClient,
		tokens:     cfg.TokenSource,
		loc:        loc,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// WithTokenSource returns a copy of the client that authenticates with ts.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// WithToken is shorthand for a static bearer token.
func (c *Client) WithToken(token string) *Client {
	return c.WithTokenSource(StaticToken(token))
}

// ListProcedures returns the bookable procedures.
// GET /procedimientos/
func (c *Client) ListProcedures(ctx context.Context) ([]scheduling.Procedure, error) {
	var out []Procedure
	if err := c.do(ctx, "list_procedures", http.MethodGet, "/procedimientos/", nil, nil, &out); err != nil {
		return nil, err
	}
	procedures := make([]scheduling.Procedure, 0, len(out))
	for _, p := range out {
		procedures = append(procedures, scheduling.Procedure{ID: string(p.ID), Name: p.Name, DurationMinutes: p.DurationMin})
	}
	return procedures, nil
}

// ListDoctors returns the clinic doctors.
// GET /doctores/
func (c *Client) ListDoctors(ctx context.Context) ([]scheduling.Doctor, error) {
	var out []Doctor
	if err := c.do(ctx, "list_doctors", http.MethodGet, "/doctores/", nil, nil, &out); err != nil {
		return nil, err
	}
	doctors := make([]scheduling.Doctor, 0, len(out))
	for _, d := range out {
		doctors = append(doctors, scheduling.Doctor{
			ID:        string(d.ID),
			FirstName: d.User.FirstName,
			LastName:  d.User.LastName,
			Specialty: d.Specialty,
			Phone:     d.Phone,
		})
	}
	return doctors, nil
}

// GetAvailability returns open blocks and existing bookings for a doctor,
// procedure and date window.
// GET /reservas/disponibilidad/?doctor_id&procedimiento_id&start_date&end_date
func (c *Client) GetAvailability(ctx context.Context, q AvailabilityQuery) (scheduling.Availability, error) {
	params := url.Values{}
	params.Set("doctor_id", q.DoctorID)
	params.Set("procedimiento_id", q.ProcedureID)
	params.Set("start_date", q.StartDate)
	params.Set("end_date", q.EndDate)

	var out availabilityResponse
	if err := c.do(ctx, "get_availability", http.MethodGet, "/reservas/disponibilidad/", params, nil, &out); err != nil {
		return scheduling.Availability{}, err
	}

	av := scheduling.Availability{
		OpenBlocks: make([]scheduling.TimeBlock, 0, len(out.OpenBlocks)),
		Booked:     make([]scheduling.BookedInterval, 0, len(out.Booked)),
	}
	for _, b := range out.OpenBlocks {
		start, end, ok := c.parseInterval(b)
		if !ok {
			continue
		}
		av.OpenBlocks = append(av.OpenBlocks, scheduling.TimeBlock{Start: start, End: end})
	}
	for _, b := range out.Booked {
		start, end, ok := c.parseInterval(b)
		if !ok {
			continue
		}
		av.Booked = append(av.Booked, scheduling.BookedInterval{Start: start, End: end})
	}
	return av, nil
}

// GetPatientByEmail resolves a patient record.
// GET /pacientes/by_email/{email}/
func (c *Client) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("clinicapi: email is required")
	}
	var out Patient
	path := "/pacientes/by_email/" + url.PathEscape(email) + "/"
	if err := c.do(ctx, "get_patient_by_email", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("clinicapi: patient lookup returned empty id")
	}
	return &out, nil
}

// CreateReservation books an appointment.
// POST /reservas/
func (c *Client) CreateReservation(ctx context.Context, req CreateReservationRequest) (*Reservation, error) {
	body := createReservationBody{
		PatientID:   ID(req.PatientID),
		DoctorID:    ID(req.DoctorID),
		ProcedureID: ID(req.ProcedureID),
		StartsAt:    req.StartsAt.UTC().Format(time.RFC3339),
		DurationMin: req.DurationMinutes,
	}
	var out Reservation
	if err := c.do(ctx, "create_reservation", http.MethodPost, "/reservas/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateReservationStatus changes the estado of a reservation.
// PATCH /reservas/{id}/
func (c *Client) UpdateReservationStatus(ctx context.Context, reservationID, status string) (*Reservation, error) {
	var out Reservation
	path := "/reservas/" + url.PathEscape(reservationID) + "/"
	if err := c.do(ctx, "update_reservation_status", http.MethodPatch, path, nil, map[string]string{"estado": status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateReservationNotes stores the doctor's notes on a reservation.
// PATCH /reservas/{id}/
func (c *Client) UpdateReservationNotes(ctx context.Context, reservationID, notes string) (*Reservation, error) {
	var out Reservation
	path := "/reservas/" + url.PathEscape(reservationID) + "/"
	if err := c.do(ctx, "update_reservation_notes", http.MethodPatch, path, nil, map[string]string{"notas_doctor": notes}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WhoAmI resolves the caller's role.
// GET /whoami/
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	var out Identity
	if err := c.do(ctx, "whoami", http.MethodGet, "/whoami/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	ctx, span := clinicTracer.Start(ctx, "clinicapi."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("clinicapi.path", path))

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		}
		if c.metrics != nil {
			c.metrics.ObserveBackendRequest(op, outcome, time.Since(start).Seconds())
		}
	}()

	if c.tokens == nil {
		return ErrMissingToken
	}
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("clinicapi: %s: obtain token: %w", op, err)
	}
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("clinicapi: %s: %w", op, ErrMissingToken)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("clinicapi: %s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("clinicapi: %s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clinicapi: %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("clinicapi: %s: read response: %w", op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("clinic backend returned error", "operation", op, "status", resp.StatusCode)
		return newAPIError(op, resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("clinicapi: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) parseInterval(iv interval) (time.Time, time.Time, bool) {
	start, err := parseInstant(iv.Start, c.loc)
	if err != nil {
		c.logger.Warn("skipping interval with invalid start", "value", iv.Start, "error", err)
		return time.Time{}, time.Time{}, false
	}
	end, err := parseInstant(iv.End, c.loc)
	if err != nil {
		c.logger.Warn("skipping interval with invalid end", "value", iv.End, "error", err)
		return time.Time{}, time.Time{}, false
	}
	if !end.After(start) {
		c.logger.Warn("skipping empty interval", "start", iv.Start, "end", iv.End)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"}

// parseInstant accepts RFC 3339 or a zone-less local timestamp interpreted in loc.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("clinicapi: unrecognized timestamp %q", s)
}
