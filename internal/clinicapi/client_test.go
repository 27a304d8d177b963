package clinicapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
)

type recordedObservation struct {
	op, outcome string
}

type fakeObserver struct {
	seen []recordedObservation
}

func (f *fakeObserver) ObserveBackendRequest(op, outcome string, _ float64) {
	f.seen = append(f.seen, recordedObservation{op, outcome})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeObserver) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	obs := &fakeObserver{}
	c, err := New(Config{BaseURL: ts.URL + "/api/", TokenSource: StaticToken("tok-123"), Metrics: obs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, obs
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestListProcedures(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/procedimientos/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Fatalf("unexpected auth header %q", got)
		}
		_, _ = io.WriteString(w, `[{"id": 7, "nombre": "Limpieza", "duracion_min": 30}, {"id": "ortho-1", "nombre": "Ortodoncia", "duracion_min": 60}]`)
	})

	procs, err := c.ListProcedures(context.Background())
	if err != nil {
		t.Fatalf("ListProcedures: %v", err)
	}
	if len(procs) != 2 || procs[0].ID != "7" || procs[0].DurationMinutes != 30 || procs[1].ID != "ortho-1" {
		t.Fatalf("unexpected procedures: %+v", procs)
	}
	if len(obs.seen) != 1 || obs.seen[0] != (recordedObservation{"list_procedures", "ok"}) {
		t.Fatalf("unexpected observations: %+v", obs.seen)
	}
}

func TestListDoctors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 3, "user": {"first_name": "Ana", "last_name": "Pérez"}, "especialidad": "Endodoncia", "telefono": "555-0101"}]`)
	})
	docs, err := c.ListDoctors(context.Background())
	if err != nil {
		t.Fatalf("ListDoctors: %v", err)
	}
	if len(docs) != 1 || docs[0].DisplayName() != "Ana Pérez" || docs[0].Specialty != "Endodoncia" {
		t.Fatalf("unexpected doctors: %+v", docs)
	}
}

func TestGetAvailability(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/reservas/disponibilidad/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if q.Get("doctor_id") != "3" || q.Get("procedimiento_id") != "7" || q.Get("start_date") != "2026-03-09" || q.Get("end_date") != "2026-04-05" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{
			"bloques_disponibles": [
				{"start": "2026-03-10T09:00:00Z", "end": "2026-03-10T12:00:00Z"},
				{"start": "2026-03-11T09:00:00", "end": "2026-03-11T10:00:00"},
				{"start": "garbage", "end": "2026-03-11T10:00:00Z"},
				{"start": "2026-03-12T10:00:00Z", "end": "2026-03-12T10:00:00Z"}
			],
			"citas_reservadas": [{"start": "2026-03-10T10:00:00Z", "end": "2026-03-10T10:30:00Z"}]
		}`)
	})

	av, err := c.GetAvailability(context.Background(), AvailabilityQuery{
		DoctorID: "3", ProcedureID: "7", StartDate: "2026-03-09", EndDate: "2026-04-05",
	})
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if len(av.OpenBlocks) != 2 {
		t.Fatalf("expected 2 valid blocks, got %+v", av.OpenBlocks)
	}
	if !av.OpenBlocks[1].Start.Equal(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("zone-less timestamp should be read in client location, got %s", av.OpenBlocks[1].Start)
	}
	if len(av.Booked) != 1 {
		t.Fatalf("expected 1 booking, got %+v", av.Booked)
	}
}

func TestGetPatientByEmail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/pacientes/by_email/ana%2Bdental@example.com/" && r.URL.Path != "/api/pacientes/by_email/ana+dental@example.com/" {
			t.Fatalf("unexpected path %s", r.URL.EscapedPath())
		}
		_, _ = io.WriteString(w, `{"id": 42, "user": {"email": "ana+dental@example.com"}}`)
	})
	p, err := c.GetPatientByEmail(context.Background(), "ana+dental@example.com")
	if err != nil {
		t.Fatalf("GetPatientByEmail: %v", err)
	}
	if p.ID != "42" {
		t.Fatalf("unexpected patient %+v", p)
	}
}

func TestGetPatientByEmail_NotFound(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
	})
	_, err := c.GetPatientByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected APIError 404, got %v", err)
	}
	if obs.seen[0].outcome != "error" {
		t.Fatalf("expected error outcome, got %+v", obs.seen)
	}
}

func TestCreateReservation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/reservas/" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["paciente_id"] != float64(42) || body["doctor_id"] != float64(3) || body["procedimiento_id"] != "ortho-1" {
			t.Fatalf("unexpected ids: %+v", body)
		}
		if body["fecha_hora"] != "2026-03-10T14:45:00Z" || body["duracion_min"] != float64(30) {
			t.Fatalf("unexpected slot: %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 900, "estado": "pendiente"}`)
	})

	loc := time.FixedZone("UTC-5", -5*3600)
	res, err := c.CreateReservation(context.Background(), CreateReservationRequest{
		PatientID: "42", DoctorID: "3", ProcedureID: "ortho-1",
		StartsAt: time.Date(2026, 3, 10, 9, 45, 0, 0, loc), DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if res.ID != "900" || res.Status != "pendiente" {
		t.Fatalf("unexpected reservation %+v", res)
	}
}

func TestUpdateReservation(t *testing.T) {
	var bodies []map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/reservas/900/" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		_, _ = io.WriteString(w, `{"id": 900}`)
	})
	if _, err := c.UpdateReservationStatus(context.Background(), "900", "confirmada"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := c.UpdateReservationNotes(context.Background(), "900", "revisar en 6 meses"); err != nil {
		t.Fatalf("notes: %v", err)
	}
	if bodies[0]["estado"] != "confirmada" || bodies[1]["notas_doctor"] != "revisar en 6 meses" {
		t.Fatalf("unexpected bodies: %+v", bodies)
	}
}

func TestWhoAmIUnauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 1000), http.StatusForbidden)
	})
	_, err := c.WhoAmI(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Body) > maxErrorBody {
		t.Fatalf("expected truncated body, got %d bytes", len(apiErr.Body))
	}
}

func TestWithTokenSourceDoesNotMutateOriginal(t *testing.T) {
	var seen []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"email": "a@example.com", "role": "admin"}`)
	})
	userClient := c.WithToken("user-token")
	if _, err := userClient.WhoAmI(context.Background()); err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if _, err := c.WhoAmI(context.Background()); err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if seen[0] != "Bearer user-token" || seen[1] != "Bearer tok-123" {
		t.Fatalf("unexpected auth headers: %v", seen)
	}
}

func TestMissingTokenSource(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ListDoctors(context.Background()); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := c.WithTokenSource(oauth2.StaticTokenSource(nil)).ListDoctors(context.Background()); err == nil {
		t.Fatal("expected token error for nil token")
	}
}

func TestClientCredentialsRequiresFields(t *testing.T) {
	if _, err := ClientCredentials(context.Background(), ClientCredentialsConfig{ClientID: "id"}); err == nil {
		t.Fatal("expected validation error")
	}
	ts, err := ClientCredentials(context.Background(), ClientCredentialsConfig{
		TokenURL: "https://idp.example.com/oauth/token", ClientID: "id", ClientSecret: "secret", Audience: "clinic-api",
	})
	if err != nil || ts == nil {
		t.Fatalf("expected token source, got %v", err)
	}
}

func TestIDMarshalKeepsNonCanonicalStrings(t *testing.T) {
	cases := map[ID]string{
		"42":   `42`,
		"-3":   `-3`,
		"007":  `"007"`,
		"+5":   `"+5"`,
		"abc":  `"abc"`,
		"":     `""`,
		" 12 ": `" 12 "`,
	}
	for id, want := range cases {
		got, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %q: %v", id, err)
		}
		if string(got) != want {
			t.Errorf("marshal %q = %s, want %s", id, got, want)
		}
	}
}

func TestAPIErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "ñ" + "resto"
	err := newAPIError("create_reservation", http.StatusBadRequest, []byte(body))
	if !utf8.ValidString(err.Body) {
		t.Fatalf("body is not valid UTF-8: %q", err.Body[len(err.Body)-4:])
	}
	if err.Body != strings.Repeat("a", maxErrorBody-1) {
		t.Fatalf("unexpected body length %d", len(err.Body))
	}

	short := newAPIError("create_reservation", http.StatusBadRequest, []byte("la cita ya está reservada"))
	if short.Body != "la cita ya está reservada" {
		t.Fatalf("short body altered: %q", short.Body)
	}
}
