package clinicapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID accepts numeric or string identifiers from the backend and keeps them as strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("clinicapi: invalid id %s", data)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits canonical integer ids as numbers so the backend receives
// its native type. Anything else, "007" included, stays a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		if canonical := strconv.FormatInt(n, 10); canonical == string(id) {
			return []byte(canonical), nil
		}
	}
	return json.Marshal(string(id))
}

// Procedure as served by GET /procedimientos/.
type Procedure struct {
	ID          ID     `json:"id"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion,omitempty"`
	DurationMin int    `json:"duracion_min"`
}

// Doctor as served by GET /doctores/.
type Doctor struct {
	ID        ID      `json:"id"`
	User      UserRef `json:"user"`
	Specialty string  `json:"especialidad"`
	Phone     string  `json:"telefono"`
}

// UserRef is the nested identity record the backend attaches to people.
type UserRef struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

// Patient as served by GET /pacientes/by_email/{email}/.
type Patient struct {
	ID   ID      `json:"id"`
	User UserRef `json:"user"`
}

// AvailabilityQuery selects the availability window for one doctor and procedure.
type AvailabilityQuery struct {
	DoctorID    string
	ProcedureID string
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
}

type interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type availabilityResponse struct {
	OpenBlocks []interval `json:"bloques_disponibles"`
	Booked     []interval `json:"citas_reservadas"`
}

// CreateReservationRequest is the body of POST /reservas/.
type CreateReservationRequest struct {
	PatientID       string
	DoctorID        string
	ProcedureID     string
	StartsAt        time.Time
	DurationMinutes int
}

type createReservationBody struct {
	PatientID   ID     `json:"paciente_id"`
	DoctorID    ID     `json:"doctor_id"`
	ProcedureID ID     `json:"procedimiento_id"`
	StartsAt    string `json:"fecha_hora"`
	DurationMin int    `json:"duracion_min"`
}

// Reservation as returned by the reservation endpoints.
type Reservation struct {
	ID          ID     `json:"id"`
	PatientID   ID     `json:"paciente_id,omitempty"`
	DoctorID    ID     `json:"doctor_id,omitempty"`
	ProcedureID ID     `json:"procedimiento_id,omitempty"`
	StartsAt    string `json:"fecha_hora,omitempty"`
	DurationMin int    `json:"duracion_min,omitempty"`
	Status      string `json:"estado,omitempty"`
	DoctorNotes string `json:"notas_doctor,omitempty"`
}

// Identity is the role lookup result of GET /whoami/.
type Identity struct {
	ID    ID     `json:"id,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "paciente"
)
