package clinicapi

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("clinicapi: not found")

	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("clinicapi: unauthorized")

	// ErrMissingToken is returned when no bearer token source is configured.
	ErrMissingToken = errors.New("clinicapi: missing token source")
)

const maxErrorBody = 300

// APIError is a non-2xx response from the clinic backend.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicapi: %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Is lets callers match status classes with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

func newAPIError(op string, status int, body []byte) *APIError {
	msg := string(body)
	if len(msg) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n]
	}
	return &APIError{Operation: op, StatusCode: status, Body: msg}
}
