package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx answer from the backend. Message is what the user
// should see.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	return &HTTPError{
		Method:  method,
		Path:    path,
		Status:  status,
		Message: extractMessage(status, body),
	}
}

// extractMessage prefers the body's "message", then "error", then falls
// back to "Error {status}: {statusText}".
func extractMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("Error %d: %s", status, http.StatusText(status))
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }
