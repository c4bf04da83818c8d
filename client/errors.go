package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when credential recovery is exhausted and
// the session has been torn down. By the time a caller sees this error the
// auth-failure handler has already run.
var ErrSessionExpired = errors.New("session expired")

// fallbackErrorMessage is the last-resort message shown when neither the
// API response body nor the transport error carries anything readable.
const fallbackErrorMessage = "request failed, please try again"

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// isAuthStatus reports whether a status code implicates stale credentials.
func (e *APIError) isAuthStatus() bool {
	return e.Status == 401 || e.Status == 403
}

// errorMessage extracts a readable message from an error response.
// Preference order: structured API body ("message" then "error" field),
// then the transport error text, then a hardcoded fallback. Callers can
// rely on the result never being empty.
func errorMessage(body []byte, transportErr error) string {
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
	if transportErr != nil && transportErr.Error() != "" {
		return transportErr.Error()
	}
	return fallbackErrorMessage
}
