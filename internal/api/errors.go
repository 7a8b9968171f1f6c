package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/idea-vending/vendsync/internal/command"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes, aligned with the sync layer's failure taxonomy.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeMissingCredentials = "missing_credentials"
	ErrCodeConfiguration      = "configuration_error"
	ErrCodeTimeout            = "timeout"
	ErrCodeNetwork            = "network_error"
	ErrCodePublish            = "publish_error"
	ErrCodeRateLimited        = "rate_limited"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDispatchError maps a command dispatch failure to an HTTP response.
//
// Failures after the inventory record was already saved upstream carry two
// distinct facts: the record is saved, and the machine has not received it.
// The message states both explicitly instead of a generic failure.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, command.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, mqtt.ErrMissingCredentials):
		writeError(w, http.StatusForbidden, ErrCodeMissingCredentials,
			"your account has no MQTT broker identity; machine synchronization is unavailable")

	case errors.Is(err, mqtt.ErrMissingBrokerURL):
		writeError(w, http.StatusInternalServerError, ErrCodeConfiguration,
			"MQTT broker URL is not configured; contact an administrator")

	case errors.Is(err, command.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited,
			"too many operations for this machine; wait a moment and retry")

	case errors.Is(err, mqtt.ErrConnectTimeout), errors.Is(err, mqtt.ErrAckTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout,
			"the record was saved, but the change has not reached the machine: the broker did not respond in time")

	case errors.Is(err, mqtt.ErrClosedPrematurely):
		writeError(w, http.StatusBadGateway, ErrCodeNetwork,
			"the record was saved, but the change has not reached the machine: the connection dropped before it was acknowledged")

	case errors.Is(err, mqtt.ErrPublishFailed), errors.Is(err, mqtt.ErrSubscribeFailed):
		writeError(w, http.StatusBadGateway, ErrCodePublish,
			"the record was saved, but the change has not reached the machine: the broker rejected the operation")

	case errors.Is(err, mqtt.ErrConnectionFailed):
		writeError(w, http.StatusBadGateway, ErrCodeNetwork,
			"the record was saved, but the change has not reached the machine: the broker is unreachable")

	default:
		writeInternalError(w, "machine synchronization failed")
	}
}
