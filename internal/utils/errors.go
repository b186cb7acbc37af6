package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	// ErrConfiguration means a required secret or setting is absent. The
	// public message must never reveal which one.
	ErrConfiguration = errors.New("configuration_error")

	// ErrUpstreamProtocol means the identification provider's response
	// violated its documented shape. Never coerced, never retried here.
	ErrUpstreamProtocol = errors.New("upstream_protocol_error")

	// ErrAttestationInvalid covers missing, malformed, or replayed
	// attestation tokens.
	ErrAttestationInvalid = errors.New("attestation_invalid")
)

// AppError is the structured error handed from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
