package utils

import (
	"encoding/json"
	"net/http"

	"schooldir/pkg/logger"
)

const (
	// Request Error Codes
	ErrRequestInvalid           = "request/invalid_parameters"
	ErrRequestNotFound          = "request/not_found"
	ErrRequestRateLimitExceeded = "request/rate_limit_exceeded"
	ErrRequestBodyTooLarge      = "request/body_too_large"
	ErrRequestMalformed         = "request/malformed_body"

	// Server Error Codes
	ErrServerInternal = "server/internal_error"
	ErrServerPanic    = "server/panic"
)

// Envelope is the uniform response wrapper shared by every JSON endpoint.
// Exactly one of Data or Error is set.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// WriteError sends a failure envelope.
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, Envelope{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// WriteData sends a success envelope around data.
func WriteData(w http.ResponseWriter, status int, data interface{}, message string) {
	WriteJSON(w, status, Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.LogError("Failed to encode response: %v", err)
	}
}
