package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/quill/internal/models"
)

// Envelope status values
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
	StatusBusy       = "busy"
	StatusOK         = "ok"
)

// Envelope is the body of every API response
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData is the data payload of an error envelope
type ErrorData struct {
	JobID     string   `json:"job_id,omitempty"`
	ErrorCode string   `json:"error_code"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteEnvelope writes {status, message, data}
func WriteEnvelope(w http.ResponseWriter, statusCode int, status, message string, data interface{}) error {
	return WriteJSON(w, statusCode, Envelope{Status: status, Message: message, Data: data})
}

// WriteError writes an error envelope carrying an error code
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details ...string) error {
	return WriteEnvelope(w, statusCode, StatusError, message, ErrorData{
		ErrorCode: code,
		Message:   message,
		Details:   details,
	})
}

// WriteUnauthorized rejects a request with a missing or wrong API key
func WriteUnauthorized(w http.ResponseWriter) error {
	return WriteError(w, http.StatusUnauthorized, models.ErrCodeInvalidAPIKey, "Invalid or missing API key")
}
