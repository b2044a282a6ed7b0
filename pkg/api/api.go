// Package api defines the wire contracts for the REST API and the shared
// response helpers. It decouples the API surface from the internal domain
// models.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standardized error body for API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success writes a JSON response with the given status code. A nil data
// writes headers only.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes a JSON error response with a consistent shape.
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
