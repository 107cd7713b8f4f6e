package handlers

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope every endpoint uses. Success responses
// carry data or message; error responses carry error and optionally
// message and details.
type Response struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteSuccess writes a success response carrying data
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// WriteMessage writes a success response carrying a message
func WriteMessage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{Success: true, Message: message})
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, statusCode int, err error, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   http.StatusText(statusCode),
		Message: err.Error(),
		Details: details,
	})
}
