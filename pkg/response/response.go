// Package response renders the JSON envelope shared by every HTTP handler.
package response

import (
	"encoding/json"
	"net/http"
)

// APIResponse wraps every reply. Status is "success" or "error"; Data
// carries the payload on success and Message explains failures.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func write(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON replies with a success envelope wrapping data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Status: "success", Data: data})
}

// Error replies with an error envelope carrying msg.
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{Status: "error", Message: msg})
}
