package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondWithError sends a JSON error response using the APIError model.
func RespondWithError(w http.ResponseWriter, apiErr APIError) {
	RespondWithJSON(w, apiErr.StatusCode, apiErr)
}

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// headers are already sent; nothing left but to log
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
