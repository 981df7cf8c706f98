package handler

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response body. Every addon endpoint answers 200 with an
// envelope; failures are expressed as empty envelopes, so there is no error
// payload shape.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	}
}
