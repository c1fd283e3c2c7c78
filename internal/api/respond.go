package api

import (
	"encoding/json"
	"net/http"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeViolations(w http.ResponseWriter, v appointment.Violations) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:      "validation_failed",
		Violations: v,
	})
}
