package api

import (
	"encoding/json"
	"net/http"

	"github.com/ajayykmr/sms-forwarder/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, description, message string) {
	writeJSON(w, status, models.ErrorResponse{
		ErrorCode:   status,
		Description: description,
		Message:     message,
	})
}

func writeValidation(w http.ResponseWriter, errs []models.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{
		ErrorCode:        http.StatusUnprocessableEntity,
		Description:      "Unprocessable Entity",
		Message:          "Request validation failed",
		ValidationErrors: errs,
	})
}
