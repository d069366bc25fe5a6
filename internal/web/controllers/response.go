package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/podvault/podvault/internal/orchestrator"
	"github.com/podvault/podvault/internal/store"
)

type ErrorResponse struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteErrorResponse maps engine errors onto HTTP statuses and writes
// the standard error envelope.
func WriteErrorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var busy *orchestrator.BusyError
	switch {
	case errors.As(err, &busy),
		errors.Is(err, orchestrator.ErrBatchInProgress):
		status = http.StatusConflict
	case errors.Is(err, store.ErrBatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrBatchActive),
		errors.Is(err, store.ErrNoTargets),
		errors.Is(err, orchestrator.ErrBatchEmpty):
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Status:  status,
		Success: false,
		Message: err.Error(),
	})
}

// WriteJSONResponse writes payload with a 200 status.
func WriteJSONResponse(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
