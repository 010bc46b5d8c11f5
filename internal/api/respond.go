package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/operations"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := models.ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps the ledger's error taxonomy onto status codes.
// Store faults never leak their details to the caller.
func writeLedgerError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientBalanceError
	var validation *ledger.ValidationError
	var operand *operations.OperandError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, models.InsufficientBalanceResponse{
			Error:          "Insufficient balance",
			Required:       insufficient.Required,
			CurrentBalance: insufficient.Current,
		})
	case errors.As(err, &operand):
		writeError(w, http.StatusBadRequest, operand.Message, nil)
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "Invalid request", validation)
	case errors.Is(err, operations.ErrUpstream):
		writeError(w, http.StatusBadGateway, "Failed to generate random string", nil)
	case errors.Is(err, ledger.ErrExecution):
		writeError(w, http.StatusInternalServerError, "Operation failed", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
