package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corebank/ledger-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var mismatch *domain.ErrCurrencyMismatch
	var insufficientFunds *domain.ErrInsufficientFunds
	var inactive *domain.ErrInactiveAccount
	var sameAccount *domain.ErrSameAccount
	var lockTimeout *domain.ErrLockTimeout

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &mismatch):
		logger.Debug("currency mismatch", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficientFunds):
		logger.Warn("insufficient funds",
			zap.String("account_id", insufficientFunds.AccountID),
			zap.String("available", insufficientFunds.Available),
			zap.String("required", insufficientFunds.Required),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &inactive):
		logger.Warn("inactive account", zap.String("account_id", inactive.AccountID))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &sameAccount):
		logger.Debug("self transfer rejected", zap.String("account_id", sameAccount.AccountID))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &lockTimeout):
		logger.Error("account lock timeout", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Debug("request abandoned", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
