package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/services"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorDataResponse is an error that still carries a body worth reading.
type ErrorDataResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Status: "error", Message: message})
}

func respondWithErrorData(w http.ResponseWriter, code int, message string, data any) {
	respondWithJSON(w, code, ErrorDataResponse{Status: "error", Message: message, Data: data})
}

func respondWithData(w http.ResponseWriter, code int, data any) {
	respondWithJSON(w, code, SuccessResponse{Status: "success", Data: data})
}

func respondWithMessage(w http.ResponseWriter, code int, message string, data any) {
	respondWithJSON(w, code, SuccessResponse{Status: "success", Message: message, Data: data})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"error","message":"Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// statusFor maps service error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrGone):
		return http.StatusGone
	case errors.Is(err, services.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes the user-facing message of a typed service
// error. Anything untyped is logged and hidden behind a generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logRequestFailure(r, log, err)
		respondWithError(w, code, "Internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

func logRequestFailure(r *http.Request, log *zap.Logger, err error) {
	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestID(r)),
		zap.Error(err))
}
