package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/services"
)

type PaymentHandler struct {
	ingestionService *services.PaymentIngestionService
	log              *zap.Logger
}

func NewPaymentHandler(ingestionService *services.PaymentIngestionService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		ingestionService: ingestionService,
		log:              log.Named("payment.handler"),
	}
}

func (h *PaymentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var payments []services.PaymentInput
	if err := decodeJSON(w, r, &payments); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ingestionService.Ingest(r.Context(), payments)
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}

	if !result.Success {
		respondWithErrorData(w, http.StatusUnprocessableEntity, "No payments stored, fix the invalid entries and resend", result)
		return
	}
	respondWithData(w, http.StatusCreated, result)
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ingestionService.Confirm(r.Context(), pathID(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Payment confirmed", payment)
}
