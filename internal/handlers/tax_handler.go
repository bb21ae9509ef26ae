package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/services"
)

type TaxHandler struct {
	taxService *services.TaxService
	log        *zap.Logger
}

func NewTaxHandler(taxService *services.TaxService, log *zap.Logger) *TaxHandler {
	return &TaxHandler{
		taxService: taxService,
		log:        log.Named("tax.handler"),
	}
}

func (h *TaxHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.taxService.Dashboard(r.Context(), services.DashboardFilter{
		OMC:       q.Get("omc"),
		PaidBy:    q.Get("paid_by"),
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		AmountMin: q.Get("amount_min"),
		AmountMax: q.Get("amount_max"),
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithData(w, http.StatusOK, result)
}

type payTaxRequest struct {
	OrderID     flexID       `json:"order_id"`
	Amount      money.Amount `json:"amount"`
	Reference   string       `json:"reference" validate:"max=128"`
	PaidBy      string       `json:"paid_by" validate:"max=128"`
	PaymentDate string       `json:"payment_date"`
}

func (h *TaxHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	var request payTaxRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.taxService.PayOrder(r.Context(), services.PayOrderRequest{
		OrderID:     uint64(request.OrderID),
		Amount:      request.Amount.Decimal,
		Reference:   request.Reference,
		PaidBy:      request.PaidBy,
		PaymentDate: request.PaymentDate,
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "S-Tax payment recorded", result)
}

type addTaxRequest struct {
	Type        string       `json:"type" validate:"max=32"`
	Amount      money.Amount `json:"amount"`
	PaymentDate string       `json:"payment_date"`
	Reference   string       `json:"reference" validate:"max=128"`
	PaidBy      string       `json:"paid_by" validate:"max=128"`
}

func (h *TaxHandler) AddRecord(w http.ResponseWriter, r *http.Request) {
	var request addTaxRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.taxService.AddTaxRecord(r.Context(), services.AddTaxRequest{
		Type:        request.Type,
		Amount:      request.Amount.Decimal,
		PaymentDate: request.PaymentDate,
		Reference:   request.Reference,
		PaidBy:      request.PaidBy,
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusCreated, "Tax record added", record)
}
