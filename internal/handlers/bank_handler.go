package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/services"
)

type BankHandler struct {
	bankService       *services.BankService
	allocationService *services.AllocationService
	log               *zap.Logger
}

func NewBankHandler(bankService *services.BankService, allocationService *services.AllocationService, log *zap.Logger) *BankHandler {
	return &BankHandler{
		bankService:       bankService,
		allocationService: allocationService,
		log:               log.Named("bank.handler"),
	}
}

func (h *BankHandler) Profile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profile, err := h.bankService.Profile(r.Context(), pathID(r, "bank_id"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithData(w, http.StatusOK, profile)
}

func (h *BankHandler) OMCDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.allocationService.OMCDebts(r.Context(), pathID(r, "bank_id"))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithData(w, http.StatusOK, debts)
}

type payOMCRequest struct {
	BankID      flexID       `json:"bank_id"`
	OMC         string       `json:"omc" validate:"max=128"`
	Amount      money.Amount `json:"amount"`
	Reference   string       `json:"reference" validate:"max=128"`
	PaidBy      string       `json:"paid_by" validate:"max=128"`
	PaymentDate string       `json:"payment_date"`
}

// PayOMC spreads a bank payment over the OMC's unpaid orders, oldest first.
func (h *BankHandler) PayOMC(w http.ResponseWriter, r *http.Request) {
	var request payOMCRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.allocationService.Allocate(r.Context(), services.AllocateRequest{
		BankID:      uint64(request.BankID),
		OMC:         request.OMC,
		Amount:      request.Amount.Decimal,
		Reference:   request.Reference,
		PaidBy:      request.PaidBy,
		PaymentDate: request.PaymentDate,
	})
	if err != nil && outcome != nil && len(outcome.Allocated) > 0 {
		logRequestFailure(r, h.log, err)
		respondWithErrorData(w, http.StatusInternalServerError,
			"Allocation stopped part way, only the listed orders were paid", outcome)
		return
	}
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Payment allocated", outcome)
}
