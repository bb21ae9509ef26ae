package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
	"fuel-reconciliation-service/internal/validation"
)

type PaymentIngestionService struct {
	payments repositories.PaymentRepository
	validate *validator.Validate
	clock    clock.Clock
	log      *zap.Logger
}

func NewPaymentIngestionService(payments repositories.PaymentRepository, clk clock.Clock, log *zap.Logger) *PaymentIngestionService {
	return &PaymentIngestionService{
		payments: payments,
		validate: validation.New(),
		clock:    clk,
		log:      log.Named("payment.ingestion"),
	}
}

// OrderRef is an order reference as submitted: a JSON number is the typed
// id, a JSON string is kept in its string form.
type OrderRef struct {
	OID *uint64
	Key *string
}

func (r *OrderRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = OrderRef{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = OrderRef{}
			return nil
		}
		*r = OrderRef{Key: &s}
		return nil
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order reference %s", b)
	}
	*r = OrderRef{OID: &id}
	return nil
}

func (r OrderRef) MarshalJSON() ([]byte, error) {
	switch {
	case r.OID != nil:
		return json.Marshal(*r.OID)
	case r.Key != nil:
		return json.Marshal(*r.Key)
	default:
		return []byte("null"), nil
	}
}

type PaymentInput struct {
	OrderID      OrderRef     `json:"order_id"`
	ClientID     string       `json:"client_id"`
	OMC          string       `json:"omc"`
	BankName     string       `json:"bank_name" validate:"required"`
	AccountLast4 string       `json:"account_last4" validate:"required,len=4,numeric"`
	Amount       money.Amount `json:"amount"`
	Reference    string       `json:"reference"`
	Status       string       `json:"status" validate:"omitempty,oneof=pending confirmed rejected"`
	Date         string       `json:"date"`
}

type IngestionResult struct {
	Success      bool           `json:"success"`
	RecordsCount int            `json:"records_count"`
	Errors       []string       `json:"errors,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// Ingest validates every receipt and stores the batch only when all of them
// are valid.
func (s *PaymentIngestionService) Ingest(ctx context.Context, inputs []PaymentInput) (*IngestionResult, error) {
	result := &IngestionResult{
		Success: true,
		Details: make(map[string]any),
	}
	if len(inputs) == 0 {
		return nil, validationError("No payments supplied")
	}

	now := s.clock.Now()
	payments := make([]*models.Payment, 0, len(inputs))
	for i, in := range inputs {
		p, err := s.toPayment(in, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid payment %d: %v", i+1, err))
			continue
		}
		payments = append(payments, p)
	}

	result.Success = len(result.Errors) == 0
	if result.Success {
		if err := s.payments.InsertAll(ctx, payments); err != nil {
			return nil, fmt.Errorf("failed to store payments: %w", err)
		}
		result.RecordsCount = len(payments)
	}

	result.Details["total_records"] = len(inputs)
	result.Details["successful"] = result.RecordsCount
	result.Details["failed"] = len(result.Errors)

	s.log.Info("payments ingested",
		zap.Int("total", len(inputs)),
		zap.Int("stored", result.RecordsCount),
		zap.Int("failed", len(result.Errors)))
	return result, nil
}

func (s *PaymentIngestionService) toPayment(in PaymentInput, now time.Time) (*models.Payment, error) {
	in.BankName = strings.TrimSpace(in.BankName)
	in.AccountLast4 = strings.TrimSpace(in.AccountLast4)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := s.validate.Struct(in); err != nil {
		return nil, validation.Describe(err)
	}

	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, errors.New("amount must be greater than 0")
	}

	date := now
	if strings.TrimSpace(in.Date) != "" {
		t, err := reconcile.ParseDate(in.Date)
		if err != nil {
			return nil, errors.New("date must be YYYY-MM-DD")
		}
		date = t
	}

	status := in.Status
	if status == "" {
		status = models.PaymentPending
	}

	return &models.Payment{
		OrderOID:     in.OrderID.OID,
		OrderKey:     in.OrderID.Key,
		ClientID:     strings.TrimSpace(in.ClientID),
		OMC:          strings.TrimSpace(in.OMC),
		BankName:     in.BankName,
		AccountLast4: in.AccountLast4,
		Amount:       amount,
		Reference:    strings.TrimSpace(in.Reference),
		Status:       status,
		Date:         date,
	}, nil
}

// Confirm moves a pending receipt to confirmed so it counts toward balances.
func (s *PaymentIngestionService) Confirm(ctx context.Context, id uint64) (*models.Payment, error) {
	if id == 0 {
		return nil, validationError("Invalid payment id")
	}
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Payment not found", "failed to load payment")
	}

	switch strings.ToLower(p.Status) {
	case models.PaymentConfirmed:
		return nil, conflictError("Payment already confirmed")
	case models.PaymentRejected:
		return nil, conflictError("Rejected payments cannot be confirmed")
	}

	ok, err := s.payments.UpdateStatus(ctx, id, p.Status, models.PaymentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	if !ok {
		return nil, conflictError("Payment status changed, reload and try again")
	}

	p.Status = models.PaymentConfirmed
	s.log.Info("payment confirmed", zap.Uint64("payment_id", id))
	return p, nil
}
