package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

type BankService struct {
	banks    repositories.BankRepository
	payments repositories.PaymentRepository
	taxes    repositories.TaxRepository
	log      *zap.Logger
}

func NewBankService(
	banks repositories.BankRepository,
	payments repositories.PaymentRepository,
	taxes repositories.TaxRepository,
	log *zap.Logger,
) *BankService {
	return &BankService{
		banks:    banks,
		payments: payments,
		taxes:    taxes,
		log:      log.Named("bank.service"),
	}
}

type BankProfile struct {
	Bank          *models.BankAccount `json:"bank"`
	AccountLast4  string              `json:"account_last4"`
	StartDate     string              `json:"start_date,omitempty"`
	EndDate       string              `json:"end_date,omitempty"`
	Receipts      []models.Payment    `json:"receipts"`
	TotalReceived decimal.Decimal     `json:"total_received"`
	TaxPayments   []models.TaxRecord  `json:"tax_payments"`
}

// Profile lists confirmed receipts credited to the account and the S-Tax
// payments made from it. The date range applies only when both ends parse.
func (s *BankService) Profile(ctx context.Context, bankID uint64, start, end string) (*BankProfile, error) {
	if bankID == 0 {
		return nil, validationError("Invalid bank id")
	}
	bank, err := s.banks.GetByID(ctx, bankID)
	if err != nil {
		return nil, lookupError(err, "Bank account not found", "failed to load bank account")
	}

	filter := repositories.BankReceiptFilter{
		BankName:     bank.BankName,
		AccountLast4: bank.Last4(),
	}
	if strings.TrimSpace(start) != "" && strings.TrimSpace(end) != "" {
		from, errFrom := reconcile.ParseDate(start)
		to, errTo := reconcile.ParseDate(end)
		if errFrom == nil && errTo == nil {
			filter.From, filter.To = &from, &to
		}
	}

	receipts, err := s.payments.ListConfirmedForBank(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	total := decimal.Zero
	for _, p := range receipts {
		total = total.Add(p.Amount)
	}

	taxes, err := s.taxes.List(ctx, repositories.TaxRecordFilter{SourceBankID: &bankID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tax payments: %w", err)
	}

	return &BankProfile{
		Bank:          bank,
		AccountLast4:  bank.Last4(),
		StartDate:     start,
		EndDate:       end,
		Receipts:      receipts,
		TotalReceived: total.Round(2),
		TaxPayments:   taxes,
	}, nil
}
