package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/models"
)

type PaymentRepository interface {
	Insert(ctx context.Context, p *models.Payment) error
	InsertAll(ctx context.Context, payments []*models.Payment) error
	GetByID(ctx context.Context, id uint64) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error)
	ListConfirmedForBank(ctx context.Context, filter BankReceiptFilter) ([]models.Payment, error)
	ConfirmedTotals(ctx context.Context, orderIDs []uint64, clientID string) (map[uint64]decimal.Decimal, error)
	EmbeddedTotals(ctx context.Context, orderIDs []uint64) (map[uint64]decimal.Decimal, error)
}

// BankReceiptFilter selects receipts credited to one account. The date range
// applies only when both bounds are set; To is inclusive.
type BankReceiptFilter struct {
	BankName     string
	AccountLast4 string
	From         *time.Time
	To           *time.Time
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Insert(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// InsertAll writes a batch of receipts; either all of them are stored or none.
func (r *paymentRepository) InsertAll(ctx context.Context, payments []*models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range payments {
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint64) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus moves a payment from one status to another and reports
// whether the payment was still in the expected status.
func (r *paymentRepository) UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) ListConfirmedForBank(ctx context.Context, filter BankReceiptFilter) ([]models.Payment, error) {
	q := r.db.WithContext(ctx).
		Where("bank_name = ? AND account_last4 = ? AND LOWER(status) = ?", filter.BankName, filter.AccountLast4, models.PaymentConfirmed)
	if filter.From != nil && filter.To != nil {
		q = q.Where("date >= ? AND date < ?", *filter.From, filter.To.AddDate(0, 0, 1))
	}

	var payments []models.Payment
	err := q.Order("date DESC").Order("id DESC").Find(&payments).Error
	return payments, err
}

// ConfirmedTotals sums confirmed receipts per order, matching typed and
// string references. A non-empty clientID narrows to that client.
func (r *paymentRepository) ConfirmedTotals(ctx context.Context, orderIDs []uint64, clientID string) (map[uint64]decimal.Decimal, error) {
	totals := make(map[uint64]decimal.Decimal, len(orderIDs))
	if len(orderIDs) == 0 {
		return totals, nil
	}

	q := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("order_oid, order_key, amount").
		Where("LOWER(status) = ?", models.PaymentConfirmed).
		Where("(order_oid IN ? OR order_key IN ?)", orderIDs, orderKeys(orderIDs))
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}

	var rows []orderRefAmount
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	want := idSet(orderIDs)
	for _, row := range rows {
		if id, ok := resolveOrderRef(row.OrderOID, row.OrderKey, want); ok {
			totals[id] = totals[id].Add(row.Amount)
		}
	}
	return totals, nil
}

type orderAmount struct {
	OrderID uint64          `gorm:"column:order_id"`
	Total   decimal.Decimal `gorm:"column:total"`
}

// EmbeddedTotals sums payments recorded on the orders themselves.
func (r *paymentRepository) EmbeddedTotals(ctx context.Context, orderIDs []uint64) (map[uint64]decimal.Decimal, error) {
	totals := make(map[uint64]decimal.Decimal, len(orderIDs))
	if len(orderIDs) == 0 {
		return totals, nil
	}

	var rows []orderAmount
	err := r.db.WithContext(ctx).
		Model(&models.EmbeddedPayment{}).
		Select("order_id, SUM(amount) AS total").
		Where("order_id IN ?", orderIDs).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		totals[row.OrderID] = row.Total.Round(2)
	}
	return totals, nil
}
