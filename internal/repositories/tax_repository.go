package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/reconcile"
)

// taxTypeClause matches record types that normalize to a tax type.
const taxTypeClause = "LOWER(REPLACE(REPLACE(REPLACE(type, '_', ''), '-', ''), ' ', '')) IN ?"

type TaxRepository interface {
	Insert(ctx context.Context, rec *models.TaxRecord) error
	PaidTotal(ctx context.Context, orderID uint64) (decimal.Decimal, error)
	PaidTotals(ctx context.Context, orderIDs []uint64) (map[uint64]decimal.Decimal, error)
	List(ctx context.Context, filter TaxRecordFilter) ([]models.TaxRecord, error)
	TotalsByOMC(ctx context.Context) ([]OMCTotal, error)
}

// TaxRecordFilter narrows tax payments. To is inclusive to the end of its day.
type TaxRecordFilter struct {
	OMC          string
	PaidBy       string
	From         *time.Time
	To           *time.Time
	MinAmount    *decimal.Decimal
	MaxAmount    *decimal.Decimal
	SourceBankID *uint64
}

type OMCTotal struct {
	OMC   string          `gorm:"column:omc" json:"omc"`
	Total decimal.Decimal `gorm:"column:total" json:"total"`
}

type taxRepository struct {
	db *gorm.DB
}

func NewTaxRepository(db *gorm.DB) TaxRepository {
	return &taxRepository{db: db}
}

func (r *taxRepository) Insert(ctx context.Context, rec *models.TaxRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *taxRepository) taxRecords(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.TaxRecord{}).Where(taxTypeClause, reconcile.TaxTypeKeys)
}

// PaidTotal sums tax payments referencing the order by id or by its string form.
func (r *taxRepository) PaidTotal(ctx context.Context, orderID uint64) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := r.taxRecords(ctx).
		Select("SUM(amount)").
		Where("(order_oid = ? OR order_key = ?)", orderID, strconv.FormatUint(orderID, 10)).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}

type orderRefAmount struct {
	OrderOID *uint64         `gorm:"column:order_oid"`
	OrderKey *string         `gorm:"column:order_key"`
	Amount   decimal.Decimal `gorm:"column:amount"`
}

// PaidTotals is PaidTotal for many orders in one query. Orders without
// payments are absent from the map.
func (r *taxRepository) PaidTotals(ctx context.Context, orderIDs []uint64) (map[uint64]decimal.Decimal, error) {
	totals := make(map[uint64]decimal.Decimal, len(orderIDs))
	if len(orderIDs) == 0 {
		return totals, nil
	}

	var rows []orderRefAmount
	err := r.taxRecords(ctx).
		Select("order_oid, order_key, amount").
		Where("(order_oid IN ? OR order_key IN ?)", orderIDs, orderKeys(orderIDs)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	want := idSet(orderIDs)
	for _, row := range rows {
		id, ok := resolveOrderRef(row.OrderOID, row.OrderKey, want)
		if !ok {
			continue
		}
		totals[id] = totals[id].Add(row.Amount)
	}
	for id, v := range totals {
		totals[id] = v.Round(2)
	}
	return totals, nil
}

func (r *taxRepository) List(ctx context.Context, filter TaxRecordFilter) ([]models.TaxRecord, error) {
	q := r.taxRecords(ctx)
	if filter.OMC != "" {
		q = q.Where("omc = ?", filter.OMC)
	}
	if filter.PaidBy != "" {
		q = q.Where("LOWER(paid_by) LIKE ?", "%"+strings.ToLower(filter.PaidBy)+"%")
	}
	if filter.From != nil {
		q = q.Where("payment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("payment_date < ?", filter.To.AddDate(0, 0, 1))
	}
	if filter.MinAmount != nil {
		q = q.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		q = q.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.SourceBankID != nil {
		q = q.Where("source_bank_id = ?", *filter.SourceBankID)
	}

	var records []models.TaxRecord
	err := q.Order("payment_date DESC").Order("id DESC").Find(&records).Error
	return records, err
}

// TotalsByOMC returns positive per-OMC tax totals, largest first.
func (r *taxRepository) TotalsByOMC(ctx context.Context) ([]OMCTotal, error) {
	var rows []OMCTotal
	err := r.taxRecords(ctx).
		Select("omc, SUM(amount) AS total").
		Group("omc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, row := range rows {
		row.Total = row.Total.Round(2)
		if row.Total.IsPositive() {
			out = append(out, row)
		}
	}
	sortOMCTotals(out)
	return out, nil
}
