package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/reconcile"
)

var ErrNotFound = errors.New("record not found")

// taxEligibleClause mirrors reconcile.IsTaxEligible.
const taxEligibleClause = "(order_type IN ('s_tax','tax','combo') OR s_tax > 0 OR s_tax_alt > 0)"

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	ListTaxEligible(ctx context.Context, omc string) ([]*models.Order, error)
	ListTaxEligibleNewestFirst(ctx context.Context) ([]*models.Order, error)
	ListApproved(ctx context.Context, filter ApprovedFilter) ([]*models.Order, error)
	ListByClient(ctx context.Context, clientID string) ([]*models.Order, error)
	DistinctProducts(ctx context.Context) ([]string, error)
	SaveApproval(ctx context.Context, o *models.Order, embedded *models.EmbeddedPayment) error
	UpdateTaxPayment(ctx context.Context, id uint64, expectedPaid decimal.Decimal, upd TaxPaymentUpdate) (bool, error)
	UpdateDeliveryStatus(ctx context.Context, id uint64, tts, npa *string, history *models.DeliveryHistory) error
}

// ApprovedFilter narrows approved orders. Zero values do not filter.
type ApprovedFilter struct {
	Window  reconcile.Window
	Product string
	BDCName string
}

// TaxPaymentUpdate is the cached tax state written after a payment.
type TaxPaymentUpdate struct {
	PaidAmount decimal.Decimal
	Status     string
	PaidAt     time.Time
	Reference  *string
	PaidBy     *string
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListTaxEligible returns eligible orders oldest first. An empty omc lists all.
func (r *orderRepository) ListTaxEligible(ctx context.Context, omc string) ([]*models.Order, error) {
	var orders []*models.Order
	q := r.db.WithContext(ctx).Where(taxEligibleClause)
	if omc != "" {
		q = q.Where("omc = ?", omc)
	}
	err := q.Order("ordered_at ASC").Order("id ASC").Find(&orders).Error
	return orders, err
}

// ListTaxEligibleNewestFirst returns every eligible order whatever its cached
// tax status; callers decide paid from the records.
func (r *orderRepository) ListTaxEligibleNewestFirst(ctx context.Context) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where(taxEligibleClause).
		Order("ordered_at DESC").
		Order("id DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListApproved(ctx context.Context, filter ApprovedFilter) ([]*models.Order, error) {
	var orders []*models.Order
	q := r.db.WithContext(ctx).Where("status = ?", models.OrderStatusApproved)
	if filter.Window.Start != nil {
		q = q.Where("ordered_at >= ?", *filter.Window.Start)
	}
	if filter.Window.End != nil {
		q = q.Where("ordered_at < ?", *filter.Window.End)
	}
	if filter.Product != "" {
		q = q.Where("product = ?", filter.Product)
	}
	if filter.BDCName != "" {
		q = q.Where("bdc_name = ?", filter.BDCName)
	}
	err := q.Order("ordered_at DESC").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListByClient(ctx context.Context, clientID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("ordered_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) DistinctProducts(ctx context.Context) ([]string, error) {
	var products []string
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("product <> ''").
		Distinct().
		Order("product ASC").
		Pluck("product", &products).Error
	return products, err
}

// SaveApproval writes the financial snapshot and, when present, the embedded
// payment captured with it.
func (r *orderRepository) SaveApproval(ctx context.Context, o *models.Order, embedded *models.EmbeddedPayment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]any{
			"omc":                   o.OMC,
			"bdc_name":              o.BDCName,
			"depot":                 o.Depot,
			"shareholder":           o.Shareholder,
			"p_bdc_omc":             o.PBDCOMC,
			"s_bdc_omc":             o.SBDCOMC,
			"p_tax":                 o.PTax,
			"s_tax":                 o.STax,
			"order_type":            o.OrderType,
			"total_debt":            o.TotalDebt,
			"margin":                o.Margin,
			"margin_price":          o.MarginPrice,
			"margin_tax":            o.MarginTax,
			"total_margin_per_unit": o.TotalMarginPerUnit,
			"expected":              o.Expected,
			"returns_total":         o.ReturnsTotal,
			"due_date":              o.DueDate,
			"status":                o.Status,
			"delivery_status":       o.DeliveryStatus,
		}).Error
		if err != nil {
			return err
		}
		if embedded != nil {
			return tx.Create(embedded).Error
		}
		return nil
	})
}

// UpdateTaxPayment is a compare-and-set on the cached paid amount. It reports
// false when another writer changed the order first.
func (r *orderRepository) UpdateTaxPayment(ctx context.Context, id uint64, expectedPaid decimal.Decimal, upd TaxPaymentUpdate) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND tax_paid_amount = ?", id, expectedPaid).
		Updates(map[string]any{
			"tax_paid_amount":    upd.PaidAmount,
			"tax_payment_status": upd.Status,
			"tax_paid_at":        upd.PaidAt,
			"tax_reference":      upd.Reference,
			"tax_paid_by":        upd.PaidBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) UpdateDeliveryStatus(ctx context.Context, id uint64, tts, npa *string, history *models.DeliveryHistory) error {
	fields := map[string]any{}
	if tts != nil {
		fields["tts_status"] = *tts
	}
	if npa != nil {
		fields["npa_status"] = *npa
	}
	if len(fields) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		if history != nil {
			return tx.Create(history).Error
		}
		return nil
	})
}
