package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

// embeddedPaymentTypes capture a purchase-price payment on approval.
var embeddedPaymentTypes = map[string]bool{
	"cash":         true,
	"from account": true,
	"credit":       true,
}

type OrderService struct {
	orders repositories.OrderRepository
	clock  clock.Clock
	log    *zap.Logger
}

func NewOrderService(orders repositories.OrderRepository, clk clock.Clock, log *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		clock:  clk,
		log:    log.Named("order.service"),
	}
}

type CreateOrderRequest struct {
	ClientID      string
	OMC           string
	BDCName       string
	Product       string
	Region        string
	VehicleNumber string
	DriverName    string
	DriverPhone   string
	Quantity      decimal.Decimal
	OrderedAt     string
}

// Create stores a pending order with a fresh short reference.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, validationError("Client id is required")
	}
	if strings.TrimSpace(req.Product) == "" {
		return nil, validationError("Product is required")
	}
	if !req.Quantity.IsPositive() {
		return nil, validationError("Quantity must be greater than 0")
	}

	orderedAt := s.clock.Now()
	if strings.TrimSpace(req.OrderedAt) != "" {
		t, err := reconcile.ParseDate(req.OrderedAt)
		if err != nil {
			return nil, validationError("Invalid order date")
		}
		orderedAt = t
	}

	o := &models.Order{
		OrderRef:       newOrderRef(),
		ClientID:       strings.TrimSpace(req.ClientID),
		OMC:            strings.TrimSpace(req.OMC),
		BDCName:        strings.TrimSpace(req.BDCName),
		Product:        strings.TrimSpace(req.Product),
		Region:         strings.TrimSpace(req.Region),
		VehicleNumber:  strings.TrimSpace(req.VehicleNumber),
		DriverName:     strings.TrimSpace(req.DriverName),
		DriverPhone:    strings.TrimSpace(req.DriverPhone),
		Quantity:       req.Quantity.Round(2),
		Status:         models.OrderStatusPending,
		DeliveryStatus: "pending",
		TaxPaidAmount:  decimal.Zero,
		OrderedAt:      orderedAt,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return o, nil
}

func newOrderRef() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
}

// ApproveRequest carries the approval form. Rates are raw strings; blank
// means not supplied.
type ApproveRequest struct {
	OrderType   string
	OMC         string
	BDCName     string
	Depot       string
	PBDCOMC     string
	SBDCOMC     string
	PTax        string
	STax        string
	DueDate     string
	PaymentType string
	Shareholder string
}

type ApprovalResult struct {
	Order           *models.Order           `json:"order"`
	EmbeddedPayment *models.EmbeddedPayment `json:"embedded_payment,omitempty"`
}

// Approve snapshots the order's financial fields from the submitted rates.
// Nothing is read from a price catalog; the snapshot is final.
func (s *OrderService) Approve(ctx context.Context, orderID uint64, req ApproveRequest) (*ApprovalResult, error) {
	mode := models.OrderTypeCombo
	if strings.TrimSpace(req.OrderType) != "" {
		mode = reconcile.NormalizeOrderType(req.OrderType)
	}
	omc := strings.TrimSpace(req.OMC)
	depot := strings.TrimSpace(req.Depot)
	bdc := strings.TrimSpace(req.BDCName)

	if omc == "" || depot == "" {
		return nil, validationError("OMC and DEPOT are required.")
	}
	if mode != models.OrderTypeTax && bdc == "" {
		return nil, validationError("BDC is required for this order type.")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "Order not found", "failed to load order")
	}
	if order.Status == models.OrderStatusApproved {
		return nil, conflictError("Order is already approved")
	}

	p := money.ParseOptional(req.PBDCOMC)
	sale := money.ParseOptional(req.SBDCOMC)
	pTax := money.ParseOptional(req.PTax)
	sTax := money.ParseOptional(req.STax)

	switch mode {
	case models.OrderTypeSale:
		if !sale.Valid {
			return nil, validationError("S-BDC is required for S-BDC type.")
		}
	case models.OrderTypeTax:
		if !sTax.Valid {
			return nil, validationError("S-Tax is required for S-Tax type.")
		}
	case models.OrderTypeCombo:
		if !sale.Valid || !sTax.Valid {
			return nil, validationError("S-BDC and S-Tax are required for Combo type.")
		}
	default:
		return nil, validationError("Invalid order type.")
	}

	var dueDate *time.Time
	if strings.TrimSpace(req.DueDate) != "" {
		t, err := reconcile.ParseDate(req.DueDate)
		if err != nil {
			return nil, validationError("Invalid date format")
		}
		dueDate = &t
	}

	q := order.Quantity
	marginPrice := difference(sale, p)
	marginTax := difference(sTax, pTax)
	perUnit := money.Parse(marginPrice).Add(money.Parse(marginTax))
	expected := perUnit.Mul(q).Round(2)

	var totalDebt decimal.Decimal
	active := marginPrice
	switch mode {
	case models.OrderTypeSale:
		totalDebt = money.Parse(sale).Mul(q)
	case models.OrderTypeTax:
		totalDebt = money.Parse(sTax).Mul(q)
		active = marginTax
	default:
		totalDebt = money.Parse(sale).Add(money.Parse(sTax)).Mul(q)
	}

	order.OMC = omc
	order.Depot = depot
	order.Shareholder = strings.TrimSpace(req.Shareholder)
	if mode != models.OrderTypeTax {
		order.BDCName = bdc
	}
	order.PBDCOMC = p
	order.SBDCOMC = sale
	order.PTax = pTax
	order.STax = sTax
	order.OrderType = mode
	order.TotalDebt = nullDecimal(totalDebt.Round(2))
	order.MarginPrice = round2(marginPrice)
	order.MarginTax = round2(marginTax)
	order.Margin = round2(active)
	order.TotalMarginPerUnit = nullDecimal(perUnit.Round(2))
	order.Expected = nullDecimal(expected)
	order.ReturnsTotal = nullDecimal(expected)
	order.DueDate = dueDate
	order.Status = models.OrderStatusApproved
	order.DeliveryStatus = "pending"

	var embedded *models.EmbeddedPayment
	paymentType := strings.TrimSpace(req.PaymentType)
	if mode != models.OrderTypeTax && embeddedPaymentTypes[strings.ToLower(paymentType)] {
		if !p.Valid {
			return nil, validationError("P-BDC is required to compute payment amount")
		}
		embedded = &models.EmbeddedPayment{
			OrderID:        order.ID,
			PaymentType:    paymentType,
			Amount:         q.Mul(p.Decimal).Round(2),
			Shareholder:    order.Shareholder,
			DeliveryStatus: "pending",
			Date:           s.clock.Now(),
		}
	}

	if err := s.orders.SaveApproval(ctx, order, embedded); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}

	s.log.Info("order approved",
		zap.Uint64("order_id", order.ID),
		zap.String("order_type", mode),
		zap.String("total_debt", order.TotalDebt.Decimal.StringFixed(2)))

	return &ApprovalResult{Order: order, EmbeddedPayment: embedded}, nil
}

// difference is a - b when both are present.
func difference(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return nullDecimal(a.Decimal.Sub(b.Decimal))
}

func round2(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return nullDecimal(d.Decimal.Round(2))
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
