package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/metrics"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

type ClientService struct {
	orders   repositories.OrderRepository
	payments repositories.PaymentRepository
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewClientService(orders repositories.OrderRepository, payments repositories.PaymentRepository, m *metrics.Metrics, log *zap.Logger) *ClientService {
	return &ClientService{
		orders:   orders,
		payments: payments,
		metrics:  m,
		log:      log.Named("client.service"),
	}
}

type OrderBalance struct {
	*models.Order
	DisplayMargin  decimal.Decimal `json:"display_margin"`
	DisplayReturns decimal.Decimal `json:"display_returns"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	AmountLeft     decimal.Decimal `json:"amount_left"`
}

type ClientBalances struct {
	ClientID       string          `json:"client_id"`
	Orders         []OrderBalance  `json:"orders"`
	LatestApproved *OrderBalance   `json:"latest_approved,omitempty"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	AmountLeft     decimal.Decimal `json:"amount_left"`
}

// Balances decorates a client's orders with what has been paid against them:
// confirmed receipts plus payments captured on the order at approval.
func (s *ClientService) Balances(ctx context.Context, clientID string) (*ClientBalances, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, validationError("Client id is required")
	}

	orders, err := s.orders.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client orders: %w", err)
	}

	ids := orderIDs(orders)
	confirmed, err := s.payments.ConfirmedTotals(ctx, ids, clientID)
	if err != nil {
		s.log.Error("confirmed payments unavailable, showing zero", zap.String("client_id", clientID), zap.Error(err))
		s.metrics.RecordAggregateFallback("client_confirmed_payments")
		confirmed = map[uint64]decimal.Decimal{}
	}
	embedded, err := s.payments.EmbeddedTotals(ctx, ids)
	if err != nil {
		s.log.Error("embedded payments unavailable, showing zero", zap.String("client_id", clientID), zap.Error(err))
		s.metrics.RecordAggregateFallback("client_embedded_payments")
		embedded = map[uint64]decimal.Decimal{}
	}

	out := &ClientBalances{
		ClientID:   clientID,
		Orders:     make([]OrderBalance, 0, len(orders)),
		TotalPaid:  decimal.Zero,
		AmountLeft: decimal.Zero,
	}
	for _, o := range orders {
		debt := money.Parse(o.TotalDebt)
		paid := confirmed[o.ID].Add(embedded[o.ID]).Round(2)
		out.Orders = append(out.Orders, OrderBalance{
			Order:          o,
			DisplayMargin:  displayMargin(o),
			DisplayReturns: displayReturns(o),
			AmountPaid:     paid,
			AmountLeft:     debt.Sub(paid).Round(2),
		})
	}

	// Orders are newest first, so the first approved one is the latest.
	for i := range out.Orders {
		b := &out.Orders[i]
		if !strings.EqualFold(b.Status, models.OrderStatusApproved) {
			continue
		}
		out.LatestApproved = b
		out.TotalPaid = b.AmountPaid
		out.AmountLeft = money.Max(money.Parse(b.TotalDebt).Sub(b.AmountPaid), decimal.Zero).Round(2)
		break
	}
	return out, nil
}

func displayMargin(o *models.Order) decimal.Decimal {
	if o.Margin.Valid {
		return o.Margin.Decimal
	}
	return money.Parse(o.SBDCOMC).Sub(money.Parse(o.PBDCOMC)).Round(2)
}

func displayReturns(o *models.Order) decimal.Decimal {
	if o.TotalReturns.Valid || o.ReturnsTotal.Valid {
		return reconcile.OrderReturns(o)
	}
	return displayMargin(o).Mul(o.Quantity).Round(2)
}
