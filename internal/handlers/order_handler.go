package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/services"
)

type OrderHandler struct {
	orderService *services.OrderService
	log          *zap.Logger
}

func NewOrderHandler(orderService *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		log:          log.Named("order.handler"),
	}
}

type createOrderRequest struct {
	ClientID      string       `json:"client_id" validate:"max=64"`
	OMC           string       `json:"omc" validate:"max=128"`
	BDCName       string       `json:"bdc_name" validate:"max=128"`
	Product       string       `json:"product" validate:"max=64"`
	Region        string       `json:"region" validate:"max=64"`
	VehicleNumber string       `json:"vehicle_number" validate:"max=32"`
	DriverName    string       `json:"driver_name" validate:"max=128"`
	DriverPhone   string       `json:"driver_phone" validate:"max=32"`
	Quantity      money.Amount `json:"quantity"`
	Date          string       `json:"date"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request createOrderRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.Create(r.Context(), services.CreateOrderRequest{
		ClientID:      request.ClientID,
		OMC:           request.OMC,
		BDCName:       request.BDCName,
		Product:       request.Product,
		Region:        request.Region,
		VehicleNumber: request.VehicleNumber,
		DriverName:    request.DriverName,
		DriverPhone:   request.DriverPhone,
		Quantity:      request.Quantity.Decimal,
		OrderedAt:     request.Date,
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusCreated, "Order created", order)
}

// approveOrderRequest keeps rates as text so a blank field stays
// distinguishable from zero.
type approveOrderRequest struct {
	OrderType   string      `json:"order_type"`
	OMC         string      `json:"omc" validate:"max=128"`
	BDCName     string      `json:"bdc_name" validate:"max=128"`
	Depot       string      `json:"depot" validate:"max=128"`
	PBDCOMC     looseString `json:"p_bdc_omc"`
	SBDCOMC     looseString `json:"s_bdc_omc"`
	PTax        looseString `json:"p_tax"`
	STax        looseString `json:"s_tax"`
	DueDate     string      `json:"due_date"`
	PaymentType string      `json:"payment_type" validate:"max=32"`
	Shareholder string      `json:"shareholder" validate:"max=64"`
}

func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	orderID := pathID(r, "order_id")
	if orderID == 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var request approveOrderRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orderService.Approve(r.Context(), orderID, services.ApproveRequest{
		OrderType:   request.OrderType,
		OMC:         request.OMC,
		BDCName:     request.BDCName,
		Depot:       request.Depot,
		PBDCOMC:     string(request.PBDCOMC),
		SBDCOMC:     string(request.SBDCOMC),
		PTax:        string(request.PTax),
		STax:        string(request.STax),
		DueDate:     request.DueDate,
		PaymentType: request.PaymentType,
		Shareholder: request.Shareholder,
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Order approved", result)
}
