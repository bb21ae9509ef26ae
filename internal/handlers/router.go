package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/services"
)

// Services are the dependencies served over HTTP.
type Services struct {
	Tax          *services.TaxService
	Allocation   *services.AllocationService
	Banks        *services.BankService
	Shareholders *services.ShareholderService
	Clients      *services.ClientService
	Orders       *services.OrderService
	Payments     *services.PaymentIngestionService
	ShareLinks   *services.ShareLinkService
}

func SetupRouter(svc Services, gatherer prometheus.Gatherer, log *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(loggingMiddleware(log.Named("http")))

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	tax := NewTaxHandler(svc.Tax, log)
	api.HandleFunc("/tax", tax.Dashboard).Methods(http.MethodGet)
	api.HandleFunc("/tax/pay", tax.PayOrder).Methods(http.MethodPost)
	api.HandleFunc("/tax/add", tax.AddRecord).Methods(http.MethodPost)

	banks := NewBankHandler(svc.Banks, svc.Allocation, log)
	api.HandleFunc("/banks/pay-omc", banks.PayOMC).Methods(http.MethodPost)
	api.HandleFunc("/banks/{bank_id}", banks.Profile).Methods(http.MethodGet)
	api.HandleFunc("/banks/{bank_id}/omc-debts", banks.OMCDebts).Methods(http.MethodGet)

	shareholders := NewShareholderHandler(svc.Shareholders, log)
	api.HandleFunc("/shareholders", shareholders.Summary).Methods(http.MethodGet)
	api.HandleFunc("/shareholders/tax", shareholders.Tax).Methods(http.MethodGet)
	api.HandleFunc("/shareholders/shared-tax", shareholders.SaveSharedTax).Methods(http.MethodPost)

	clients := NewClientHandler(svc.Clients, log)
	api.HandleFunc("/clients/{client_id}/orders", clients.Orders).Methods(http.MethodGet)

	orders := NewOrderHandler(svc.Orders, log)
	api.HandleFunc("/orders", orders.Create).Methods(http.MethodPost)
	api.HandleFunc("/orders/{order_id}/approve", orders.Approve).Methods(http.MethodPost)

	payments := NewPaymentHandler(svc.Payments, log)
	api.HandleFunc("/payments", payments.Ingest).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/confirm", payments.Confirm).Methods(http.MethodPost)

	links := NewShareLinkHandler(svc.ShareLinks, log)
	api.HandleFunc("/share-links", links.Create).Methods(http.MethodPost)
	api.HandleFunc("/share-links/{token}/revoke", links.Revoke).Methods(http.MethodPost)
	api.HandleFunc("/share-links/{token}/unlock", links.Unlock).Methods(http.MethodPost)
	api.HandleFunc("/share-links/{token}/deliveries", links.Deliveries).Methods(http.MethodGet)
	api.HandleFunc("/share-links/{token}/deliveries/{order_id}", links.UpdateDelivery).Methods(http.MethodPost)

	return router
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			log.Info("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", clientIP(r)))
		})
	}
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithMessage(w, http.StatusOK, "healthy", nil)
}
