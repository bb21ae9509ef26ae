package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/metrics"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/ratelimit"
	"fuel-reconciliation-service/internal/repositories"
)

const defaultShareLinkDays = 7

var passcodePattern = regexp.MustCompile(`^\d{5}$`)

// ShareLinkService manages passcode-protected links that let a BDC partner
// see and update delivery status for its own orders.
type ShareLinkService struct {
	links       repositories.ShareLinkRepository
	orders      repositories.OrderRepository
	attempts    ratelimit.AttemptCounter
	maxAttempts int
	hashCost    int
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewShareLinkService(
	links repositories.ShareLinkRepository,
	orders repositories.OrderRepository,
	attempts ratelimit.AttemptCounter,
	maxAttempts int,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
) *ShareLinkService {
	return &ShareLinkService{
		links:       links,
		orders:      orders,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		hashCost:    bcrypt.DefaultCost,
		clock:       clk,
		metrics:     m,
		log:         log.Named("sharelink.service"),
	}
}

type CreateShareLinkRequest struct {
	BDCName       string
	Passcode      string
	ExpiresInDays *int
	CreatedBy     string
}

func (s *ShareLinkService) Create(ctx context.Context, req CreateShareLinkRequest) (*models.ShareLink, error) {
	bdc := strings.TrimSpace(req.BDCName)
	passcode := strings.TrimSpace(req.Passcode)
	if bdc == "" {
		return nil, validationError("BDC is required.")
	}
	if !passcodePattern.MatchString(passcode) {
		return nil, validationError("Passcode must be exactly 5 digits.")
	}
	days := defaultShareLinkDays
	if req.ExpiresInDays != nil {
		days = *req.ExpiresInDays
	}
	if days < 1 || days > 90 {
		return nil, validationError("expires_in_days must be 1–90.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}
	token, err := newShareToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	link := &models.ShareLink{
		Token:     token,
		BDCName:   bdc,
		PassHash:  string(hash),
		CreatedBy: strings.TrimSpace(req.CreatedBy),
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, days),
	}
	audit := &models.ShareLinkAudit{Type: models.AuditCreate, At: now, By: link.CreatedBy}
	if err := s.links.Create(ctx, link, audit); err != nil {
		return nil, fmt.Errorf("failed to create share link: %w", err)
	}

	s.log.Info("share link created", zap.String("bdc", bdc), zap.Time("expires_at", link.ExpiresAt))
	return link, nil
}

func newShareToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *ShareLinkService) Revoke(ctx context.Context, token string) error {
	link, err := s.links.GetByToken(ctx, token)
	if err != nil {
		return lookupError(err, "Link not found.", "failed to load share link")
	}
	if link.RevokedAt != nil {
		return validationError("Already revoked.")
	}

	now := s.clock.Now()
	ok, err := s.links.Revoke(ctx, link.ID, now)
	if err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}
	if !ok {
		return validationError("Already revoked.")
	}
	if err := s.links.CreateAuditEntry(ctx, &models.ShareLinkAudit{
		ShareLinkID: link.ID,
		Type:        models.AuditRevoke,
		At:          now,
	}); err != nil {
		s.log.Error("failed to audit revoke", zap.Uint64("link_id", link.ID), zap.Error(err))
	}
	return nil
}

// validLink loads a link that is neither revoked nor expired.
func (s *ShareLinkService) validLink(ctx context.Context, token string) (*models.ShareLink, error) {
	link, err := s.links.GetByToken(ctx, token)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to load share link: %w", err)
	}
	if err != nil || !link.Valid(s.clock.Now()) {
		return nil, newError(ErrGone, "Invalid or expired link.")
	}
	return link, nil
}

// authorize checks the passcode against the link. Only failed attempts
// count toward the limit; a correct passcode clears the count.
func (s *ShareLinkService) authorize(ctx context.Context, link *models.ShareLink, passcode string) error {
	n, err := s.attempts.Attempts(ctx, link.Token)
	if err != nil {
		return fmt.Errorf("failed to read attempts: %w", err)
	}
	if n >= s.maxAttempts {
		s.metrics.RecordUnlock("locked_out")
		return newError(ErrTooManyAttempts, "Too many attempts. Try again later.")
	}

	passcode = strings.TrimSpace(passcode)
	var failure error
	switch {
	case !passcodePattern.MatchString(passcode):
		failure = validationError("Enter exactly 5 digits.")
	case bcrypt.CompareHashAndPassword([]byte(link.PassHash), []byte(passcode)) != nil:
		failure = newError(ErrForbidden, "Incorrect passcode.")
	}
	if failure != nil {
		if _, err := s.attempts.Increment(ctx, link.Token); err != nil {
			return fmt.Errorf("failed to count attempt: %w", err)
		}
		s.metrics.RecordUnlock("rejected")
		return failure
	}

	if err := s.attempts.Reset(ctx, link.Token); err != nil {
		s.log.Warn("failed to reset attempts", zap.Uint64("link_id", link.ID), zap.Error(err))
	}
	return nil
}

// Unlock verifies the passcode and records the unlock.
func (s *ShareLinkService) Unlock(ctx context.Context, token, passcode, ip string) (*models.ShareLink, error) {
	link, err := s.validLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, link, passcode); err != nil {
		return nil, err
	}
	s.metrics.RecordUnlock("unlocked")

	if err := s.links.CreateAuditEntry(ctx, &models.ShareLinkAudit{
		ShareLinkID: link.ID,
		Type:        models.AuditUnlock,
		At:          s.clock.Now(),
		IP:          ip,
	}); err != nil {
		return nil, fmt.Errorf("failed to audit unlock: %w", err)
	}
	return link, nil
}

type Delivery struct {
	OrderID        uint64    `json:"order_id"`
	OrderCode      string    `json:"order_code"`
	BDCName        string    `json:"bdc_name"`
	ClientID       string    `json:"client_id"`
	Product        string    `json:"product"`
	VehicleNumber  string    `json:"vehicle_number"`
	DriverName     string    `json:"driver_name"`
	DriverPhone    string    `json:"driver_phone"`
	Quantity       string    `json:"quantity"`
	Region         string    `json:"region"`
	DeliveryStatus string    `json:"delivery_status"`
	TTSStatus      string    `json:"tts_status"`
	NPAStatus      string    `json:"npa_status"`
	Date           time.Time `json:"date"`
}

type DeliveryList struct {
	BDCName       string     `json:"bdc_name"`
	Deliveries    []Delivery `json:"deliveries"`
	StatusOptions []string   `json:"status_options"`
}

// Deliveries lists approved orders of the link's BDC, newest first.
func (s *ShareLinkService) Deliveries(ctx context.Context, token, passcode string) (*DeliveryList, error) {
	link, err := s.validLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, link, passcode); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListApproved(ctx, repositories.ApprovedFilter{BDCName: link.BDCName})
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	list := &DeliveryList{
		BDCName:       link.BDCName,
		Deliveries:    make([]Delivery, 0, len(orders)),
		StatusOptions: models.DeliveryStatusOptions,
	}
	for _, o := range orders {
		status := o.DeliveryStatus
		if status == "" {
			status = "pending"
		}
		list.Deliveries = append(list.Deliveries, Delivery{
			OrderID:        o.ID,
			OrderCode:      o.OrderRef,
			BDCName:        o.BDCName,
			ClientID:       o.ClientID,
			Product:        o.Product,
			VehicleNumber:  o.VehicleNumber,
			DriverName:     o.DriverName,
			DriverPhone:    o.DriverPhone,
			Quantity:       o.Quantity.StringFixed(2),
			Region:         o.Region,
			DeliveryStatus: status,
			TTSStatus:      o.TTSStatus,
			NPAStatus:      o.NPAStatus,
			Date:           o.OrderedAt,
		})
	}
	return list, nil
}

type DeliveryUpdate struct {
	Token     string
	Passcode  string
	OrderID   uint64
	TTSStatus string
	NPAStatus string
	IP        string
}

// UpdateDeliveryStatus sets TTS and/or NPA status on an order of the link's
// BDC and records the change in the order history and the link audit.
func (s *ShareLinkService) UpdateDeliveryStatus(ctx context.Context, req DeliveryUpdate) error {
	link, err := s.validLink(ctx, req.Token)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, link, req.Passcode); err != nil {
		return err
	}
	if req.OrderID == 0 {
		return validationError("Invalid order id.")
	}

	tts := optionalString(req.TTSStatus)
	npa := optionalString(req.NPAStatus)
	if tts == nil && npa == nil {
		return validationError("Provide TTS and/or NPA status.")
	}
	for _, v := range []*string{tts, npa} {
		if v != nil && !slices.Contains(models.DeliveryStatusOptions, *v) {
			return validationError("Unknown status %q.", *v)
		}
	}

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return lookupError(err, "Order not found.", "failed to load order")
	}
	if order.BDCName != link.BDCName {
		return newError(ErrForbidden, "Order not allowed for this link.")
	}

	now := s.clock.Now()
	history := &models.DeliveryHistory{
		OrderID:      order.ID,
		TTSStatus:    tts,
		NPAStatus:    npa,
		ByShareToken: link.Token,
		Timestamp:    now,
	}
	if err := s.orders.UpdateDeliveryStatus(ctx, order.ID, tts, npa, history); err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	id := order.ID
	if err := s.links.CreateAuditEntry(ctx, &models.ShareLinkAudit{
		ShareLinkID: link.ID,
		Type:        models.AuditUpdate,
		At:          now,
		IP:          req.IP,
		OrderID:     &id,
		TTS:         tts,
		NPA:         npa,
	}); err != nil {
		s.log.Error("failed to audit delivery update", zap.Uint64("link_id", link.ID), zap.Error(err))
	}
	return nil
}
