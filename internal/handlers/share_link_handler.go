package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/services"
)

// passcodeHeader carries the link passcode on every delivery call.
const passcodeHeader = "X-Share-Passcode"

type ShareLinkHandler struct {
	shareLinkService *services.ShareLinkService
	log              *zap.Logger
}

func NewShareLinkHandler(shareLinkService *services.ShareLinkService, log *zap.Logger) *ShareLinkHandler {
	return &ShareLinkHandler{
		shareLinkService: shareLinkService,
		log:              log.Named("sharelink.handler"),
	}
}

type createShareLinkRequest struct {
	BDCName       string `json:"bdc_name" validate:"max=128"`
	Passcode      string `json:"passcode"`
	ExpiresInDays *int   `json:"expires_in_days"`
	CreatedBy     string `json:"created_by" validate:"max=64"`
}

type shareLinkResponse struct {
	Token     string    `json:"token"`
	BDCName   string    `json:"bdc_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *ShareLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request createShareLinkRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.shareLinkService.Create(r.Context(), services.CreateShareLinkRequest(request))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusCreated, "Share link created", shareLinkResponse{
		Token:     link.Token,
		BDCName:   link.BDCName,
		ExpiresAt: link.ExpiresAt,
	})
}

func (h *ShareLinkHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.shareLinkService.Revoke(r.Context(), mux.Vars(r)["token"]); err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Link revoked.", nil)
}

type unlockRequest struct {
	Passcode string `json:"passcode"`
}

func (h *ShareLinkHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var request unlockRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.shareLinkService.Unlock(r.Context(), mux.Vars(r)["token"], request.Passcode, clientIP(r))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Unlocked", shareLinkResponse{
		Token:     link.Token,
		BDCName:   link.BDCName,
		ExpiresAt: link.ExpiresAt,
	})
}

func (h *ShareLinkHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	list, err := h.shareLinkService.Deliveries(r.Context(), mux.Vars(r)["token"], r.Header.Get(passcodeHeader))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithData(w, http.StatusOK, list)
}

type deliveryUpdateRequest struct {
	Passcode  string `json:"passcode"`
	TTSStatus string `json:"tts_status" validate:"max=64"`
	NPAStatus string `json:"npa_status" validate:"max=64"`
}

func (h *ShareLinkHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var request deliveryUpdateRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	passcode := r.Header.Get(passcodeHeader)
	if strings.TrimSpace(passcode) == "" {
		passcode = request.Passcode
	}

	err := h.shareLinkService.UpdateDeliveryStatus(r.Context(), services.DeliveryUpdate{
		Token:     mux.Vars(r)["token"],
		Passcode:  passcode,
		OrderID:   pathID(r, "order_id"),
		TTSStatus: request.TTSStatus,
		NPAStatus: request.NPAStatus,
		IP:        clientIP(r),
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Updated.", nil)
}
