package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/services"
)

type ClientHandler struct {
	clientService *services.ClientService
	log           *zap.Logger
}

func NewClientHandler(clientService *services.ClientService, log *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		log:           log.Named("client.handler"),
	}
}

func (h *ClientHandler) Orders(w http.ResponseWriter, r *http.Request) {
	balances, err := h.clientService.Balances(r.Context(), mux.Vars(r)["client_id"])
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithData(w, http.StatusOK, balances)
}
