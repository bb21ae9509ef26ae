package handlers

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/services"
)

type ShareholderHandler struct {
	shareholderService *services.ShareholderService
	log                *zap.Logger
}

func NewShareholderHandler(shareholderService *services.ShareholderService, log *zap.Logger) *ShareholderHandler {
	return &ShareholderHandler{
		shareholderService: shareholderService,
		log:                log.Named("shareholder.handler"),
	}
}

type shareholderSummary struct {
	Contributions *services.ContributionReport `json:"contributions"`
	Volumes       *services.VolumeReport       `json:"volumes"`
	Tax           *services.TaxReport          `json:"tax"`
}

// Summary serves the contribution, volume and tax views together. Each view
// has its own period parameters.
func (h *ShareholderHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	contributions, err := h.shareholderService.Contributions(ctx, services.PeriodQuery{
		Period: q.Get("period"),
		Start:  q.Get("start"),
		End:    q.Get("end"),
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	volumes, err := h.shareholderService.Volumes(ctx, services.PeriodQuery{
		Period: q.Get("volume_period"),
		Start:  q.Get("volume_start"),
		End:    q.Get("volume_end"),
	})
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	tax, err := h.shareholderService.TaxBreakdown(ctx, taxQuery(q))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}

	respondWithData(w, http.StatusOK, shareholderSummary{
		Contributions: contributions,
		Volumes:       volumes,
		Tax:           tax,
	})
}

func (h *ShareholderHandler) Tax(w http.ResponseWriter, r *http.Request) {
	report, err := h.shareholderService.TaxBreakdown(r.Context(), taxQuery(r.URL.Query()))
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithData(w, http.StatusOK, report)
}

func taxQuery(q url.Values) services.TaxQuery {
	return services.TaxQuery{
		Month:       q.Get("month_tax"),
		Start:       q.Get("custom_tax_start"),
		End:         q.Get("custom_tax_end"),
		Products:    q["tax_product"],
		ProductsCSV: q.Get("tax_products"),
		Overrides: reconcile.ParseRateOverrides(
			q.Get("total_tax_override"),
			q.Get("gra_tax_override"),
			q.Get("npa_life_override"),
			q.Get("npa_component_override"),
		),
	}
}

func (h *ShareholderHandler) SaveSharedTax(w http.ResponseWriter, r *http.Request) {
	var request services.SharedTaxRequest
	if err := decodeJSON(w, r, &request); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rate, err := h.shareholderService.SaveSharedTax(r.Context(), request)
	if err != nil {
		respondWithServiceError(w, r, h.log, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Shared tax saved", rate)
}
