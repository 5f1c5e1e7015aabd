package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mclennan/buyradar/internal/clients/alphavantage"
	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/models"
	"github.com/mclennan/buyradar/internal/services/prices"
	"github.com/mclennan/buyradar/internal/storage/surrealdb"
)

// priceCacheControl lets the dashboard cache resolved series briefly while
// allowing a short stale window during revalidation.
const priceCacheControl = "public, s-maxage=300, stale-while-revalidate=60"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := "ok"
	storage := "ok"
	if err := s.app.Storage.Health(r.Context()); err != nil {
		status = "degraded"
		storage = err.Error()
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, map[string]interface{}{
		"status":  status,
		"storage": storage,
		"version": common.GetVersion(),
		"uptime":  time.Since(s.app.StartupTime).String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleConfig exposes a sanitized view of the running configuration.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":    cfg.Environment,
		"model":          cfg.Clients.Gemini.GetModel(),
		"sub_batch_size": cfg.Radar.GetSubBatchSize(),
		"max_duration":   cfg.Radar.GetMaxDuration().String(),
		"cron_spec":      cfg.Radar.CronSpec,
	})
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := filterFromQuery(r)
		companies, err := s.app.Storage.CompanyStore().ListCompanies(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to list companies")
			return
		}
		WriteJSON(w, http.StatusOK, companies)

	case http.MethodPost:
		var company models.Company
		if !DecodeJSON(w, r, &company) {
			return
		}
		if company.ID == "" || company.Name == "" || company.Symbol == "" {
			WriteError(w, http.StatusBadRequest, "id, name, and symbol are required")
			return
		}
		company.Symbol = company.NormalizedSymbol()
		if err := s.app.Storage.CompanyStore().UpsertCompany(r.Context(), &company); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to save company")
			return
		}
		WriteJSON(w, http.StatusOK, company)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleCompanyByID serves /api/companies/{id} and /api/companies/{id}/prices.
func (s *Server) handleCompanyByID(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}

	if strings.HasSuffix(r.URL.Path, "/prices") {
		s.handleCompanyPrices(w, r)
		return
	}

	id := PathParam(r, "/api/companies/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.Storage.CompanyStore().DeleteCompany(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to delete company")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
		return
	}

	company, err := s.app.Storage.CompanyStore().GetCompany(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Company not found")
		return
	}
	WriteJSON(w, http.StatusOK, company)
}

func (s *Server) handleCompanyPrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathParam(r, "/api/companies/", "/prices")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	timeframe := models.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = models.Timeframe1M
	}
	if !timeframe.Valid() {
		WriteError(w, http.StatusBadRequest, "Invalid timeframe")
		return
	}

	result, err := s.app.PriceService.GetPriceSeries(r.Context(), id, timeframe)
	if err != nil {
		writePriceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", priceCacheControl)
	WriteJSON(w, http.StatusOK, result)
}

// writePriceError maps resolver failures onto HTTP statuses: 404 for an
// unknown company, 400 for a company with no ticker symbol, 500 for
// unrecoverable provider or store failures.
func writePriceError(w http.ResponseWriter, err error) {
	if errors.Is(err, surrealdb.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Company not found")
		return
	}
	if errors.Is(err, prices.ErrNoSymbol) {
		WriteError(w, http.StatusBadRequest, "Company has no ticker symbol")
		return
	}
	WriteErrorWithCode(w, http.StatusInternalServerError, "Failed to resolve price series", string(alphavantage.ErrorCodeOf(err)))
}

func (s *Server) handleRadar(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rows, err := s.app.RadarService.Radar(r.Context(), filterFromQuery(r))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to load radar")
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

func (s *Server) handleRadarFilters(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	values, err := s.app.RadarService.FilterValues(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to load filter values")
		return
	}
	WriteJSON(w, http.StatusOK, values)
}

func (s *Server) handleRadarAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		CompanyID string `json:"company_id"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	// Without a company_id the whole radar list is analyzed synchronously.
	if req.CompanyID == "" {
		report, err := s.app.RadarService.Run(r.Context(), nil, 0)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Radar run failed: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, report)
		return
	}

	result, err := s.app.RadarService.AnalyzeCompany(r.Context(), req.CompanyID)
	if err != nil {
		if errors.Is(err, surrealdb.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Company not found")
			return
		}
		WriteError(w, http.StatusBadGateway, "Analysis failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleRadarLastRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := s.app.RadarService.LastRunReport(r.Context())
	if err != nil {
		WriteError(w, http.StatusNotFound, "No radar run recorded")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handleCronRadar is the trigger endpoint for the unattended batch run. It
// requires the shared bearer secret and accepts an offset to resume a
// deferred run.
func (s *Server) handleCronRadar(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	secret := s.app.Config.Radar.CronSecret
	if secret == "" {
		WriteError(w, http.StatusServiceUnavailable, "Cron trigger not configured")
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+secret {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		offset = parsed
	}

	report, err := s.app.RadarService.Run(r.Context(), filterFromQuery(r), offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Radar run failed: "+err.Error())
		return
	}

	errs := report.Errors
	if errs == nil {
		errs = []string{}
	}
	resp := map[string]interface{}{
		"success":     true,
		"batch":       report.Batched,
		"total":       report.Total,
		"offset":      offset,
		"processed":   report.Processed,
		"successful":  report.Succeeded,
		"failed":      report.Failed,
		"errors":      errs,
		"duration_ms": report.DurationMS,
	}
	if report.Batched {
		resp["nextOffset"] = report.NextOffset
	}
	WriteJSON(w, http.StatusOK, resp)
}

func filterFromQuery(r *http.Request) *models.RadarFilter {
	q := r.URL.Query()
	filter := &models.RadarFilter{
		Sector:   q.Get("sector"),
		Exchange: q.Get("exchange"),
		Country:  q.Get("country"),
	}
	if symbols := q.Get("symbols"); symbols != "" {
		for _, s := range strings.Split(symbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Symbols = append(filter.Symbols, strings.ToUpper(s))
			}
		}
	}
	return filter
}
