package server

import "net/http"

// registerRoutes wires all API endpoints onto the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)

	mux.HandleFunc("/api/companies", s.handleCompanies)
	mux.HandleFunc("/api/companies/", s.handleCompanyByID)

	mux.HandleFunc("/api/radar", s.handleRadar)
	mux.HandleFunc("/api/radar/filters", s.handleRadarFilters)
	mux.HandleFunc("/api/radar/analyze", s.handleRadarAnalyze)
	mux.HandleFunc("/api/radar/last-run", s.handleRadarLastRun)

	mux.HandleFunc("/api/cron/radar", s.handleCronRadar)
}
