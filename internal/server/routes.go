package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes attaches every endpoint to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Alert intake
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /test", s.handleTest)

	// Introspection
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("GET /actions", s.handleActions)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /config", s.handleConfig)

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", promhttp.Handler())
}
