package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/alert"
)

// defaultListLimit bounds /alerts and /actions when no limit is given.
const defaultListLimit = 50

// handleWebhook receives an Alertmanager webhook delivery and runs every
// alert in it through the pipeline synchronously. The per-alert results go
// back in the response so operators can see what happened inline.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload alert.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload")
		return
	}
	if len(payload.Alerts) == 0 {
		writeJSONError(w, http.StatusBadRequest, "empty_payload", "no alerts in payload")
		return
	}

	results := s.orch.ProcessPayload(r.Context(), payload)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "processed",
		"alerts_processed": len(results),
		"results":          results,
	})
}

// testAlertRequest is the minimal shape accepted by POST /test.
type testAlertRequest struct {
	AlertName   string `json:"alertname"`
	Severity    string `json:"severity"`
	Service     string `json:"service"`
	Namespace   string `json:"namespace"`
	Pod         string `json:"pod"`
	Description string `json:"description"`
}

// handleTest builds a synthetic alert and runs it through the pipeline.
// Useful for validating rules and notification wiring without waiting for
// Alertmanager to fire.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	req := testAlertRequest{
		AlertName:   "TestAlert",
		Severity:    "info",
		Service:     "test-service",
		Description: "Manually triggered test alert",
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload")
			return
		}
	}
	if req.Namespace == "" {
		req.Namespace = s.cfg.Namespace
	}

	a := alert.Alert{
		Status: "firing",
		Labels: map[string]string{
			"alertname": req.AlertName,
			"severity":  req.Severity,
			"service":   req.Service,
			"namespace": req.Namespace,
		},
		Annotations: map[string]string{"description": req.Description},
		StartsAt:    time.Now().UTC(),
	}
	if req.Pod != "" {
		a.Labels["pod"] = req.Pod
	}

	s.logger.Info("test alert triggered", zap.String("alertname", req.AlertName))

	result := s.orch.Process(r.Context(), a)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "processed",
		"result": result,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"classifier": "ok",
		"remediator": "ok",
		"ai":         enabledString(s.gateway.ReasonerAvailable()),
		"slack":      enabledString(s.notifier != nil && s.notifier.Enabled()),
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"dry_run":    s.executor.DryRun(),
		"components": components,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultListLimit)
	summary := s.store.Summarize()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": s.store.RecentAlerts(limit),
		"total":  summary.TotalAlerts,
	})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultListLimit)
	summary := s.store.Summarize()
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": s.store.RecentActions(limit),
		"total":   summary.ActionsExecuted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"classifier":    s.gateway.Stats(),
		"remediator":    s.executor.ExecutionStats(),
		"notifications": s.deliveryStats(),
		"history":       s.store.Summarize(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"dry_run":       s.cfg.DryRun,
		"namespace":     s.cfg.Namespace,
		"ai_enabled":    s.gateway.ReasonerAvailable(),
		"ai_model":      s.cfg.LLM.Model,
		"slack_enabled": s.notifier != nil && s.notifier.Enabled(),
		"version":       Version,
	})
}

// parseLimit reads ?limit=, falling back to def on absence or garbage.
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func enabledString(enabled bool) string {
	if enabled {
		return "ok"
	}
	return "disabled"
}
