/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics defines Prometheus metrics for the healing agent.
//
// All metrics are registered with the default registry and served on the
// /metrics endpoint.
//
// Metric naming follows Prometheus conventions:
//   - healing_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Classification tier labels.
const (
	TierRule     = "rule"
	TierReasoner = "reasoner"
	TierFallback = "fallback"
)

var (
	// AlertsProcessedTotal counts processed alerts by terminal status.
	AlertsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healing_alerts_processed_total",
			Help: "Total alerts processed by terminal status.",
		},
		[]string{"status"},
	)

	// ProcessingDurationSeconds is a histogram of per-alert pipeline duration.
	ProcessingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healing_processing_duration_seconds",
			Help:    "Duration of the classify/execute/notify pipeline per alert.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// ClassificationsTotal counts classifications by tier and action type.
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healing_classifications_total",
			Help: "Total classifications by tier and resulting action type.",
		},
		[]string{"tier", "action"},
	)

	// RemediationsTotal counts remediation executions by action type and status.
	RemediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healing_remediations_total",
			Help: "Total remediation executions by action type and result status.",
		},
		[]string{"action", "status"},
	)

	// NotificationsTotal counts notification deliveries by outcome.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healing_notifications_total",
			Help: "Total notification deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	// ReasonerTokensTotal counts tokens consumed by reasoner calls per model.
	ReasonerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healing_reasoner_tokens_total",
			Help: "Total tokens consumed by reasoner calls.",
		},
		[]string{"model"},
	)

	// InFlightAlerts is the number of alerts currently in the pipeline.
	InFlightAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "healing_inflight_alerts",
			Help: "Number of alerts currently being processed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AlertsProcessedTotal,
		ProcessingDurationSeconds,
		ClassificationsTotal,
		RemediationsTotal,
		NotificationsTotal,
		ReasonerTokensTotal,
		InFlightAlerts,
	)
}

// RecordAlertProcessed records metrics for one completed pipeline pass.
func RecordAlertProcessed(status string, duration time.Duration) {
	AlertsProcessedTotal.WithLabelValues(status).Inc()
	ProcessingDurationSeconds.Observe(duration.Seconds())
}

// RecordClassification records a single classification decision.
func RecordClassification(tier, action string) {
	ClassificationsTotal.WithLabelValues(tier, action).Inc()
}

// RecordRemediation records a single remediation execution.
func RecordRemediation(action, status string) {
	RemediationsTotal.WithLabelValues(action, status).Inc()
}

// RecordNotification records a single notification delivery attempt.
func RecordNotification(sent bool) {
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordReasonerTokens records token consumption for a reasoner call.
func RecordReasonerTokens(model string, promptTokens, completionTokens int) {
	ReasonerTokensTotal.WithLabelValues(model).Add(float64(promptTokens + completionTokens))
}
