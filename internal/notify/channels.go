/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package notify implements notification delivery for healing decisions.
// The pipeline publishes classification and execution outcomes; channels
// route them to Slack or generic webhooks so humans stay informed of what
// the agent did (or wants approval for).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/alert"
	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/metrics"
	"github.com/helix-ops/healing-agent/internal/remedy"
)

// Notifier is the interface for all notification backends. Delivery is best
// effort: the pipeline never fails an alert because a notification did.
type Notifier interface {
	// Enabled reports whether the channel is configured for delivery.
	Enabled() bool

	// AlertNotification reports a classified alert, its recommended action,
	// and (when auto-executed) the execution result.
	AlertNotification(ctx context.Context, a alert.Alert, action classify.Action, result *remedy.Result, autoExecuted bool) error

	// ActionResult reports the outcome of a remediation on its own.
	ActionResult(ctx context.Context, a alert.Alert, action classify.Action, result remedy.Result) error

	// Summary reports periodic aggregate statistics.
	Summary(ctx context.Context, stats classify.Stats) error
}

// Stats tracks delivery outcomes for a channel.
type Stats struct {
	Enabled     bool    `json:"enabled"`
	Sent        int64   `json:"notifications_sent"`
	Failed      int64   `json:"notifications_failed"`
	SuccessRate float64 `json:"success_rate"`
}

// --- Slack ---

// SlackNotifier sends Block Kit messages to a Slack incoming webhook. An
// empty webhook URL disables the channel.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	sent   int64
	failed int64
}

// NewSlackNotifier creates a Slack channel. Pass an empty URL to get a
// disabled notifier that silently drops everything.
func NewSlackNotifier(webhookURL string, logger *zap.Logger) *SlackNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if webhookURL == "" {
		logger.Warn("slack webhook URL not set, notifications disabled")
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger.Named("slack"),
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *SlackNotifier) Enabled() bool { return s.webhookURL != "" }

// AlertNotification sends the full alert card: identity, description, the
// recommended action with confidence, and either the execution result or an
// awaiting-approval marker.
func (s *SlackNotifier) AlertNotification(ctx context.Context, a alert.Alert, action classify.Action, result *remedy.Result, autoExecuted bool) error {
	if !s.Enabled() {
		return nil
	}

	blocks := []map[string]any{
		header(fmt.Sprintf("%s Alert: %s", actionEmoji(action.Type), a.Name())),
		fieldSection(
			mrkdwn("*Severity:*\n"+strings.ToUpper(a.Severity())),
			mrkdwn("*Service:*\n"+a.Service()),
			mrkdwn("*Namespace:*\n"+orDefault(a.Namespace(), "Unknown")),
			mrkdwn("*Time:*\n"+time.Now().UTC().Format("2006-01-02 15:04:05")),
		),
		textSection("*Description:*\n" + orDefault(a.Description(), "No description")),
		divider(),
		fieldSection(
			mrkdwn(fmt.Sprintf("*Recommended Action:*\n`%s`", strings.ToUpper(string(action.Type)))),
			mrkdwn(fmt.Sprintf("*Confidence:*\n%.0f%%", action.Confidence*100)),
		),
		textSection("*Reasoning:*\n" + action.Reason),
	}

	if autoExecuted && result != nil {
		statusEmoji := "❌"
		if result.Status == remedy.StatusSuccess {
			statusEmoji = "✅"
		}
		blocks = append(blocks,
			divider(),
			textSection(fmt.Sprintf("%s *Auto-Executed:*\n%s", statusEmoji, orDefault(result.Message, "No details"))),
		)
	} else {
		blocks = append(blocks, textSection("⏳ *Status:* Awaiting manual approval"))
	}

	if runbook := a.Runbook(); runbook != "" {
		blocks = append(blocks, textSection(fmt.Sprintf("\U0001f4d6 <%s|View Runbook>", runbook)))
	}

	return s.send(ctx, map[string]any{
		"attachments": []map[string]any{
			{"color": severityColor(a.Severity()), "blocks": blocks},
		},
	})
}

// ActionResult sends a compact card describing one execution outcome.
func (s *SlackNotifier) ActionResult(ctx context.Context, a alert.Alert, action classify.Action, result remedy.Result) error {
	if !s.Enabled() {
		return nil
	}

	color := "#dc3545"
	if result.Status == remedy.StatusSuccess {
		color = "#28a745"
	}

	blocks := []map[string]any{
		header(fmt.Sprintf("%s Action Result: %s", statusEmoji(result.Status), strings.ToUpper(string(action.Type)))),
		fieldSection(
			mrkdwn("*Service:*\n"+a.Service()),
			mrkdwn("*Status:*\n"+strings.ToUpper(result.Status)),
		),
		textSection("*Details:*\n" + orDefault(result.Message, "No details")),
	}

	return s.send(ctx, map[string]any{
		"attachments": []map[string]any{
			{"color": color, "blocks": blocks},
		},
	})
}

// Summary sends the periodic aggregate card.
func (s *SlackNotifier) Summary(ctx context.Context, stats classify.Stats) error {
	if !s.Enabled() {
		return nil
	}

	return s.send(ctx, map[string]any{
		"text": "\U0001f916 *Healing Agent Summary*",
		"blocks": []map[string]any{
			header("\U0001f916 Healing Agent Summary"),
			fieldSection(
				mrkdwn(fmt.Sprintf("*Total Alerts:*\n%d", stats.TotalAlerts)),
				mrkdwn(fmt.Sprintf("*Auto-Executed:*\n%d", stats.AutoExecuted)),
				mrkdwn(fmt.Sprintf("*Rule-Based:*\n%d", stats.RuleBasedMatches)),
				mrkdwn(fmt.Sprintf("*AI Analysis:*\n%d", stats.AIAnalysisUsed)),
			),
		},
	})
}

// DeliveryStats returns the channel's delivery counters.
func (s *SlackNotifier) DeliveryStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Enabled: s.Enabled(), Sent: s.sent, Failed: s.failed}
	if total := s.sent + s.failed; total > 0 {
		st.SuccessRate = float64(s.sent) / float64(total) * 100
	}
	return st
}

func (s *SlackNotifier) send(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return s.fail(fmt.Errorf("slack request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return s.fail(fmt.Errorf("slack send: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return s.fail(fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(respBody)))
	}

	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	metrics.RecordNotification(true)
	s.logger.Info("slack notification sent")
	return nil
}

func (s *SlackNotifier) fail(err error) error {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	metrics.RecordNotification(false)
	s.logger.Error("slack notification failed", zap.Error(err))
	return err
}

// --- Webhook ---

// WebhookNotifier posts flat JSON events to any HTTP endpoint, for systems
// that ingest healing events programmatically.
type WebhookNotifier struct {
	url     string
	headers map[string]string // optional auth headers
	client  *http.Client
	logger  *zap.Logger
}

// NewWebhookNotifier creates a generic webhook channel. An empty URL
// disables it.
func NewWebhookNotifier(url string, headers map[string]string, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger.Named("webhook"),
	}
}

// Enabled reports whether an endpoint URL is configured.
func (w *WebhookNotifier) Enabled() bool { return w.url != "" }

func (w *WebhookNotifier) AlertNotification(ctx context.Context, a alert.Alert, action classify.Action, result *remedy.Result, autoExecuted bool) error {
	if !w.Enabled() {
		return nil
	}
	payload := map[string]any{
		"event":         "alert_classified",
		"alert":         a.Name(),
		"severity":      a.Severity(),
		"service":       a.Service(),
		"namespace":     a.Namespace(),
		"action_type":   action.Type,
		"confidence":    action.Confidence,
		"reason":        action.Reason,
		"auto_executed": autoExecuted,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if result != nil {
		payload["result_status"] = result.Status
		payload["result_message"] = result.Message
	}
	return w.send(ctx, payload)
}

func (w *WebhookNotifier) ActionResult(ctx context.Context, a alert.Alert, action classify.Action, result remedy.Result) error {
	if !w.Enabled() {
		return nil
	}
	return w.send(ctx, map[string]any{
		"event":       "action_result",
		"alert":       a.Name(),
		"service":     a.Service(),
		"action_type": action.Type,
		"status":      result.Status,
		"message":     result.Message,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *WebhookNotifier) Summary(ctx context.Context, stats classify.Stats) error {
	if !w.Enabled() {
		return nil
	}
	return w.send(ctx, map[string]any{
		"event":              "summary",
		"total_alerts":       stats.TotalAlerts,
		"rule_based_matches": stats.RuleBasedMatches,
		"ai_analysis_used":   stats.AIAnalysisUsed,
		"auto_executed":      stats.AutoExecuted,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *WebhookNotifier) send(ctx context.Context, payload map[string]any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.RecordNotification(false)
		return fmt.Errorf("webhook send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.RecordNotification(false)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	metrics.RecordNotification(true)
	w.logger.Info("webhook notification sent", zap.String("event", fmt.Sprint(payload["event"])))
	return nil
}

// --- Fan-out ---

// Multi fans a notification out to several channels and aggregates errors.
type Multi []Notifier

// Enabled reports whether any channel is enabled.
func (m Multi) Enabled() bool {
	for _, n := range m {
		if n.Enabled() {
			return true
		}
	}
	return false
}

func (m Multi) AlertNotification(ctx context.Context, a alert.Alert, action classify.Action, result *remedy.Result, autoExecuted bool) error {
	var errs []error
	for _, n := range m {
		if err := n.AlertNotification(ctx, a, action, result, autoExecuted); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrs(errs)
}

func (m Multi) ActionResult(ctx context.Context, a alert.Alert, action classify.Action, result remedy.Result) error {
	var errs []error
	for _, n := range m {
		if err := n.ActionResult(ctx, a, action, result); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrs(errs)
}

func (m Multi) Summary(ctx context.Context, stats classify.Stats) error {
	var errs []error
	for _, n := range m {
		if err := n.Summary(ctx, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrs(errs)
}

// DeliveryStats sums the counters of every channel that tracks them.
func (m Multi) DeliveryStats() Stats {
	var out Stats
	for _, n := range m {
		r, ok := n.(interface{ DeliveryStats() Stats })
		if !ok {
			continue
		}
		s := r.DeliveryStats()
		out.Enabled = out.Enabled || s.Enabled
		out.Sent += s.Sent
		out.Failed += s.Failed
	}
	if total := out.Sent + out.Failed; total > 0 {
		out.SuccessRate = float64(out.Sent) / float64(total) * 100
	}
	return out
}

func joinErrs(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return fmt.Errorf("notify: %s", strings.Join(parts, "; "))
}

// --- Block Kit helpers ---

func header(text string) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": text, "emoji": true},
	}
}

func textSection(text string) map[string]any {
	return map[string]any{"type": "section", "text": mrkdwn(text)}
}

func fieldSection(fields ...map[string]any) map[string]any {
	return map[string]any{"type": "section", "fields": fields}
}

func mrkdwn(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}

func divider() map[string]any {
	return map[string]any{"type": "divider"}
}

func severityColor(severity string) string {
	switch severity {
	case "critical":
		return "#dc3545"
	case "warning":
		return "#ffc107"
	case "info":
		return "#17a2b8"
	default:
		return "#6c757d"
	}
}

func actionEmoji(t classify.ActionType) string {
	switch t {
	case classify.ActionRestart:
		return "\U0001f504"
	case classify.ActionScale:
		return "\U0001f4c8"
	case classify.ActionRollback:
		return "⏮️"
	case classify.ActionInvestigate:
		return "\U0001f50d"
	default:
		return "⚙️"
	}
}

func statusEmoji(status string) string {
	switch status {
	case remedy.StatusSuccess:
		return "✅"
	case remedy.StatusError:
		return "❌"
	case remedy.StatusDryRun:
		return "\U0001f50d"
	default:
		return "⚙️"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
