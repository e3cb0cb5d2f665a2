// Package alert defines the Alertmanager webhook payload model consumed by
// the healing pipeline. Alerts are read-only once received.
package alert

import "time"

// WebhookPayload is the body Alertmanager posts to the webhook receiver.
// Alerts sharing a groupKey are delivered together.
type WebhookPayload struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            string            `json:"status"` // "firing" or "resolved"
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// Alert is a single firing (or resolved) alert.
//
// Labels identify the alert: alertname is always present; severity, service,
// namespace and pod are common. Annotations carry free text: description,
// summary and an optional runbook URL.
type Alert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// Name returns the alertname label, or "Unknown" when absent.
func (a Alert) Name() string {
	if v := a.Labels["alertname"]; v != "" {
		return v
	}
	return "Unknown"
}

// Severity returns the severity label, or "unknown" when absent.
func (a Alert) Severity() string {
	if v := a.Labels["severity"]; v != "" {
		return v
	}
	return "unknown"
}

// Service returns the service label, or "unknown" when absent.
func (a Alert) Service() string {
	if v := a.Labels["service"]; v != "" {
		return v
	}
	return "unknown"
}

// Namespace returns the namespace label, empty when absent.
func (a Alert) Namespace() string { return a.Labels["namespace"] }

// Pod returns the pod label, empty when no specific pod is named.
func (a Alert) Pod() string { return a.Labels["pod"] }

// Description returns the description annotation, empty when absent.
func (a Alert) Description() string { return a.Annotations["description"] }

// Summary returns the summary annotation, empty when absent.
func (a Alert) Summary() string { return a.Annotations["summary"] }

// Runbook returns the runbook annotation, empty when absent.
func (a Alert) Runbook() string { return a.Annotations["runbook"] }
