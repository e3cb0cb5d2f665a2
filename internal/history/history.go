// Package history keeps an in-memory record of processed alerts and executed
// actions. Retention is bounded: the oldest entries are dropped once the cap
// is reached. Persistence is out of scope; restarting the agent starts an
// empty history.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Alert entry statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// maxEntries bounds each record list.
const maxEntries = 1000

// AlertEntry is one alert's trip through the pipeline.
type AlertEntry struct {
	ID           string     `json:"id"`
	AlertName    string     `json:"alert_name"`
	Severity     string     `json:"severity"`
	Service      string     `json:"service"`
	Namespace    string     `json:"namespace,omitempty"`
	Pod          string     `json:"pod,omitempty"`
	Status       string     `json:"status"`
	ActionType   string     `json:"action_type,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
	AutoExecuted bool       `json:"auto_executed"`
	Result       string     `json:"result,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ActionEntry is one executed remediation, linked to its alert.
type ActionEntry struct {
	ID         string    `json:"id"`
	AlertID    string    `json:"alert_id"`
	Type       string    `json:"action_type"`
	Target     string    `json:"target,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Confidence float64   `json:"confidence"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Summary aggregates the store for the stats endpoint.
type Summary struct {
	TotalAlerts     int `json:"total_alerts"`
	CompletedAlerts int `json:"completed_alerts"`
	FailedAlerts    int `json:"failed_alerts"`
	ActionsExecuted int `json:"actions_executed"`
	AlertsLast24h   int `json:"alerts_last_24h"`
	ActionsLast24h  int `json:"actions_last_24h"`
}

// Store is the mutex-guarded history of alerts and actions.
type Store struct {
	mu      sync.Mutex
	alerts  []AlertEntry
	actions []ActionEntry
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{}
}

// BeginAlert records a newly received alert in the processing state and
// returns its generated ID.
func (s *Store) BeginAlert(alertName, severity, service, namespace, pod string) string {
	entry := AlertEntry{
		ID:         uuid.NewString(),
		AlertName:  alertName,
		Severity:   severity,
		Service:    service,
		Namespace:  namespace,
		Pod:        pod,
		Status:     StatusProcessing,
		ReceivedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, entry)
	if len(s.alerts) > maxEntries {
		s.alerts = s.alerts[len(s.alerts)-maxEntries:]
	}
	return entry.ID
}

// CompleteAlert moves an alert to a terminal state. Unknown IDs are ignored;
// the entry may have been evicted.
func (s *Store) CompleteAlert(id, status, actionType string, confidence float64, autoExecuted bool, result string) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		s.alerts[i].Status = status
		s.alerts[i].ActionType = actionType
		s.alerts[i].Confidence = confidence
		s.alerts[i].AutoExecuted = autoExecuted
		s.alerts[i].Result = result
		s.alerts[i].CompletedAt = &now
		return
	}
}

// RecordAction appends an executed action linked to an alert.
func (s *Store) RecordAction(alertID, actionType, target, status, message string, confidence float64) ActionEntry {
	entry := ActionEntry{
		ID:         uuid.NewString(),
		AlertID:    alertID,
		Type:       actionType,
		Target:     target,
		Status:     status,
		Message:    message,
		Confidence: confidence,
		ExecutedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, entry)
	if len(s.actions) > maxEntries {
		s.actions = s.actions[len(s.actions)-maxEntries:]
	}
	return entry
}

// RecentAlerts returns up to limit alerts, newest first. limit <= 0 returns
// everything.
func (s *Store) RecentAlerts(limit int) []AlertEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.alerts, limit)
}

// RecentActions returns up to limit actions, newest first. limit <= 0
// returns everything.
func (s *Store) RecentActions(limit int) []ActionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.actions, limit)
}

// Summarize aggregates counts, including a rolling 24 hour window.
func (s *Store) Summarize() Summary {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{
		TotalAlerts:     len(s.alerts),
		ActionsExecuted: len(s.actions),
	}
	for _, a := range s.alerts {
		switch a.Status {
		case StatusCompleted:
			out.CompletedAlerts++
		case StatusFailed:
			out.FailedAlerts++
		}
		if a.ReceivedAt.After(cutoff) {
			out.AlertsLast24h++
		}
	}
	for _, a := range s.actions {
		if a.ExecutedAt.After(cutoff) {
			out.ActionsLast24h++
		}
	}
	return out
}

// tail copies the last limit elements reversed to newest-first order.
func tail[T any](entries []T, limit int) []T {
	n := len(entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]T, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, entries[i])
	}
	return out
}
