package history

import (
	"fmt"
	"testing"
)

func TestBeginAndCompleteAlert(t *testing.T) {
	s := NewStore()

	id := s.BeginAlert("PodCrashLooping", "critical", "api", "prod", "api-1")
	if id == "" {
		t.Fatal("expected a generated ID")
	}

	alerts := s.RecentAlerts(10)
	if len(alerts) != 1 {
		t.Fatalf("len = %d, want 1", len(alerts))
	}
	if alerts[0].Status != StatusProcessing {
		t.Errorf("status = %q, want processing", alerts[0].Status)
	}
	if alerts[0].CompletedAt != nil {
		t.Error("CompletedAt should be nil while processing")
	}

	s.CompleteAlert(id, StatusCompleted, "restart", 0.95, true, "Restarted pod api-1")

	alerts = s.RecentAlerts(10)
	got := alerts[0]
	if got.Status != StatusCompleted || got.ActionType != "restart" || !got.AutoExecuted {
		t.Errorf("entry = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set on completion")
	}
}

func TestCompleteUnknownAlertIsNoop(t *testing.T) {
	s := NewStore()
	s.BeginAlert("A", "warning", "svc", "", "")

	s.CompleteAlert("no-such-id", StatusFailed, "", 0, false, "")

	if got := s.RecentAlerts(1)[0].Status; got != StatusProcessing {
		t.Errorf("status = %q, unknown ID must not mutate anything", got)
	}
}

func TestRecentAlertsNewestFirst(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.BeginAlert(fmt.Sprintf("Alert%d", i), "warning", "svc", "", "")
	}

	alerts := s.RecentAlerts(3)
	if len(alerts) != 3 {
		t.Fatalf("len = %d, want 3", len(alerts))
	}
	if alerts[0].AlertName != "Alert4" || alerts[2].AlertName != "Alert2" {
		t.Errorf("order = [%s %s %s], want newest first", alerts[0].AlertName, alerts[1].AlertName, alerts[2].AlertName)
	}
}

func TestRecordActionLinksAlert(t *testing.T) {
	s := NewStore()
	alertID := s.BeginAlert("HighErrorRate", "critical", "checkout", "prod", "")

	entry := s.RecordAction(alertID, "rollback", "checkout", "success", "Rolled back checkout by 1 revision(s)", 0.88)
	if entry.ID == "" || entry.AlertID != alertID {
		t.Errorf("entry = %+v", entry)
	}

	actions := s.RecentActions(0)
	if len(actions) != 1 {
		t.Fatalf("len = %d, want 1", len(actions))
	}
	if actions[0].Type != "rollback" {
		t.Errorf("type = %q", actions[0].Type)
	}
}

func TestSummarize(t *testing.T) {
	s := NewStore()

	a := s.BeginAlert("A", "critical", "svc", "", "")
	b := s.BeginAlert("B", "warning", "svc", "", "")
	s.BeginAlert("C", "warning", "svc", "", "") // stays processing

	s.CompleteAlert(a, StatusCompleted, "restart", 0.95, true, "ok")
	s.CompleteAlert(b, StatusFailed, "scale", 0.80, false, "boom")
	s.RecordAction(a, "restart", "svc", "success", "ok", 0.95)

	sum := s.Summarize()
	if sum.TotalAlerts != 3 || sum.CompletedAlerts != 1 || sum.FailedAlerts != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.ActionsExecuted != 1 || sum.AlertsLast24h != 3 || sum.ActionsLast24h != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestEvictionCap(t *testing.T) {
	s := NewStore()
	for i := 0; i < maxEntries+50; i++ {
		s.BeginAlert(fmt.Sprintf("Alert%d", i), "warning", "svc", "", "")
	}

	alerts := s.RecentAlerts(0)
	if len(alerts) != maxEntries {
		t.Fatalf("len = %d, want cap %d", len(alerts), maxEntries)
	}
	if alerts[0].AlertName != fmt.Sprintf("Alert%d", maxEntries+49) {
		t.Errorf("newest = %s, oldest entries should be evicted", alerts[0].AlertName)
	}
}
