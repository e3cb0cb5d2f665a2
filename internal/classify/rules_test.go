package classify

import (
	"testing"

	"github.com/helix-ops/healing-agent/internal/alert"
)

func makeAlert(name, description string) alert.Alert {
	a := alert.Alert{
		Status:      "firing",
		Labels:      map[string]string{"severity": "critical", "namespace": "default"},
		Annotations: map[string]string{},
	}
	if name != "" {
		a.Labels["alertname"] = name
	}
	if description != "" {
		a.Annotations["description"] = description
	}
	return a
}

func TestRuleClassifierNameMatch(t *testing.T) {
	c := NewRuleClassifier(nil)

	action, ok := c.Classify(makeAlert("PodCrashLooping", ""))
	if !ok {
		t.Fatal("expected PodCrashLooping to match")
	}
	if action.Type != ActionRestart {
		t.Errorf("action type = %q, want restart", action.Type)
	}
	if action.Target != TargetPod {
		t.Errorf("target = %q, want pod", action.Target)
	}
	if action.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", action.Confidence)
	}
	if action.IntParam("grace_period", 0) != 30 {
		t.Errorf("grace_period = %d, want 30", action.IntParam("grace_period", 0))
	}
}

func TestRuleClassifierDescriptionMatch(t *testing.T) {
	c := NewRuleClassifier(nil)

	// Name does not match any rule; description does, case-insensitively.
	action, ok := c.Classify(makeAlert("SomethingElse", "Pod is in a CRASH LOOP state"))
	if !ok {
		t.Fatal("expected description to match crash loop pattern")
	}
	if action.Type != ActionRestart {
		t.Errorf("action type = %q, want restart", action.Type)
	}
}

func TestRuleClassifierFirstMatchWins(t *testing.T) {
	c := NewRuleClassifier(nil)

	// Description could match several rules; the earliest in the table wins.
	action, ok := c.Classify(makeAlert("", "service is down and memory leak suspected"))
	if !ok {
		t.Fatal("expected a match")
	}
	if action.Confidence != 0.90 {
		t.Errorf("confidence = %v, want 0.90 (service_down should fire first)", action.Confidence)
	}
}

func TestRuleClassifierNoMatch(t *testing.T) {
	c := NewRuleClassifier(nil)

	if _, ok := c.Classify(makeAlert("SomeObscureAlert", "nothing recognizable here")); ok {
		t.Fatal("expected no match for unrecognized alert")
	}
}

func TestRuleClassifierTable(t *testing.T) {
	c := NewRuleClassifier(nil)

	if c.RuleCount() != 9 {
		t.Errorf("rule count = %d, want 9", c.RuleCount())
	}
	if c.Threshold() != 0.85 {
		t.Errorf("threshold = %v, want 0.85", c.Threshold())
	}

	cases := []struct {
		alertName  string
		wantType   ActionType
		wantTarget Target
		wantConf   float64
	}{
		{"PodCrashLooping", ActionRestart, TargetPod, 0.95},
		{"ServiceDown", ActionRestart, TargetDeployment, 0.90},
		{"PodNotReady", ActionInvestigate, TargetPod, 0.70},
		{"MemoryLeakDetected", ActionRestart, TargetPod, 0.92},
		{"HighMemoryUsage", ActionScale, TargetDeployment, 0.80},
		{"HighCPUUsage", ActionScale, TargetDeployment, 0.85},
		{"HighErrorRate", ActionRollback, TargetDeployment, 0.88},
		{"HighLatency", ActionScale, TargetDeployment, 0.82},
		{"TooFewReplicas", ActionScale, TargetDeployment, 0.95},
	}

	for _, tc := range cases {
		action, ok := c.Classify(makeAlert(tc.alertName, ""))
		if !ok {
			t.Errorf("%s: expected match", tc.alertName)
			continue
		}
		if action.Type != tc.wantType {
			t.Errorf("%s: type = %q, want %q", tc.alertName, action.Type, tc.wantType)
		}
		if action.Target != tc.wantTarget {
			t.Errorf("%s: target = %q, want %q", tc.alertName, action.Target, tc.wantTarget)
		}
		if action.Confidence != tc.wantConf {
			t.Errorf("%s: confidence = %v, want %v", tc.alertName, action.Confidence, tc.wantConf)
		}
	}
}

func TestActionParamHelpers(t *testing.T) {
	a := Action{Parameters: map[string]any{
		"grace_period":   float64(60), // JSON decoding yields float64
		"direction":      "up",
		"to_spec":        true,
		"revisions_back": 2,
	}}

	if got := a.IntParam("grace_period", 30); got != 60 {
		t.Errorf("IntParam(grace_period) = %d, want 60", got)
	}
	if got := a.IntParam("missing", 30); got != 30 {
		t.Errorf("IntParam(missing) = %d, want default 30", got)
	}
	if got := a.StringParam("direction", "down"); got != "up" {
		t.Errorf("StringParam(direction) = %q, want up", got)
	}
	if !a.BoolParam("to_spec") {
		t.Error("BoolParam(to_spec) = false, want true")
	}
	if a.BoolParam("missing") {
		t.Error("BoolParam(missing) = true, want false")
	}
	if got := a.IntParam("revisions_back", 1); got != 2 {
		t.Errorf("IntParam(revisions_back) = %d, want 2", got)
	}
}
