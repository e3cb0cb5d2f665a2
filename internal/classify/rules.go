package classify

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/alert"
)

// AutoExecuteThreshold is the minimum confidence at which a recommendation
// runs without human approval.
const AutoExecuteThreshold = 0.85

// Rule matches one well-known alert pattern and carries its fixed response.
type Rule struct {
	// Name identifies the rule in logs and stats.
	Name string

	// AlertName matches the alertname label exactly.
	AlertName string

	// Pattern matches the alert description, case-insensitively.
	Pattern *regexp.Regexp

	// Action is the fixed response, including a pattern-specific confidence.
	Action Action
}

// RuleClassifier matches alerts against an ordered rule table. Earlier rules
// win; within a rule, the name check runs before the description check.
// Purely functional: no I/O, no mutable state beyond the static table.
type RuleClassifier struct {
	rules  []Rule
	logger *zap.Logger
}

// NewRuleClassifier builds a classifier over the default rule table.
func NewRuleClassifier(logger *zap.Logger) *RuleClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleClassifier{rules: defaultRules(), logger: logger}
}

// Classify returns the first matching rule's action, or (zero, false) when
// no rule fires. A miss is not an error: it signals escalation.
func (c *RuleClassifier) Classify(a alert.Alert) (Action, bool) {
	name := a.Labels["alertname"]
	description := a.Description()

	for _, rule := range c.rules {
		if rule.AlertName == name {
			c.logger.Info("alert name matched rule",
				zap.String("rule", rule.Name),
				zap.Float64("confidence", rule.Action.Confidence))
			return rule.Action, true
		}
		if rule.Pattern.MatchString(description) {
			c.logger.Info("description matched rule pattern",
				zap.String("rule", rule.Name),
				zap.Float64("confidence", rule.Action.Confidence))
			return rule.Action, true
		}
	}

	c.logger.Warn("no rule matched, escalating", zap.String("alertname", name))
	return Action{}, false
}

// matches reports whether any rule would fire, without logging or side
// effects. Used to decide whether reasoner context is worth gathering.
func (c *RuleClassifier) matches(a alert.Alert) bool {
	name := a.Labels["alertname"]
	description := a.Description()
	for _, rule := range c.rules {
		if rule.AlertName == name || rule.Pattern.MatchString(description) {
			return true
		}
	}
	return false
}

// Threshold returns the auto-execute confidence threshold.
func (c *RuleClassifier) Threshold() float64 { return AutoExecuteThreshold }

// RuleCount returns the number of configured rules.
func (c *RuleClassifier) RuleCount() int { return len(c.rules) }

func defaultRules() []Rule {
	return []Rule{
		// Pod health
		{
			Name:      "pod_crash_loop",
			AlertName: "PodCrashLooping",
			Pattern:   regexp.MustCompile(`(?i)crash.*loop`),
			Action: Action{
				Type:       ActionRestart,
				Target:     TargetPod,
				Parameters: map[string]any{"grace_period": 30},
				Confidence: 0.95,
				Reason:     "Pod is crash looping - restart with fresh state",
			},
		},
		{
			Name:      "service_down",
			AlertName: "ServiceDown",
			Pattern:   regexp.MustCompile(`(?i)service.*down|up.*== 0`),
			Action: Action{
				Type:       ActionRestart,
				Target:     TargetDeployment,
				Parameters: map[string]any{"replicas": "current"},
				Confidence: 0.90,
				Reason:     "Service is down - restart all pods",
			},
		},
		{
			Name:      "pod_not_ready",
			AlertName: "PodNotReady",
			Pattern:   regexp.MustCompile(`(?i)pod.*not ready|pending|unknown`),
			Action: Action{
				Type:       ActionInvestigate,
				Target:     TargetPod,
				Parameters: map[string]any{"check_events": true, "check_logs": true},
				Confidence: 0.70,
				Reason:     "Pod not ready - needs investigation",
			},
		},

		// Memory
		{
			Name:      "memory_leak",
			AlertName: "MemoryLeakDetected",
			Pattern:   regexp.MustCompile(`(?i)memory.*leak|memory.*95`),
			Action: Action{
				Type:       ActionRestart,
				Target:     TargetPod,
				Parameters: map[string]any{"drain_connections": true, "grace_period": 60},
				Confidence: 0.92,
				Reason:     "Memory leak detected - restart to reclaim memory",
			},
		},
		{
			Name:      "high_memory_usage",
			AlertName: "HighMemoryUsage",
			Pattern:   regexp.MustCompile(`(?i)memory.*85|high memory`),
			Action: Action{
				Type:       ActionScale,
				Target:     TargetDeployment,
				Parameters: map[string]any{"direction": "up", "increment": 1},
				Confidence: 0.80,
				Reason:     "High memory usage - scale horizontally",
			},
		},

		// CPU
		{
			Name:      "high_cpu",
			AlertName: "HighCPUUsage",
			Pattern:   regexp.MustCompile(`(?i)cpu.*80|high cpu`),
			Action: Action{
				Type:       ActionScale,
				Target:     TargetDeployment,
				Parameters: map[string]any{"direction": "up", "increment": 1},
				Confidence: 0.85,
				Reason:     "High CPU usage - scale horizontally",
			},
		},

		// Error rate
		{
			Name:      "high_error_rate",
			AlertName: "HighErrorRate",
			Pattern:   regexp.MustCompile(`(?i)error rate.*5|errors.*high`),
			Action: Action{
				Type:       ActionRollback,
				Target:     TargetDeployment,
				Parameters: map[string]any{"revisions_back": 1},
				Confidence: 0.88,
				Reason:     "High error rate - likely bad deployment, rollback",
			},
		},

		// Latency
		{
			Name:      "high_latency",
			AlertName: "HighLatency",
			Pattern:   regexp.MustCompile(`(?i)latency.*0\.5|slow.*response`),
			Action: Action{
				Type:       ActionScale,
				Target:     TargetDeployment,
				Parameters: map[string]any{"direction": "up", "increment": 2},
				Confidence: 0.82,
				Reason:     "High latency - scale to handle load",
			},
		},

		// Replicas
		{
			Name:      "too_few_replicas",
			AlertName: "TooFewReplicas",
			Pattern:   regexp.MustCompile(`(?i)too few replicas|replicas.*low`),
			Action: Action{
				Type:       ActionScale,
				Target:     TargetDeployment,
				Parameters: map[string]any{"direction": "up", "to_spec": true},
				Confidence: 0.95,
				Reason:     "Replicas below specification - scale to match spec",
			},
		},
	}
}
