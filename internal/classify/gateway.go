package classify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/alert"
	"github.com/helix-ops/healing-agent/internal/metrics"
)

// Stats is a snapshot of the gateway's counters. Percentages are computed
// at read time and are zero while no alert has been classified.
type Stats struct {
	TotalAlerts      int64 `json:"total_alerts"`
	RuleBasedMatches int64 `json:"rule_based_matches"`
	AIAnalysisUsed   int64 `json:"ai_analysis_used"`
	AutoExecuted     int64 `json:"auto_executed"`
	ManualReview     int64 `json:"manual_review"`

	RuleBasedPercentage   float64 `json:"rule_based_percentage"`
	AIUsagePercentage     float64 `json:"ai_usage_percentage"`
	AutoExecutePercentage float64 `json:"auto_execute_percentage"`
}

// Gateway composes the rule classifier and the reasoner into a strict
// three-tier waterfall: rules, then reasoner, then a safe default. Each tier
// is tried at most once per alert; a rule match never consults the reasoner.
//
// The gateway owns the classification counters. Alerts are classified
// concurrently, so every counter mutation goes through the mutex.
type Gateway struct {
	rules    *RuleClassifier
	reasoner *ReasonerClassifier
	logger   *zap.Logger

	mu               sync.Mutex
	totalAlerts      int64
	ruleBasedMatches int64
	aiAnalysisUsed   int64
	autoExecuted     int64
	manualReview     int64
}

// NewGateway builds the classification waterfall.
func NewGateway(rules *RuleClassifier, reasoner *ReasonerClassifier, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{rules: rules, reasoner: reasoner, logger: logger}
}

// Classify determines the remediation action for an alert. It always returns
// an action: when neither tier can classify, the result is an investigate
// action with zero confidence requesting manual review.
func (g *Gateway) Classify(ctx context.Context, a alert.Alert, recentMetrics []Metric, podLogs string) Action {
	g.inc(&g.totalAlerts)

	name := a.Name()
	g.logger.Info("classifying alert", zap.String("alertname", name))

	if action, ok := g.rules.Classify(a); ok {
		g.inc(&g.ruleBasedMatches)
		metrics.RecordClassification(metrics.TierRule, string(action.Type))
		g.logger.Info("rule-based match found",
			zap.String("action_type", string(action.Type)),
			zap.Float64("confidence", action.Confidence))
		return action
	}

	if g.reasoner.Available() {
		g.inc(&g.aiAnalysisUsed)
		g.logger.Info("no rule match, using AI analysis", zap.String("alertname", name))

		if action, ok := g.reasoner.Analyze(ctx, a, recentMetrics, podLogs); ok {
			metrics.RecordClassification(metrics.TierReasoner, string(action.Type))
			return action
		}
	}

	g.logger.Warn("no classification possible, flagging for manual review",
		zap.String("alertname", name))
	g.inc(&g.manualReview)
	metrics.RecordClassification(metrics.TierFallback, string(ActionInvestigate))

	return Action{
		Type:       ActionInvestigate,
		Target:     TargetPod,
		Parameters: map[string]any{"reason": "No pattern match and AI unavailable"},
		Confidence: 0.0,
		Reason:     "Unable to classify - requires manual investigation",
	}
}

// ShouldAutoExecute decides whether an action runs unattended. Dry-run and
// investigate actions never auto-execute; everything else needs confidence
// at or above the rule classifier's threshold. The only side effect is the
// auto-executed counter when the decision is yes.
func (g *Gateway) ShouldAutoExecute(action Action, dryRun bool) bool {
	if dryRun {
		return false
	}
	if action.Type == ActionInvestigate {
		return false
	}

	threshold := g.rules.Threshold()
	execute := action.Confidence >= threshold
	if execute {
		g.inc(&g.autoExecuted)
	}

	g.logger.Info("auto-execution decision",
		zap.String("action_type", string(action.Type)),
		zap.Float64("confidence", action.Confidence),
		zap.Float64("threshold", threshold),
		zap.Bool("auto_execute", execute))

	return execute
}

// Stats returns a consistent snapshot of the counters.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{
		TotalAlerts:      g.totalAlerts,
		RuleBasedMatches: g.ruleBasedMatches,
		AIAnalysisUsed:   g.aiAnalysisUsed,
		AutoExecuted:     g.autoExecuted,
		ManualReview:     g.manualReview,
	}
	if s.TotalAlerts > 0 {
		total := float64(s.TotalAlerts)
		s.RuleBasedPercentage = float64(s.RuleBasedMatches) / total * 100
		s.AIUsagePercentage = float64(s.AIAnalysisUsed) / total * 100
		s.AutoExecutePercentage = float64(s.AutoExecuted) / total * 100
	}
	return s
}

// ReasonerAvailable reports whether the escalation tier is usable.
func (g *Gateway) ReasonerAvailable() bool { return g.reasoner.Available() }

// NeedsContext reports whether classifying this alert will reach the
// reasoner, so callers know when gathering metrics and logs is worthwhile.
func (g *Gateway) NeedsContext(a alert.Alert) bool {
	return g.reasoner.Available() && !g.rules.matches(a)
}

func (g *Gateway) inc(counter *int64) {
	g.mu.Lock()
	*counter++
	g.mu.Unlock()
}
