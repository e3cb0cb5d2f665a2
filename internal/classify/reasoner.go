package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/alert"
	"github.com/helix-ops/healing-agent/internal/llm"
	hmetrics "github.com/helix-ops/healing-agent/internal/metrics"
	"github.com/helix-ops/healing-agent/internal/telemetry"
)

// aiReasonPrefix marks recommendations that originated from the reasoner,
// so downstream consumers can tell them from rule matches.
const aiReasonPrefix = "AI Analysis: "

// Metric is one recent metric value supplied as reasoner context.
type Metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

const systemPrompt = `You are an expert SRE (Site Reliability Engineer) analyzing Kubernetes alerts.

Your task is to:
1. Analyze the alert, metrics, and logs provided
2. Determine the root cause
3. Recommend a safe remediation action

Available remediation actions:
- restart: Restart pods (for crashes, memory leaks)
- scale: Scale deployment up/down (for load issues)
- rollback: Rollback to previous version (for bad deployments)
- investigate: Flag for human review (for complex issues)

CRITICAL RULES:
- Always choose the SAFEST action
- If unsure, choose "investigate"
- Never recommend destructive actions
- Consider blast radius (impact on users)

Response format (JSON):
{
    "action_type": "restart|scale|rollback|investigate",
    "target": "pod|deployment",
    "confidence": 0.0-1.0,
    "reason": "Clear explanation of root cause and why this action",
    "parameters": {"key": "value"}
}

Be concise but thorough. Focus on actionable insights.`

// ReasonerClassifier escalates unmatched alerts to an external language
// model. Availability is decided once at construction: without an API key
// the reasoner stays disabled for the process lifetime.
//
// No failure propagates out of Analyze. Transport errors yield absence;
// malformed replies degrade to a low-confidence investigate action that
// carries the raw response for a human to inspect.
type ReasonerClassifier struct {
	provider  llm.Provider
	model     string
	available bool
	logger    *zap.Logger
}

// NewReasonerClassifier wires a reasoner over the given provider. A nil
// provider or empty API key leaves the reasoner permanently unavailable.
func NewReasonerClassifier(provider llm.Provider, cfg llm.ProviderConfig, logger *zap.Logger) *ReasonerClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	available := provider != nil && cfg.APIKey != ""
	if !available {
		logger.Warn("reasoner API key not set, AI analysis disabled")
	}
	return &ReasonerClassifier{
		provider:  provider,
		model:     cfg.Model,
		available: available,
		logger:    logger,
	}
}

// Available reports whether the reasoner can be consulted.
func (r *ReasonerClassifier) Available() bool { return r.available }

// Analyze asks the reasoner for a remediation recommendation. Returns
// (zero, false) when the reasoner is unavailable or the call itself fails;
// the caller must treat that as "could not classify", not as an error.
func (r *ReasonerClassifier) Analyze(ctx context.Context, a alert.Alert, metrics []Metric, podLogs string) (Action, bool) {
	if !r.available {
		return Action{}, false
	}

	userContext := buildContext(a, metrics, podLogs)

	r.logger.Info("sending alert to reasoner", zap.String("alertname", a.Name()))

	ctx, span := telemetry.StartLLMCallSpan(ctx, r.model, r.provider.Name())

	resp, err := r.provider.Complete(ctx, &llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: userContext},
		},
		// Low randomness so repeated calls on similar input converge.
		Temperature: 0.1,
		TopP:        0.9,
		MaxTokens:   1000,
	})
	if err != nil {
		span.End()
		r.logger.Error("reasoner call failed", zap.Error(err))
		return Action{}, false
	}
	telemetry.EndLLMCallSpan(span, int64(resp.PromptTokens), int64(resp.CompTokens))

	hmetrics.RecordReasonerTokens(resp.Model, resp.PromptTokens, resp.CompTokens)

	r.logger.Info("reasoner analysis complete", zap.Int("response_length", len(resp.Content)))
	return r.parseResponse(resp.Content), true
}

// buildContext assembles the bounded textual context for the reasoner:
// alert identity, description/summary, at most 5 recent metrics, and the
// last 2000 characters of pod logs.
func buildContext(a alert.Alert, metrics []Metric, podLogs string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `# ALERT ANALYSIS REQUEST

## Alert Details
- **Name**: %s
- **Severity**: %s
- **Service**: %s
- **Namespace**: %s
- **Fired At**: %s

## Description
%s

## Summary
%s
`,
		a.Name(),
		a.Severity(),
		a.Service(),
		orUnknown(a.Namespace()),
		a.StartsAt.Format("2006-01-02T15:04:05Z07:00"),
		orDefault(a.Description(), "No description available"),
		orDefault(a.Summary(), "No summary available"),
	)

	if len(metrics) > 0 {
		b.WriteString("\n## Recent Metrics (last 15 minutes)\n")
		for i, m := range metrics {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", m.Name, m.Value)
		}
	}

	if podLogs != "" {
		if len(podLogs) > 2000 {
			podLogs = podLogs[len(podLogs)-2000:]
		}
		fmt.Fprintf(&b, "\n## Recent Pod Logs (last 50 lines)\n```\n%s\n```\n", podLogs)
	}

	b.WriteString(`
## Your Task
Analyze the above information and provide:
1. Root cause analysis
2. Recommended remediation action
3. Confidence level (0.0-1.0)

Respond ONLY with valid JSON in the format specified in the system prompt.
`)

	return b.String()
}

// reasonerReply is the JSON shape the system prompt demands.
type reasonerReply struct {
	ActionType string         `json:"action_type"`
	Target     string         `json:"target"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Parameters map[string]any `json:"parameters"`
}

// parseResponse converts untrusted reply text into a typed Action. Invalid
// JSON degrades to investigate/0.3 carrying the raw response; anything else
// unexpected degrades to investigate/0.0. Nothing is thrown.
func (r *ReasonerClassifier) parseResponse(raw string) Action {
	text := stripCodeFence(strings.TrimSpace(raw))

	var reply reasonerReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		r.logger.Error("failed to parse reasoner response as JSON",
			zap.Error(err), zap.String("response", truncate(raw, 200)))
		return inconclusiveAction(raw)
	}
	if reply.ActionType == "" || reply.Reason == "" {
		// Parsed, but not the shape the prompt demanded.
		r.logger.Error("reasoner response missing required keys",
			zap.String("response", truncate(raw, 200)))
		return inconclusiveAction(raw)
	}

	action, err := replyToAction(reply)
	if err != nil {
		r.logger.Error("unexpected error converting reasoner response", zap.Error(err))
		return Action{
			Type:       ActionInvestigate,
			Target:     TargetPod,
			Parameters: map[string]any{},
			Confidence: 0.0,
			Reason:     fmt.Sprintf("AI analysis error: %v", err),
		}
	}

	r.logger.Info("reasoner recommendation parsed",
		zap.String("action_type", string(action.Type)),
		zap.Float64("confidence", action.Confidence))
	return action
}

// inconclusiveAction wraps a present-but-malformed reply so a human still
// has the original signal to inspect.
func inconclusiveAction(raw string) Action {
	return Action{
		Type:       ActionInvestigate,
		Target:     TargetPod,
		Parameters: map[string]any{"ai_response": truncate(raw, 500)},
		Confidence: 0.3,
		Reason:     fmt.Sprintf("AI analysis inconclusive. Response: %s...", truncate(raw, 200)),
	}
}

func replyToAction(reply reasonerReply) (Action, error) {
	if reply.Confidence < 0.0 || reply.Confidence > 1.0 {
		return Action{}, fmt.Errorf("confidence %v out of range", reply.Confidence)
	}

	target := Target(reply.Target)
	if reply.Target == "" {
		target = TargetPod
	}
	params := reply.Parameters
	if params == nil {
		params = map[string]any{}
	}

	return Action{
		Type:       ActionType(reply.ActionType),
		Target:     target,
		Parameters: params,
		Confidence: reply.Confidence,
		Reason:     aiReasonPrefix + reply.Reason,
	}, nil
}

// stripCodeFence removes a surrounding markdown code block, tolerating an
// optional "json" language tag.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

// truncate caps s at n bytes without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func orUnknown(s string) string { return orDefault(s, "unknown") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
