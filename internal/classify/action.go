// Package classify turns alerts into remediation recommendations. It layers
// a deterministic rule table over an LLM-backed reasoner: rules handle the
// well-known failure patterns, the reasoner handles the long tail, and a
// confidence threshold decides whether a recommendation runs unattended.
package classify

// ActionType is the closed set of remediation actions the executor knows
// how to perform.
type ActionType string

const (
	// ActionRestart deletes a pod (or rolling-restarts a deployment) so its
	// controller recreates it with fresh state.
	ActionRestart ActionType = "restart"

	// ActionScale changes a deployment's replica count.
	ActionScale ActionType = "scale"

	// ActionRollback reverts a deployment to an earlier revision.
	ActionRollback ActionType = "rollback"

	// ActionInvestigate performs no mutation; it gathers diagnostics and
	// flags the alert for a human. Never auto-executed.
	ActionInvestigate ActionType = "investigate"
)

// Target is what a remediation action operates on.
type Target string

const (
	TargetPod        Target = "pod"
	TargetDeployment Target = "deployment"
)

// Action is a recommended remediation. It is a value object: built once per
// classification attempt and never mutated afterwards.
type Action struct {
	// Type is the remediation to perform.
	Type ActionType `json:"action_type"`

	// Target is the object kind the action operates on.
	Target Target `json:"target"`

	// Parameters are free-form and interpreted per action type:
	// grace_period (restart), direction/increment/to_spec (scale),
	// revisions_back (rollback).
	Parameters map[string]any `json:"parameters"`

	// Confidence in [0.0, 1.0] expresses how safe this action is to run
	// without a human in the loop.
	Confidence float64 `json:"confidence"`

	// Reason is a human-readable explanation. AI-origin reasons carry the
	// "AI Analysis:" prefix so consumers can tell them from rule matches.
	Reason string `json:"reason"`
}

// IntParam reads an integer parameter, tolerating the float64 values that
// JSON decoding produces. Returns def when absent or not numeric.
func (a Action) IntParam(key string, def int) int {
	switch v := a.Parameters[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// StringParam reads a string parameter, returning def when absent.
func (a Action) StringParam(key, def string) string {
	if v, ok := a.Parameters[key].(string); ok && v != "" {
		return v
	}
	return def
}

// BoolParam reads a boolean parameter, returning false when absent.
func (a Action) BoolParam(key string) bool {
	v, _ := a.Parameters[key].(bool)
	return v
}
