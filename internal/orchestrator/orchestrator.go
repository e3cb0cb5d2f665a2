// Package orchestrator runs one alert through the full healing workflow:
// classify, decide on autonomy, execute, record, notify.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/alert"
	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/history"
	"github.com/helix-ops/healing-agent/internal/metrics"
	"github.com/helix-ops/healing-agent/internal/notify"
	"github.com/helix-ops/healing-agent/internal/promquery"
	"github.com/helix-ops/healing-agent/internal/remedy"
	"github.com/helix-ops/healing-agent/internal/telemetry"
)

const logTailLines = 50

// Result summarizes one alert's trip through the pipeline. Returned to the
// webhook caller so Alertmanager operators can see what happened inline.
type Result struct {
	Alert           string         `json:"alert"`
	Action          string         `json:"action,omitempty"`
	Confidence      float64        `json:"confidence,omitempty"`
	AutoExecuted    bool           `json:"auto_executed"`
	ExecutionResult *remedy.Result `json:"execution_result,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Orchestrator wires the pipeline stages together. Alerts may be processed
// concurrently; every stage is safe for concurrent use.
type Orchestrator struct {
	gateway  *classify.Gateway
	executor *remedy.Executor
	notifier notify.Notifier
	store    *history.Store
	prom     *promquery.Client
	logger   *zap.Logger
}

// New builds an orchestrator. notifier may be a disabled channel; prom may
// be a disabled client.
func New(gateway *classify.Gateway, executor *remedy.Executor, notifier notify.Notifier, store *history.Store, prom *promquery.Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		gateway:  gateway,
		executor: executor,
		notifier: notifier,
		store:    store,
		prom:     prom,
		logger:   logger.Named("orchestrator"),
	}
}

// Process runs the healing workflow for one alert:
//
//  1. Record the alert in history (exactly one entry per alert, always).
//  2. Gather reasoner context when the alert will escalate past the rules.
//  3. Classify.
//  4. Decide on auto-execution and execute if approved.
//  5. Notify (best effort).
//
// Process never panics out: any stage failure lands the alert in the failed
// state with the error captured.
func (o *Orchestrator) Process(ctx context.Context, a alert.Alert) (res Result) {
	start := time.Now()
	metrics.InFlightAlerts.Inc()
	defer metrics.InFlightAlerts.Dec()

	ctx, pipelineSpan := telemetry.StartPipelineSpan(ctx, a.Name(), a.Severity())
	defer pipelineSpan.End()

	o.logger.Info("processing alert",
		zap.String("alertname", a.Name()),
		zap.String("service", a.Service()),
		zap.String("severity", a.Severity()))

	entryID := o.store.BeginAlert(a.Name(), a.Severity(), a.Service(), a.Namespace(), a.Pod())

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pipeline panic: %v", r)
			o.logger.Error("alert processing failed", zap.String("alertname", a.Name()), zap.Error(err))
			o.store.CompleteAlert(entryID, history.StatusFailed, "", 0, false, err.Error())
			metrics.RecordAlertProcessed(history.StatusFailed, time.Since(start))
			res = Result{Alert: a.Name(), Error: err.Error()}
		}
	}()

	recentMetrics, podLogs := o.gatherContext(ctx, a)

	classifyCtx, classifySpan := telemetry.StartClassifySpan(ctx, a.Name())
	action := o.gateway.Classify(classifyCtx, a, recentMetrics, podLogs)
	autoExecute := o.gateway.ShouldAutoExecute(action, o.executor.DryRun())
	telemetry.EndClassifySpan(classifySpan, string(action.Type), action.Confidence, autoExecute)

	var execResult *remedy.Result
	if autoExecute {
		o.logger.Info("auto-executing remediation",
			zap.String("action_type", string(action.Type)),
			zap.Float64("confidence", action.Confidence))

		remCtx, remSpan := telemetry.StartRemediationSpan(ctx, string(action.Type), string(action.Target))
		r := o.executor.Execute(remCtx, action, a)
		telemetry.EndRemediationSpan(remSpan, r.Status)
		execResult = &r

		o.store.RecordAction(entryID, string(action.Type), r.Target, r.Status, r.Message, action.Confidence)
	} else {
		o.logger.Info("remediation requires approval",
			zap.String("action_type", string(action.Type)),
			zap.Float64("confidence", action.Confidence))
	}

	o.notifyOutcome(ctx, a, action, execResult, autoExecute)

	resultMessage := ""
	if execResult != nil {
		resultMessage = execResult.Message
	}
	o.store.CompleteAlert(entryID, history.StatusCompleted, string(action.Type), action.Confidence, autoExecute, resultMessage)
	metrics.RecordAlertProcessed(history.StatusCompleted, time.Since(start))

	return Result{
		Alert:           a.Name(),
		Action:          string(action.Type),
		Confidence:      action.Confidence,
		AutoExecuted:    autoExecute,
		ExecutionResult: execResult,
	}
}

// ProcessPayload runs every alert in an Alertmanager webhook delivery.
func (o *Orchestrator) ProcessPayload(ctx context.Context, payload alert.WebhookPayload) []Result {
	o.logger.Info("received webhook",
		zap.Int("alerts_count", len(payload.Alerts)),
		zap.String("status", payload.Status))

	results := make([]Result, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		results = append(results, o.Process(ctx, a))
	}
	return results
}

// gatherContext fetches recent metrics and pod logs, but only when the
// reasoner will actually see them. Both probes are best effort.
func (o *Orchestrator) gatherContext(ctx context.Context, a alert.Alert) ([]classify.Metric, string) {
	if !o.gateway.NeedsContext(a) {
		return nil, ""
	}

	var recentMetrics []classify.Metric
	if o.prom.Enabled() {
		recentMetrics = o.prom.ServiceMetrics(ctx, a.Service(), a.Namespace())
	}

	podLogs := ""
	if pod := a.Pod(); pod != "" {
		namespace := a.Namespace()
		if namespace == "" {
			namespace = o.executor.Namespace()
		}
		logs, err := o.executor.PodLogs(ctx, namespace, pod, logTailLines)
		if err != nil {
			o.logger.Warn("pod log fetch failed", zap.String("pod", pod), zap.Error(err))
		} else {
			podLogs = logs
		}
	}
	return recentMetrics, podLogs
}

// notifyOutcome delivers the notification. Failures are logged, never
// propagated: a broken Slack webhook must not fail remediation.
func (o *Orchestrator) notifyOutcome(ctx context.Context, a alert.Alert, action classify.Action, execResult *remedy.Result, autoExecuted bool) {
	if o.notifier == nil || !o.notifier.Enabled() {
		return
	}

	notifyCtx, span := telemetry.StartNotifySpan(ctx, a.Name())
	defer span.End()

	if err := o.notifier.AlertNotification(notifyCtx, a, action, execResult, autoExecuted); err != nil {
		o.logger.Warn("notification delivery failed", zap.Error(err))
	}
}
