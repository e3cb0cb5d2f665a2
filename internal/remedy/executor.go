/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package remedy executes remediation actions against a Kubernetes cluster.
//
// Safety model:
//   - dry-run mode short-circuits every mutating action
//   - scale-down never goes below one replica
//   - rollback re-applies a recorded ReplicaSet template instead of shelling
//     out to kubectl
//   - investigate never mutates and is exempt from dry-run
package remedy

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/helix-ops/healing-agent/internal/alert"
	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/metrics"
)

// Result statuses.
const (
	StatusSuccess       = "success"
	StatusError         = "error"
	StatusDryRun        = "dry_run"
	StatusInvestigation = "investigation"
)

const (
	restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"
	revisionAnnotation    = "deployment.kubernetes.io/revision"

	// clusterTimeout bounds every API-server round trip.
	clusterTimeout = 10 * time.Second
)

// Result is the outcome of one remediation attempt.
type Result struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Action  string         `json:"action"`
	Target  string         `json:"target,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// ExecutedAction is one completed remediation, kept for stats and audit.
type ExecutedAction struct {
	Type      string    `json:"action"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarizes what the executor has done so far.
type Stats struct {
	TotalActions  int            `json:"total_actions"`
	ActionsByType map[string]int `json:"actions_by_type"`
	DryRunMode    bool           `json:"dry_run_mode"`
}

// Executor performs remediation actions through a Kubernetes client. The
// client is an interface so tests run against the fake clientset.
type Executor struct {
	client    kubernetes.Interface
	namespace string // fallback when the alert names none
	dryRun    bool
	logger    *zap.Logger

	mu      sync.Mutex
	actions []ExecutedAction
}

// NewExecutor builds an executor. namespace is the fallback for alerts that
// carry no namespace label.
func NewExecutor(client kubernetes.Interface, namespace string, dryRun bool, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Executor{
		client:    client,
		namespace: namespace,
		dryRun:    dryRun,
		logger:    logger.Named("remedy"),
	}
}

// DryRun reports whether the executor is in dry-run mode.
func (e *Executor) DryRun() bool { return e.dryRun }

// Namespace returns the fallback namespace.
func (e *Executor) Namespace() string { return e.namespace }

// Execute runs one remediation action for one alert. It never returns an
// error: every failure mode is captured in the Result so the caller can
// record and notify uniformly.
func (e *Executor) Execute(ctx context.Context, action classify.Action, a alert.Alert) Result {
	ctx, cancel := context.WithTimeout(ctx, clusterTimeout)
	defer cancel()

	service := a.Service()
	pod := a.Pod()
	namespace := a.Namespace()
	if namespace == "" {
		namespace = e.namespace
	}

	e.logger.Info("executing remediation",
		zap.String("action_type", string(action.Type)),
		zap.String("target", string(action.Target)),
		zap.String("service", service),
		zap.String("namespace", namespace),
		zap.Bool("dry_run", e.dryRun))

	var res Result
	switch action.Type {
	case classify.ActionRestart:
		res = e.restart(ctx, namespace, service, pod, action)
	case classify.ActionScale:
		res = e.scale(ctx, namespace, service, action)
	case classify.ActionRollback:
		res = e.rollback(ctx, namespace, service, action)
	case classify.ActionInvestigate:
		res = e.investigate(ctx, namespace, service, pod)
	default:
		e.logger.Error("unknown action type", zap.String("action_type", string(action.Type)))
		res = Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Unknown action type: %s", action.Type),
			Action:  string(action.Type),
		}
	}

	metrics.RecordRemediation(string(action.Type), res.Status)
	if res.Status == StatusSuccess || res.Status == StatusInvestigation {
		e.record(res)
	}
	return res
}

// restart deletes a named pod, or rolling-restarts the service's deployment
// when the alert names no pod.
func (e *Executor) restart(ctx context.Context, namespace, service, pod string, action classify.Action) Result {
	if e.dryRun {
		return Result{
			Status:  StatusDryRun,
			Message: fmt.Sprintf("Would restart pod(s) for %s", service),
			Action:  "restart",
		}
	}

	if pod != "" {
		grace := int64(action.IntParam("grace_period", 30))
		err := e.client.CoreV1().Pods(namespace).Delete(ctx, pod, metav1.DeleteOptions{
			GracePeriodSeconds: &grace,
		})
		if err != nil {
			return e.apiFailure("restart", fmt.Sprintf("Failed to restart pod %s", pod), err)
		}
		e.logger.Info("pod deleted for restart", zap.String("pod", pod), zap.Int64("grace_period", grace))
		return Result{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("Restarted pod %s", pod),
			Action:  "restart",
			Target:  pod,
		}
	}

	// No specific pod: trigger a rolling restart of the whole deployment.
	deployments := e.client.AppsV1().Deployments(namespace)
	deployment, err := deployments.Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return e.apiFailure("restart", fmt.Sprintf("Failed to restart %s", service), err)
	}

	if deployment.Spec.Template.Annotations == nil {
		deployment.Spec.Template.Annotations = map[string]string{}
	}
	deployment.Spec.Template.Annotations[restartedAtAnnotation] = time.Now().UTC().Format(time.RFC3339)

	if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
		return e.apiFailure("restart", fmt.Sprintf("Failed to restart %s", service), err)
	}

	e.logger.Info("rolling restart triggered", zap.String("deployment", service))
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Triggered rolling restart of %s", service),
		Action:  "restart",
		Target:  service,
	}
}

// scale adjusts the deployment's replica count: to the declared count when
// to_spec is set, otherwise up or down by increment with a floor of one.
func (e *Executor) scale(ctx context.Context, namespace, service string, action classify.Action) Result {
	direction := action.StringParam("direction", "up")
	increment := int32(action.IntParam("increment", 1))
	toSpec := action.BoolParam("to_spec")

	if e.dryRun {
		return Result{
			Status:  StatusDryRun,
			Message: fmt.Sprintf("Would scale %s %s by %d", service, direction, increment),
			Action:  "scale",
		}
	}

	deployments := e.client.AppsV1().Deployments(namespace)
	deployment, err := deployments.Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return e.apiFailure("scale", fmt.Sprintf("Failed to scale %s", service), err)
	}

	specReplicas := int32(1)
	if deployment.Spec.Replicas != nil {
		specReplicas = *deployment.Spec.Replicas
	}

	current := specReplicas
	var desired int32
	switch {
	case toSpec:
		// Heal drift: bring the running count back to the declared one.
		current = deployment.Status.Replicas
		desired = specReplicas
	case direction == "up":
		desired = current + increment
	default:
		desired = current - increment
		if desired < 1 {
			desired = 1 // never scale to zero
		}
	}

	deployment.Spec.Replicas = &desired
	if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
		return e.apiFailure("scale", fmt.Sprintf("Failed to scale %s", service), err)
	}

	e.logger.Info("deployment scaled",
		zap.String("deployment", service),
		zap.Int32("from", current),
		zap.Int32("to", desired))
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Scaled %s from %d to %d", service, current, desired),
		Action:  "scale",
		Target:  service,
		Detail:  map[string]any{"from": current, "to": desired},
	}
}

// rollback re-applies the pod template of an earlier revision's ReplicaSet.
func (e *Executor) rollback(ctx context.Context, namespace, service string, action classify.Action) Result {
	revisionsBack := action.IntParam("revisions_back", 1)

	if e.dryRun {
		return Result{
			Status:  StatusDryRun,
			Message: fmt.Sprintf("Would rollback %s by %d revision(s)", service, revisionsBack),
			Action:  "rollback",
		}
	}

	deployments := e.client.AppsV1().Deployments(namespace)
	deployment, err := deployments.Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return e.apiFailure("rollback", fmt.Sprintf("Failed to rollback %s", service), err)
	}

	currentRevision, _ := strconv.Atoi(deployment.Annotations[revisionAnnotation])
	if currentRevision == 0 {
		currentRevision = 1
	}
	targetRevision := currentRevision - revisionsBack
	if targetRevision < 1 {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to rollback %s: no revision %d", service, targetRevision),
			Action:  "rollback",
		}
	}

	target, err := e.findRevision(ctx, namespace, deployment, targetRevision)
	if err != nil {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to rollback %s: %v", service, err),
			Action:  "rollback",
		}
	}

	// Re-apply the old template. The hash label belongs to the ReplicaSet,
	// not the deployment spec.
	template := target.Spec.Template.DeepCopy()
	delete(template.Labels, appsv1.DefaultDeploymentUniqueLabelKey)
	deployment.Spec.Template = *template

	if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
		return e.apiFailure("rollback", fmt.Sprintf("Failed to rollback %s", service), err)
	}

	e.logger.Info("deployment rolled back",
		zap.String("deployment", service),
		zap.Int("from_revision", currentRevision),
		zap.Int("to_revision", targetRevision))
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Rolled back %s by %d revision(s)", service, revisionsBack),
		Action:  "rollback",
		Target:  service,
		Detail:  map[string]any{"from_revision": currentRevision, "to_revision": targetRevision},
	}
}

// findRevision locates the ReplicaSet owned by the deployment that carries
// the wanted revision annotation.
func (e *Executor) findRevision(ctx context.Context, namespace string, deployment *appsv1.Deployment, revision int) (*appsv1.ReplicaSet, error) {
	selector, err := metav1.LabelSelectorAsSelector(deployment.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}

	list, err := e.client.AppsV1().ReplicaSets(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list replicasets: %w", err)
	}

	want := strconv.Itoa(revision)
	for i := range list.Items {
		rs := &list.Items[i]
		if !metav1.IsControlledBy(rs, deployment) {
			continue
		}
		if rs.Annotations[revisionAnnotation] == want {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("revision %d not found in replicaset history", revision)
}

func (e *Executor) apiFailure(action, message string, err error) Result {
	e.logger.Error("remediation failed",
		zap.String("action_type", action),
		zap.Error(err))

	if apierrors.IsNotFound(err) {
		message = message + ": target not found"
	} else {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return Result{
		Status:  StatusError,
		Message: message,
		Action:  action,
		Detail:  map[string]any{"error": err.Error()},
	}
}

func (e *Executor) record(res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, ExecutedAction{
		Type:      res.Action,
		Target:    res.Target,
		Status:    res.Status,
		Message:   res.Message,
		Timestamp: time.Now().UTC(),
	})
}

// ActionHistory returns a copy of the executed actions, oldest first.
func (e *Executor) ActionHistory() []ExecutedAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ExecutedAction, len(e.actions))
	copy(out, e.actions)
	return out
}

// ExecutionStats summarizes executed actions by type.
func (e *Executor) ExecutionStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	byType := map[string]int{"restart": 0, "scale": 0, "rollback": 0}
	for _, a := range e.actions {
		if _, ok := byType[a.Type]; ok {
			byType[a.Type]++
		}
	}
	return Stats{
		TotalActions:  len(e.actions),
		ActionsByType: byType,
		DryRunMode:    e.dryRun,
	}
}
