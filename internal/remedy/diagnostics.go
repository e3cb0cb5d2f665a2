/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package remedy

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const logTailLines = 50

// investigate gathers diagnostics without mutating anything. Every probe is
// best effort: a partial picture is still worth handing to a human, so a
// failing fetch is recorded in the detail map and the rest still run.
func (e *Executor) investigate(ctx context.Context, namespace, service, pod string) Result {
	e.logger.Info("gathering investigation data",
		zap.String("service", service),
		zap.String("pod", pod))

	data := map[string]any{}

	if pod != "" {
		if p, err := e.client.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{}); err == nil {
			data["pod_status"] = podStatus(p)
		} else {
			e.logger.Warn("pod status fetch failed", zap.String("pod", pod), zap.Error(err))
			data["pod_status_error"] = err.Error()
		}

		if logs, err := e.PodLogs(ctx, namespace, pod, logTailLines); err == nil {
			data["recent_logs"] = logs
		}
	}

	if deployment, err := e.client.AppsV1().Deployments(namespace).Get(ctx, service, metav1.GetOptions{}); err == nil {
		replicas := int32(0)
		if deployment.Spec.Replicas != nil {
			replicas = *deployment.Spec.Replicas
		}
		data["deployment"] = map[string]any{
			"replicas":  replicas,
			"available": deployment.Status.AvailableReplicas,
			"ready":     deployment.Status.ReadyReplicas,
			"updated":   deployment.Status.UpdatedReplicas,
		}
	}

	subject := pod
	if subject == "" {
		subject = service
	}
	if events, err := e.recentEvents(ctx, namespace, subject); err == nil && len(events) > 0 {
		data["events"] = events
	}

	e.logger.Info("investigation data gathered", zap.Int("sections", len(data)))
	return Result{
		Status:  StatusInvestigation,
		Message: "Gathered diagnostic data - requires manual review",
		Action:  "investigate",
		Target:  subject,
		Detail:  data,
	}
}

// PodLogs fetches the last tailLines of a pod's logs. Used both by the
// investigate action and to give the reasoner context before escalation.
func (e *Executor) PodLogs(ctx context.Context, namespace, pod string, tailLines int64) (string, error) {
	raw, err := e.client.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
		TailLines: &tailLines,
	}).Do(ctx).Raw()
	if err != nil {
		return "", fmt.Errorf("fetch logs for %s/%s: %w", namespace, pod, err)
	}
	return string(raw), nil
}

func podStatus(p *corev1.Pod) map[string]any {
	conditions := make([]map[string]any, 0, len(p.Status.Conditions))
	for _, c := range p.Status.Conditions {
		conditions = append(conditions, map[string]any{
			"type":   string(c.Type),
			"status": string(c.Status),
			"reason": c.Reason,
		})
	}
	containers := make([]map[string]any, 0, len(p.Status.ContainerStatuses))
	for _, c := range p.Status.ContainerStatuses {
		containers = append(containers, map[string]any{
			"name":          c.Name,
			"ready":         c.Ready,
			"restart_count": c.RestartCount,
		})
	}
	return map[string]any{
		"phase":              string(p.Status.Phase),
		"conditions":         conditions,
		"container_statuses": containers,
	}
}

// recentEvents lists up to 10 events involving the named object.
func (e *Executor) recentEvents(ctx context.Context, namespace, name string) ([]map[string]any, error) {
	list, err := e.client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "involvedObject.name=" + name,
	})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, 10)
	for i, ev := range list.Items {
		if i >= 10 {
			break
		}
		out = append(out, map[string]any{
			"type":      ev.Type,
			"reason":    ev.Reason,
			"message":   ev.Message,
			"timestamp": ev.LastTimestamp.Time,
		})
	}
	return out, nil
}
