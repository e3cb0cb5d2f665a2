package orchestrator

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/helix-ops/healing-agent/internal/alert"
	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/history"
	"github.com/helix-ops/healing-agent/internal/llm"
	"github.com/helix-ops/healing-agent/internal/notify"
	"github.com/helix-ops/healing-agent/internal/promquery"
	"github.com/helix-ops/healing-agent/internal/remedy"
)

const testNS = "helix-dev"

type recordingNotifier struct {
	alertCalls  int
	lastAuto    bool
	lastHadExec bool
}

func (r *recordingNotifier) Enabled() bool { return true }

func (r *recordingNotifier) AlertNotification(_ context.Context, _ alert.Alert, _ classify.Action, result *remedy.Result, autoExecuted bool) error {
	r.alertCalls++
	r.lastAuto = autoExecuted
	r.lastHadExec = result != nil
	return nil
}

func (r *recordingNotifier) ActionResult(context.Context, alert.Alert, classify.Action, remedy.Result) error {
	return nil
}

func (r *recordingNotifier) Summary(context.Context, classify.Stats) error { return nil }

func disabledGateway() *classify.Gateway {
	cfg := llm.ProviderConfig{Name: "test", Model: "m"} // no API key: reasoner off
	reasoner := classify.NewReasonerClassifier(llm.NewOpenAIProvider(cfg), cfg, nil)
	return classify.NewGateway(classify.NewRuleClassifier(nil), reasoner, nil)
}

func testPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNS},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
}

func testDeployment(name string) *appsv1.Deployment {
	replicas := int32(2)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNS},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": name}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": name}},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: "app", Image: name + ":v1"}},
				},
			},
		},
	}
}

func crashAlert() alert.Alert {
	return alert.Alert{
		Status: "firing",
		Labels: map[string]string{
			"alertname": "PodCrashLooping",
			"severity":  "critical",
			"service":   "api",
			"namespace": testNS,
			"pod":       "api-1",
		},
		Annotations: map[string]string{"description": "Pod api-1 is crash looping"},
	}
}

func unknownAlert() alert.Alert {
	return alert.Alert{
		Status: "firing",
		Labels: map[string]string{
			"alertname": "SomethingNovel",
			"severity":  "warning",
			"service":   "api",
			"namespace": testNS,
		},
		Annotations: map[string]string{"description": "nothing recognizable"},
	}
}

func newTestOrchestrator(dryRun bool, notifier notify.Notifier) (*Orchestrator, *history.Store, *fake.Clientset) {
	client := fake.NewSimpleClientset(testPod("api-1"), testDeployment("api"))
	executor := remedy.NewExecutor(client, testNS, dryRun, nil)
	store := history.NewStore()
	o := New(disabledGateway(), executor, notifier, store, promquery.NewClient("", nil), nil)
	return o, store, client
}

func TestProcessAutoExecutes(t *testing.T) {
	notifier := &recordingNotifier{}
	o, store, client := newTestOrchestrator(false, notifier)

	res := o.Process(context.Background(), crashAlert())

	if res.Action != "restart" || !res.AutoExecuted {
		t.Fatalf("result = %+v, want auto-executed restart", res)
	}
	if res.ExecutionResult == nil || res.ExecutionResult.Status != remedy.StatusSuccess {
		t.Fatalf("execution result = %+v", res.ExecutionResult)
	}

	// The pod was actually deleted.
	if _, err := client.CoreV1().Pods(testNS).Get(context.Background(), "api-1", metav1.GetOptions{}); err == nil {
		t.Error("pod should be deleted by the restart")
	}

	// Exactly one alert entry, completed, with a linked action entry.
	alerts := store.RecentAlerts(0)
	if len(alerts) != 1 {
		t.Fatalf("alert entries = %d, want exactly 1", len(alerts))
	}
	if alerts[0].Status != history.StatusCompleted || !alerts[0].AutoExecuted {
		t.Errorf("alert entry = %+v", alerts[0])
	}
	actions := store.RecentActions(0)
	if len(actions) != 1 || actions[0].AlertID != alerts[0].ID {
		t.Errorf("actions = %+v, want one linked to the alert", actions)
	}

	// Notification fired with the execution result attached.
	if notifier.alertCalls != 1 || !notifier.lastAuto || !notifier.lastHadExec {
		t.Errorf("notifier = %+v", notifier)
	}
}

func TestProcessBelowThresholdAwaitsApproval(t *testing.T) {
	notifier := &recordingNotifier{}
	o, store, _ := newTestOrchestrator(false, notifier)

	// PodNotReady classifies as investigate/0.70: never auto-executed.
	a := crashAlert()
	a.Labels["alertname"] = "PodNotReady"
	a.Annotations["description"] = "pod stuck"

	res := o.Process(context.Background(), a)

	if res.AutoExecuted {
		t.Error("investigate must not auto-execute")
	}
	if res.ExecutionResult != nil {
		t.Error("no execution result without auto-execution")
	}
	if len(store.RecentActions(0)) != 0 {
		t.Error("no action entry without auto-execution")
	}
	if notifier.alertCalls != 1 || notifier.lastAuto || notifier.lastHadExec {
		t.Errorf("notifier = %+v, want approval notification", notifier)
	}
	if store.RecentAlerts(0)[0].Status != history.StatusCompleted {
		t.Error("alert should still complete")
	}
}

func TestProcessDryRunNeverExecutes(t *testing.T) {
	o, store, client := newTestOrchestrator(true, &recordingNotifier{})

	res := o.Process(context.Background(), crashAlert())

	if res.AutoExecuted {
		t.Error("dry-run must disable auto-execution")
	}
	if _, err := client.CoreV1().Pods(testNS).Get(context.Background(), "api-1", metav1.GetOptions{}); err != nil {
		t.Errorf("pod must survive dry-run: %v", err)
	}
	if len(store.RecentActions(0)) != 0 {
		t.Error("no action entries in dry-run")
	}
}

func TestProcessUnclassifiedFallsBack(t *testing.T) {
	o, store, _ := newTestOrchestrator(false, &recordingNotifier{})

	res := o.Process(context.Background(), unknownAlert())

	if res.Action != "investigate" || res.Confidence != 0.0 {
		t.Errorf("result = %+v, want investigate/0.0 fallback", res)
	}
	if res.AutoExecuted {
		t.Error("fallback must not auto-execute")
	}
	if store.RecentAlerts(0)[0].Status != history.StatusCompleted {
		t.Error("fallback still completes the alert entry")
	}
}

func TestProcessPayloadHandlesEveryAlert(t *testing.T) {
	o, store, _ := newTestOrchestrator(true, &recordingNotifier{})

	payload := alert.WebhookPayload{
		Status: "firing",
		Alerts: []alert.Alert{crashAlert(), unknownAlert()},
	}
	results := o.ProcessPayload(context.Background(), payload)

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if len(store.RecentAlerts(0)) != 2 {
		t.Errorf("alert entries = %d, want one per alert", len(store.RecentAlerts(0)))
	}
}

func TestProcessNilNotifierIsFine(t *testing.T) {
	client := fake.NewSimpleClientset(testPod("api-1"))
	executor := remedy.NewExecutor(client, testNS, false, nil)
	store := history.NewStore()
	o := New(disabledGateway(), executor, nil, store, promquery.NewClient("", nil), nil)

	res := o.Process(context.Background(), crashAlert())
	if res.Error != "" {
		t.Errorf("nil notifier should not fail processing: %+v", res)
	}
}
