// Healing Agent — closed-loop Kubernetes incident remediation.
//
// Receives Alertmanager webhooks, classifies each alert, executes safe
// remediations automatically, and notifies the humans about everything.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/config"
	"github.com/helix-ops/healing-agent/internal/history"
	"github.com/helix-ops/healing-agent/internal/llm"
	"github.com/helix-ops/healing-agent/internal/notify"
	"github.com/helix-ops/healing-agent/internal/orchestrator"
	"github.com/helix-ops/healing-agent/internal/promquery"
	"github.com/helix-ops/healing-agent/internal/remedy"
	"github.com/helix-ops/healing-agent/internal/server"
	"github.com/helix-ops/healing-agent/internal/summary"
	"github.com/helix-ops/healing-agent/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEALING_CONFIG"), "path to config file (YAML)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("healing-agent %s (%s, %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	server.Version = version
	server.Commit = commit
	server.Date = date

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.Telemetry.OTLPEndpoint, version)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace exporter shutdown failed", zap.Error(err))
		}
	}()

	client, err := buildKubeClient(cfg.Kubeconfig, logger)
	if err != nil {
		logger.Fatal("failed to build kubernetes client", zap.Error(err))
	}

	// Classification waterfall: rules, then the LLM reasoner.
	provider := llm.NewOpenAIProvider(cfg.LLM)
	reasoner := classify.NewReasonerClassifier(provider, cfg.LLM, logger)
	gateway := classify.NewGateway(classify.NewRuleClassifier(logger), reasoner, logger)

	executor := remedy.NewExecutor(client, cfg.Namespace, cfg.DryRun, logger)
	store := history.NewStore()

	notifier := notify.Multi{notify.NewSlackNotifier(cfg.Slack.WebhookURL, logger)}
	if cfg.Webhook.URL != "" {
		notifier = append(notifier, notify.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Headers, logger))
	}

	prom := promquery.NewClient(cfg.Prometheus.URL, logger)
	orch := orchestrator.New(gateway, executor, notifier, store, prom, logger)

	if cfg.Summary.Enabled {
		sched, err := summary.NewScheduler(cfg.Summary.Schedule, gateway, notifier, logger)
		if err != nil {
			logger.Fatal("failed to build summary scheduler", zap.Error(err))
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	if cfg.DryRun {
		logger.Warn("dry-run mode enabled, no remediation will be executed")
	}

	srv := server.New(cfg, logger, gateway, executor, store, notifier, orch)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildLogger builds a production logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// buildKubeClient prefers in-cluster credentials and falls back to a
// kubeconfig file for local development.
func buildKubeClient(kubeconfig string, logger *zap.Logger) (kubernetes.Interface, error) {
	restCfg, err := rest.InClusterConfig()
	if err == nil {
		logger.Info("using in-cluster kubernetes config")
		return kubernetes.NewForConfig(restCfg)
	}

	path := kubeconfig
	if path == "" {
		path = filepath.Join(homedir.HomeDir(), ".kube", "config")
	}
	restCfg, err = clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("kubernetes config: %w", err)
	}
	logger.Info("using kubeconfig", zap.String("path", path))
	return kubernetes.NewForConfig(restCfg)
}
