// Package config provides configuration loading for the healing agent.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/helix-ops/healing-agent/internal/llm"
)

// Config holds all healing agent configuration.
type Config struct {
	// Listen address (default ":8080")
	ListenAddr string `yaml:"listen_addr"`

	// Namespace remediations target when the alert names none
	// (default "helix-dev")
	Namespace string `yaml:"namespace"`

	// DryRun disables every mutating action when true
	DryRun bool `yaml:"dry_run"`

	// Kubeconfig path for out-of-cluster runs; empty means in-cluster
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	// Log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LLM reasoner settings
	LLM llm.ProviderConfig `yaml:"llm,omitempty"`

	// Slack notification settings
	Slack SlackConfig `yaml:"slack,omitempty"`

	// Webhook notification settings
	Webhook WebhookConfig `yaml:"webhook,omitempty"`

	// Prometheus settings for metric enrichment
	Prometheus PrometheusConfig `yaml:"prometheus,omitempty"`

	// Summary schedule settings
	Summary SummaryConfig `yaml:"summary,omitempty"`

	// Telemetry settings
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// SlackConfig configures the Slack notification channel.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// WebhookConfig configures the generic webhook notification channel.
type WebhookConfig struct {
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// PrometheusConfig configures the metric enrichment query client.
type PrometheusConfig struct {
	URL string `yaml:"url,omitempty"`
}

// SummaryConfig configures the periodic summary notification.
type SummaryConfig struct {
	// Schedule in standard cron syntax (default "0 9 * * *")
	Schedule string `yaml:"schedule"`
	Enabled  bool   `yaml:"enabled"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Namespace:  "helix-dev",
		LogLevel:   "info",
		LLM: llm.ProviderConfig{
			Name:    "groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Summary: SummaryConfig{
			Schedule: "0 9 * * *",
		},
	}
}

// Load reads configuration from a YAML file, then overlays environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("HEALING_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("HEALING_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("HEALING_DRY_RUN"); v != "" {
		cfg.DryRun = v == "true" || v == "1"
	}
	if v := os.Getenv("HEALING_KUBECONFIG"); v != "" {
		cfg.Kubeconfig = v
	}
	if v := os.Getenv("HEALING_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HEALING_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("HEALING_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("HEALING_LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLM.TimeoutSeconds = n
		}
	}
	// The API key and Slack URL also honor their conventional names so the
	// agent drops into existing deployments unchanged.
	if v := firstEnv("HEALING_LLM_API_KEY", "GROQ_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := firstEnv("HEALING_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL"); v != "" {
		cfg.Slack.WebhookURL = v
	}
	if v := os.Getenv("HEALING_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("HEALING_PROMETHEUS_URL"); v != "" {
		cfg.Prometheus.URL = v
	}
	if v := os.Getenv("HEALING_SUMMARY_SCHEDULE"); v != "" {
		cfg.Summary.Schedule = v
		cfg.Summary.Enabled = true
	}
	if v := os.Getenv("HEALING_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the agent relies on.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
