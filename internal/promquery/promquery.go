// Package promquery queries Prometheus to enrich alert context before the
// reasoner sees it. Enrichment is best effort: a down Prometheus degrades the
// reasoner's context, never the pipeline.
package promquery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/classify"
)

// Client queries a Prometheus HTTP API. A nil Client (or one built with an
// empty URL) is disabled and returns no metrics.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a query client. Pass an empty URL to get a disabled
// client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger.Named("promquery"),
	}
}

// Enabled reports whether a Prometheus URL is configured.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

// promResponse is the instant-query response shape.
type promResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []any             `json:"value"`
		} `json:"result"`
	} `json:"data"`
	Error string `json:"error"`
}

// Query runs an instant PromQL query and returns the first sample's value.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("prometheus not configured")
	}

	params := url.Values{"query": []string{query}}
	u := c.baseURL + "/api/v1/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("prometheus request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("prometheus request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("prometheus returned %d: %s", resp.StatusCode, string(body))
	}

	var pr promResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if pr.Status != "success" {
		return "", fmt.Errorf("prometheus error: %s", pr.Error)
	}
	if len(pr.Data.Result) == 0 || len(pr.Data.Result[0].Value) < 2 {
		return "", fmt.Errorf("no samples")
	}

	value, ok := pr.Data.Result[0].Value[1].(string)
	if !ok {
		return "", fmt.Errorf("unexpected sample format")
	}
	return value, nil
}

// ServiceMetrics gathers the recent metrics handed to the reasoner as
// context: the service's 5xx error rate and its CPU usage over five minutes.
// Failed queries are skipped.
func (c *Client) ServiceMetrics(ctx context.Context, service, namespace string) []classify.Metric {
	if !c.Enabled() {
		return nil
	}

	queries := []struct {
		name  string
		query string
	}{
		{
			name: "error_rate",
			query: fmt.Sprintf(
				`sum(rate(http_requests_total{service=%q,namespace=%q,status=~"5.."}[5m])) / sum(rate(http_requests_total{service=%q,namespace=%q}[5m])) * 100`,
				service, namespace, service, namespace),
		},
		{
			name: "cpu_usage",
			query: fmt.Sprintf(
				`sum(rate(container_cpu_usage_seconds_total{namespace=%q,pod=~"%s.*"}[5m]))`,
				namespace, service),
		},
	}

	var metrics []classify.Metric
	for _, q := range queries {
		value, err := c.Query(ctx, q.query)
		if err != nil {
			c.logger.Warn("metric query failed",
				zap.String("metric", q.name),
				zap.Error(err))
			continue
		}
		metrics = append(metrics, classify.Metric{Name: q.name, Value: value})
	}

	c.logger.Info("service metrics gathered",
		zap.String("service", service),
		zap.Int("count", len(metrics)))
	return metrics
}
