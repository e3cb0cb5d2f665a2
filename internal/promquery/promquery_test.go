package promquery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func promServer(t *testing.T, handler func(query string) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			http.NotFound(w, r)
			return
		}
		body, status := handler(r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func sampleBody(value string) string {
	return fmt.Sprintf(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1724580000,%q]}]}}`, value)
}

func TestQuery(t *testing.T) {
	srv := promServer(t, func(query string) (string, int) {
		if !strings.Contains(query, "up") {
			return `{"status":"error","error":"unexpected query"}`, 200
		}
		return sampleBody("1"), 200
	})
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	value, err := c.Query(context.Background(), "up")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if value != "1" {
		t.Errorf("value = %q, want 1", value)
	}
}

func TestQueryEmptyResult(t *testing.T) {
	srv := promServer(t, func(string) (string, int) {
		return `{"status":"success","data":{"resultType":"vector","result":[]}}`, 200
	})
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Query(context.Background(), "up"); err == nil {
		t.Error("expected error for empty result")
	}
}

func TestQueryServerError(t *testing.T) {
	srv := promServer(t, func(string) (string, int) {
		return "overloaded", 503
	})
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Query(context.Background(), "up"); err == nil {
		t.Error("expected error for 503")
	}
}

func TestServiceMetrics(t *testing.T) {
	srv := promServer(t, func(query string) (string, int) {
		switch {
		case strings.Contains(query, "http_requests_total"):
			return sampleBody("7.5"), 200
		case strings.Contains(query, "container_cpu_usage_seconds_total"):
			return sampleBody("0.42"), 200
		default:
			return `{"status":"error","error":"unexpected"}`, 200
		}
	})
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	metrics := c.ServiceMetrics(context.Background(), "checkout", "prod")
	if len(metrics) != 2 {
		t.Fatalf("len = %d, want 2", len(metrics))
	}
	if metrics[0].Name != "error_rate" || metrics[0].Value != "7.5" {
		t.Errorf("metrics[0] = %+v", metrics[0])
	}
	if metrics[1].Name != "cpu_usage" || metrics[1].Value != "0.42" {
		t.Errorf("metrics[1] = %+v", metrics[1])
	}
}

func TestServiceMetricsPartialFailure(t *testing.T) {
	srv := promServer(t, func(query string) (string, int) {
		if strings.Contains(query, "container_cpu_usage_seconds_total") {
			return sampleBody("0.42"), 200
		}
		return "boom", 500
	})
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	metrics := c.ServiceMetrics(context.Background(), "checkout", "prod")
	if len(metrics) != 1 || metrics[0].Name != "cpu_usage" {
		t.Errorf("metrics = %+v, want only cpu_usage", metrics)
	}
}

func TestDisabledClient(t *testing.T) {
	c := NewClient("", nil)
	if c.Enabled() {
		t.Error("empty URL should disable the client")
	}
	if metrics := c.ServiceMetrics(context.Background(), "svc", "ns"); metrics != nil {
		t.Errorf("disabled client returned metrics: %+v", metrics)
	}
}
