package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorExposesMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordRequest("openai", "gpt-4o", "200", 1500*time.Millisecond)
	c.RecordRequest("openai", "gpt-4o", "200", 200*time.Millisecond)
	c.RecordRequest("claude", "claude-sonnet-4", "429", 50*time.Millisecond)
	c.RecordTokens("openai", "gpt-4o", 120, 456)
	c.RecordCost("openai", "gpt-4o", 0.0042)
	c.RecordRefresh("claude", "success")
	c.RecordFallback("claude", "429")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`helios_requests_total{model="gpt-4o",provider="openai",status="200"} 2`,
		`helios_requests_total{model="claude-sonnet-4",provider="claude",status="429"} 1`,
		`helios_tokens_total{direction="prompt",model="gpt-4o",provider="openai"} 120`,
		`helios_tokens_total{direction="completion",model="gpt-4o",provider="openai"} 456`,
		`helios_credential_refresh_total{outcome="success",provider="claude"} 1`,
		`helios_fallback_total{provider="claude",reason="429"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
	if !strings.Contains(body, "helios_request_duration_seconds_bucket") {
		t.Error("duration histogram missing")
	}
}

func TestCollectorZeroValuesSkipped(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordTokens("openai", "gpt-4o", 0, 0)
	c.RecordCost("openai", "gpt-4o", 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if strings.Contains(body, `helios_tokens_total`) && strings.Contains(body, `} 0`) {
		// Zero-valued series must not be created at all.
		if strings.Contains(body, `direction="prompt"`) {
			t.Errorf("zero token series created: %s", body)
		}
	}
	if strings.Contains(body, "helios_cost_usd_total{") {
		t.Errorf("zero cost series created")
	}
}
