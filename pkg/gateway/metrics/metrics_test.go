package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ConfigSubmitted()
	m.ConfigSubmitted()
	m.Intervention("correction")
	m.Intervention("")
	m.UpstreamConnect(nil)
	m.UpstreamConnect(errors.New("boom"))
	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()
	m.Audio("in", 1500*time.Millisecond)
	m.Audio("in", 500*time.Millisecond)
	m.Audio("out", 0)

	if got := testutil.ToFloat64(m.submissions); got != 2 {
		t.Fatalf("submissions=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.interventions.WithLabelValues("correction")); got != 1 {
		t.Fatalf("interventions{correction}=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.interventions.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("interventions{unknown}=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.upstreamConnect.WithLabelValues("error")); got != 1 {
		t.Fatalf("upstream{error}=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.liveSessions); got != 1 {
		t.Fatalf("live sessions=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.audioSeconds.WithLabelValues("in")); got != 2 {
		t.Fatalf("audio{in}=%v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.audioSeconds); got != 1 {
		t.Fatalf("audio series=%d, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ConfigSubmitted()
	m.Intervention("correction")
	m.UpstreamConnect(nil)
	m.SessionStarted()
	m.SessionEnded()
	m.Audio("in", time.Second)
	if m.Registry() != nil {
		t.Fatalf("nil metrics returned a registry")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ConfigSubmitted()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "sentinel_config_submissions_total 1") {
		t.Fatalf("body missing counter: %q", rr.Body.String())
	}
}
