package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
	"github.com/vango-go/vai-sentinel/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/sessions"
)

func readyConfig() config.Config {
	return config.Config{
		AuthMode:             config.AuthModeOptional,
		APIKeys:              map[string]struct{}{},
		Backend:              config.BackendGeminiAPI,
		GeminiAPIKey:         "gm_test",
		MaxLiveSessions:      4,
		LiveHandshakeTimeout: time.Second,
		LiveWSWriteTimeout:   time.Second,
		LiveWSPingInterval:   time.Second,
	}
}

func serveReady(t *testing.T, h ReadyHandler) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v body=%q", err, rr.Body.String())
	}
	return rr.Code, resp
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler_Ready(t *testing.T) {
	tracker := sessions.NewTracker(4)
	release, err := tracker.Admit("s_1", sessions.Handle{})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	defer release()

	status, resp := serveReady(t, ReadyHandler{Config: readyConfig(), LiveSessions: tracker})
	if status != http.StatusOK {
		t.Fatalf("status=%d resp=%v", status, resp)
	}
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("ok=false resp=%v", resp)
	}
	if resp["model"] != sentinel.ModelID || resp["policy_version"] != sentinel.PolicyVersion {
		t.Fatalf("model=%v policy=%v", resp["model"], resp["policy_version"])
	}
	if n, _ := resp["live_sessions"].(float64); n != 1 {
		t.Fatalf("live_sessions=%v, want 1", resp["live_sessions"])
	}
}

func TestReadyHandler_RequiredAuthEmptyKeys_NotReady(t *testing.T) {
	cfg := readyConfig()
	cfg.AuthMode = config.AuthModeRequired

	status, resp := serveReady(t, ReadyHandler{Config: cfg})
	if status != http.StatusInternalServerError {
		t.Fatalf("status=%d resp=%v", status, resp)
	}
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatalf("expected ok=false, got ok=true")
	}
}

func TestReadyHandler_Draining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.BeginDrain(time.Now())

	status, resp := serveReady(t, ReadyHandler{Config: readyConfig(), Lifecycle: lc})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", status)
	}
	if d, _ := resp["draining"].(bool); !d {
		t.Fatalf("draining=%v", resp["draining"])
	}
}
