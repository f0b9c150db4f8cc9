package handlers

import (
	"net/http"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
	"github.com/vango-go/vai-sentinel/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether the gateway should receive new live sessions.
type ReadyHandler struct {
	Config       config.Config
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK              bool     `json:"ok"`
		Draining        bool     `json:"draining"`
		AuthMode        string   `json:"auth_mode"`
		Backend         string   `json:"backend"`
		Model           string   `json:"model"`
		PolicyVersion   string   `json:"policy_version"`
		AuditEnabled    bool     `json:"audit_enabled"`
		LiveSessions    int      `json:"live_sessions"`
		MaxLiveSessions int      `json:"max_live_sessions"`
		Issues          []string `json:"issues,omitempty"`
	}

	issues := h.Config.Issues()
	draining := h.Lifecycle.IsDraining()
	if draining {
		issues = append(issues, "draining")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	switch {
	case draining:
		status = http.StatusServiceUnavailable
	case !ok:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, readyResp{
		OK:              ok,
		Draining:        draining,
		AuthMode:        string(h.Config.AuthMode),
		Backend:         string(h.Config.Backend),
		Model:           sentinel.SelectModel(),
		PolicyVersion:   sentinel.PolicyVersion,
		AuditEnabled:    h.Config.DatabaseURL != "",
		LiveSessions:    h.LiveSessions.Count(),
		MaxLiveSessions: h.Config.MaxLiveSessions,
		Issues:          issues,
	})
}
