package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

// Backend selects which Gemini API surface upstream live sessions use.
type Backend string

const (
	BackendGeminiAPI Backend = "gemini"
	BackendVertexAI  Backend = "vertex"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// Upstream Gemini Live.
	Backend        Backend
	GeminiAPIKey   string
	VertexProject  string
	VertexLocation string

	// Optional Postgres audit store. Empty disables persistence.
	DatabaseURL string

	// CORS / websocket origin allowlist. Empty allows any origin.
	AllowedOrigins map[string]struct{}

	// Live WebSocket mode (/v1/live).
	MaxLiveSessions            int
	LiveMaxAudioFrameBytes     int
	LiveMaxJSONMessageBytes    int64
	LiveMaxAudioFPS            int
	LiveMaxAudioBytesPerSecond int64
	LiveInboundBurstSeconds    int
	LiveHandshakeTimeout       time.Duration
	LiveWSPingInterval         time.Duration
	LiveWSWriteTimeout         time.Duration
	LiveWSReadTimeout          time.Duration
	LiveMaxSessionDuration     time.Duration
	LiveUpstreamConnectTimeout time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                       envOr("SENTINEL_ADDR", ":8080"),
		AuthMode:                   AuthMode(envOr("SENTINEL_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:                    make(map[string]struct{}),
		Backend:                    Backend(strings.ToLower(envOr("SENTINEL_BACKEND", string(BackendGeminiAPI)))),
		GeminiAPIKey:               envOr("SENTINEL_GEMINI_API_KEY", strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))),
		VertexProject:              envOr("SENTINEL_VERTEX_PROJECT", ""),
		VertexLocation:             envOr("SENTINEL_VERTEX_LOCATION", "us-central1"),
		DatabaseURL:                envOr("SENTINEL_DATABASE_URL", ""),
		AllowedOrigins:             make(map[string]struct{}),
		MaxLiveSessions:            envIntOr("SENTINEL_MAX_SESSIONS", 64),
		LiveMaxAudioFrameBytes:     envIntOr("SENTINEL_LIVE_MAX_AUDIO_FRAME_BYTES", 8192),
		LiveMaxJSONMessageBytes:    envInt64Or("SENTINEL_LIVE_MAX_JSON_MESSAGE_BYTES", 64*1024),
		LiveMaxAudioFPS:            envIntOr("SENTINEL_LIVE_MAX_AUDIO_FPS", 120),
		LiveMaxAudioBytesPerSecond: envInt64Or("SENTINEL_LIVE_MAX_AUDIO_BPS", 128*1024),
		LiveInboundBurstSeconds:    envIntOr("SENTINEL_LIVE_INBOUND_BURST_SECONDS", 2),
		LiveHandshakeTimeout:       envDurationOr("SENTINEL_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		LiveWSPingInterval:         envDurationOr("SENTINEL_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:         envDurationOr("SENTINEL_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSReadTimeout:          envDurationOr("SENTINEL_LIVE_WS_READ_TIMEOUT", 0),
		LiveMaxSessionDuration:     envDurationOr("SENTINEL_LIVE_MAX_DURATION", 2*time.Hour),
		LiveUpstreamConnectTimeout: envDurationOr("SENTINEL_LIVE_UPSTREAM_CONNECT_TIMEOUT", 10*time.Second),
		ReadHeaderTimeout:          envDurationOr("SENTINEL_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:        envDurationOr("SENTINEL_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("SENTINEL_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("SENTINEL_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("SENTINEL_ALLOWED_ORIGINS")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	switch cfg.Backend {
	case BackendGeminiAPI:
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("SENTINEL_GEMINI_API_KEY (or GEMINI_API_KEY) must be set when SENTINEL_BACKEND=gemini")
		}
	case BackendVertexAI:
		if cfg.VertexProject == "" {
			return Config{}, fmt.Errorf("SENTINEL_VERTEX_PROJECT must be set when SENTINEL_BACKEND=vertex")
		}
	default:
		return Config{}, fmt.Errorf("SENTINEL_BACKEND must be one of gemini|vertex")
	}

	if cfg.MaxLiveSessions <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_MAX_SESSIONS must be > 0")
	}
	if cfg.LiveMaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveMaxAudioFPS < 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_MAX_AUDIO_FPS must be >= 0")
	}
	if cfg.LiveMaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_MAX_AUDIO_BPS must be >= 0")
	}
	if cfg.LiveInboundBurstSeconds < 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_INBOUND_BURST_SECONDS must be >= 0")
	}
	if (cfg.LiveMaxAudioFPS > 0 || cfg.LiveMaxAudioBytesPerSecond > 0) && cfg.LiveInboundBurstSeconds < 1 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_INBOUND_BURST_SECONDS must be >= 1 when inbound audio limits are enabled")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSReadTimeout < 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_MAX_DURATION must be > 0")
	}
	if cfg.LiveUpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_LIVE_UPSTREAM_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("SENTINEL_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("SENTINEL_API_KEYS must be set when SENTINEL_AUTH_MODE=required")
	}

	return cfg, nil
}

// Issues returns human-readable problems with an already constructed config.
// LoadFromEnv never returns a config with issues; hand-built configs may have them.
func (c Config) Issues() []string {
	issues := make([]string, 0, 4)
	switch c.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if c.AuthMode == AuthModeRequired && len(c.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	switch c.Backend {
	case BackendGeminiAPI:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			issues = append(issues, "gemini backend without api key")
		}
	case BackendVertexAI:
		if strings.TrimSpace(c.VertexProject) == "" {
			issues = append(issues, "vertex backend without project")
		}
	default:
		issues = append(issues, "invalid backend")
	}
	if c.MaxLiveSessions <= 0 {
		issues = append(issues, "max live sessions must be > 0")
	}
	if c.LiveHandshakeTimeout <= 0 || c.LiveWSWriteTimeout <= 0 || c.LiveWSPingInterval <= 0 {
		issues = append(issues, "live timeouts must be > 0")
	}
	return issues
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
