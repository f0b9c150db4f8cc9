package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
	"github.com/vango-go/vai-sentinel/pkg/gateway/apierror"
	"github.com/vango-go/vai-sentinel/pkg/gateway/auth"
	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
	"github.com/vango-go/vai-sentinel/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/gemini"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/session"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-sentinel/pkg/gateway/metrics"
	"github.com/vango-go/vai-sentinel/pkg/gateway/mw"
	"github.com/vango-go/vai-sentinel/pkg/gateway/store"
)

// LiveHandler handles /v1/live websocket sessions.
type LiveHandler struct {
	Config       config.Config
	Connector    gemini.Connector
	Recorder     store.Recorder
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, r, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeAPIError(w, r, &apierror.Error{Type: apierror.ErrOverloaded, Message: "gateway is draining", Code: "draining"}, apierror.StatusFromType(apierror.ErrOverloaded))
		return
	}
	if !h.originAllowed(r) {
		writeAPIError(w, r, &apierror.Error{Type: apierror.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	handshakeTimeout := h.Config.LiveHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "bad_request", "failed to read hello", nil)
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "bad_request", "first frame must be hello", nil)
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			var details map[string]any
			if de.Param != "" {
				details = map[string]any{"param": de.Param}
			}
			h.writeWSError(conn, de.Code, de.Message, details)
			return
		}
		h.writeWSError(conn, "bad_request", "invalid hello frame", nil)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		h.writeWSError(conn, "bad_request", "first frame must be hello", nil)
		return
	}

	principal, authErr := h.resolvePrincipal(r, hello)
	if authErr != nil {
		h.writeWSError(conn, "unauthorized", authErr.Error(), nil)
		return
	}

	reqID := requestIDFromRequest(r)
	sessionID := newSessionID()
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if principal != nil {
		logger = logger.With("key_id", principal.KeyID)
	}

	s, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    logger,
		Connector: h.Connector,
		Recorder:  h.Recorder,
		Metrics:   h.Metrics,
		SessionID: sessionID,
		RequestID: reqID,
		Config: session.Config{
			MaxAudioFrameBytes:     h.Config.LiveMaxAudioFrameBytes,
			MaxJSONMessageBytes:    h.Config.LiveMaxJSONMessageBytes,
			MaxAudioFPS:            h.Config.LiveMaxAudioFPS,
			MaxAudioBytesPerSecond: h.Config.LiveMaxAudioBytesPerSecond,
			InboundBurstSeconds:    h.Config.LiveInboundBurstSeconds,
			PingInterval:           h.Config.LiveWSPingInterval,
			WriteTimeout:           h.Config.LiveWSWriteTimeout,
			ReadTimeout:            h.Config.LiveWSReadTimeout,
			MaxSessionDuration:     h.Config.LiveMaxSessionDuration,
			UpstreamConnectTimeout: h.Config.LiveUpstreamConnectTimeout,
		},
	})
	if err != nil {
		h.writeWSError(conn, "internal", "failed to initialize live session", nil)
		return
	}

	release, err := h.LiveSessions.Admit(sessionID, sessions.Handle{
		Cancel: s.Cancel,
		Warn:   s.SendWarning,
	})
	if err != nil {
		s.Cancel()
		if errors.Is(err, sessions.ErrAtCapacity) {
			h.writeWSFrame(conn, protocol.ServerError{Code: "at_capacity", Message: "too many active live sessions", Retryable: true})
			return
		}
		h.writeWSError(conn, "internal", "failed to register live session", nil)
		return
	}
	defer release()

	if err := conn.WriteJSON(h.helloAck(sessionID)); err != nil {
		s.Cancel()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	logger.Info("live session started", "session_id", sessionID, "request_id", reqID, "client", hello.Client.Name)

	if err := s.Run(); err != nil {
		logger.Warn("live session ended with error", "session_id", sessionID, "request_id", reqID, "error", err)
		return
	}
	logger.Info("live session ended", "session_id", sessionID, "request_id", reqID)
}

func (h LiveHandler) helloAck(sessionID string) protocol.ServerHelloAck {
	limits := &protocol.HelloAckLimits{
		MaxAudioFrameBytes:  h.Config.LiveMaxAudioFrameBytes,
		MaxJSONMessageBytes: int(h.Config.LiveMaxJSONMessageBytes),
		MaxAudioFPS:         h.Config.LiveMaxAudioFPS,
		MaxAudioBPS:         h.Config.LiveMaxAudioBytesPerSecond,
		MaxSessionMS:        h.Config.LiveMaxSessionDuration.Milliseconds(),
	}
	if h.Config.LiveMaxAudioFPS > 0 || h.Config.LiveMaxAudioBytesPerSecond > 0 {
		limits.InboundBurstSeconds = h.Config.LiveInboundBurstSeconds
	}
	return protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Model:           sentinel.SelectModel(),
		PolicyVersion:   sentinel.PolicyVersion,
		AudioIn:         protocol.InputFormat(),
		AudioOut:        protocol.OutputFormat(),
		Limits:          limits,
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.Config.AllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.AllowedOrigins[origin]
	return ok
}

// resolveGatewayKey prefers the hello frame, then a bearer header, then the
// gateway_api_key query parameter for browser clients that cannot set headers.
func resolveGatewayKey(r *http.Request, hello protocol.ClientHello) string {
	if hello.Auth != nil && strings.TrimSpace(hello.Auth.GatewayAPIKey) != "" {
		return strings.TrimSpace(hello.Auth.GatewayAPIKey)
	}
	if token, ok := auth.ParseBearer(r); ok {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("gateway_api_key"))
}

func (h LiveHandler) resolvePrincipal(r *http.Request, hello protocol.ClientHello) (*auth.Principal, error) {
	key := resolveGatewayKey(r, hello)
	switch h.Config.AuthMode {
	case config.AuthModeRequired:
		return auth.Authenticate(h.Config.APIKeys, key)
	case config.AuthModeOptional:
		if key == "" {
			return nil, nil
		}
		return auth.Authenticate(h.Config.APIKeys, key)
	case config.AuthModeDisabled:
		return nil, nil
	default:
		return nil, errors.New("invalid auth mode")
	}
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, code, message string, details map[string]any) {
	h.writeWSFrame(conn, protocol.ServerError{Code: code, Message: message, Details: details})
}

// writeWSFrame sends a fatal session error followed by a close frame.
func (h LiveHandler) writeWSFrame(conn *websocket.Conn, frame protocol.ServerError) {
	frame.Type = "error"
	frame.Scope = "session"
	frame.Close = true
	_ = conn.WriteJSON(frame)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, frame.Message), time.Now().Add(2*time.Second))
}

func newSessionID() string {
	return "s_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func requestIDFromRequest(r *http.Request) string {
	id, _ := mw.RequestIDFrom(r.Context())
	return id
}
