// Package session relays one client WebSocket to a Gemini Live session that is
// configured as the silent monitor.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/gemini"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/pcm"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-sentinel/pkg/gateway/metrics"
	"github.com/vango-go/vai-sentinel/pkg/gateway/store"
)

const (
	maxCanceledInterventions  = 64
	outboundPriorityQueueSize = 8
)

var errBackpressure = errors.New("live outbound backpressure")

type Config struct {
	MaxAudioFrameBytes     int
	MaxJSONMessageBytes    int64
	MaxAudioFPS            int
	MaxAudioBytesPerSecond int64
	InboundBurstSeconds    int
	PingInterval           time.Duration
	WriteTimeout           time.Duration
	ReadTimeout            time.Duration
	MaxSessionDuration     time.Duration
	UpstreamConnectTimeout time.Duration
	OutboundQueueSize      int
}

// Conn is the client socket. *websocket.Conn satisfies it.
type Conn interface {
	wsWriter
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

type Dependencies struct {
	Conn      Conn
	Logger    *slog.Logger
	Connector gemini.Connector
	Recorder  store.Recorder
	Metrics   *metrics.Metrics
	SessionID string
	RequestID string
	Config    Config
	Now       func() time.Time
}

type LiveSession struct {
	conn      Conn
	logger    *slog.Logger
	connector gemini.Connector
	recorder  store.Recorder
	metrics   *metrics.Metrics
	sessionID string
	cfg       Config
	now       func() time.Time

	sc         *gemini.Context
	controller *sentinel.Controller

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	canceledMu    sync.Mutex
	canceledSet   map[string]struct{}
	canceledOrder []string

	inbound             *inboundAudioLimiter
	interventionCounter atomic.Int64
	lastRateWarning     time.Time
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

// upstreamEvent is tagged with the connection it came from so events from a
// superseded upstream are ignored.
type upstreamEvent struct {
	conn uint64
	msg  *genai.LiveServerMessage
	err  error
}

// intervention is the monitor's current utterance. A zero id means SILENT.
type intervention struct {
	id   string
	text strings.Builder
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Connector == nil {
		return nil, fmt.Errorf("upstream connector is required")
	}
	if strings.TrimSpace(deps.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = store.Nop{}
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.UpstreamConnectTimeout <= 0 {
		deps.Config.UpstreamConnectTimeout = 10 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.With("session_id", deps.SessionID, "request_id", deps.RequestID)
	ctx, cancel := context.WithCancel(context.Background())
	return &LiveSession{
		conn:      deps.Conn,
		logger:    logger,
		connector: deps.Connector,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
		sessionID: deps.SessionID,
		cfg:       deps.Config,
		now:       deps.Now,
		ctx:       ctx,
		cancel:    cancel,

		sc:         gemini.NewContext(logger, deps.Metrics),
		controller: sentinel.NewController(logger),

		outboundPriority: make(chan outboundFrame, min(deps.Config.OutboundQueueSize, outboundPriorityQueueSize)),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		canceledSet:      make(map[string]struct{}),
		inbound: newInboundAudioLimiter(deps.Now, deps.Config.MaxAudioFPS,
			deps.Config.MaxAudioBytesPerSecond, deps.Config.InboundBurstSeconds),
	}, nil
}

// Run relays until the client leaves, the session expires, or the upstream
// fails. The monitor configuration is declared once on entry and the controller
// is unmounted on exit; configuration changes in between reconnect the upstream.
func (s *LiveSession) Run() error {
	defer s.cancel()

	s.metrics.SessionStarted()
	defer s.metrics.SessionEnded()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(max(s.cfg.MaxJSONMessageBytes, int64(s.cfg.MaxAudioFrameBytes)))
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	s.controller.Mount(s.sc.Deps())
	defer s.controller.Unmount()

	readCh := make(chan inboundFrame, 64)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:           s.conn,
			ctx:          s.ctx,
			pingInterval: s.cfg.PingInterval,
			writeTimeout: s.cfg.WriteTimeout,
			priority:     s.outboundPriority,
			normal:       s.outboundNormal,
			isCanceled:   s.isInterventionCanceled,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	flushAndClose := func() {
		s.cancel()
		wait := 100 * time.Millisecond
		if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
			wait = s.cfg.WriteTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-writerErrCh:
		case <-timer.C:
		}
	}

	var expired <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxSessionDuration)
		defer timer.Stop()
		expired = timer.C
	}

	upstreamCh := make(chan upstreamEvent, 16)
	var (
		upstream gemini.Upstream
		connSeq  uint64
		current  intervention
	)
	closeUpstream := func() {
		if upstream != nil {
			_ = upstream.Close()
			upstream = nil
		}
	}
	defer closeUpstream()

	connect := func(reason string) error {
		closeUpstream()
		if current.id != "" {
			s.interrupt(&current, "reconnect")
		}
		up, snap, err := s.dial()
		if err != nil {
			return err
		}
		connSeq++
		upstream = up
		s.logger.Info("live upstream connected", "reason", reason, "model", snap.Model, "generation", snap.Generation)
		go s.receiveLoop(up, connSeq, upstreamCh)
		return nil
	}

	if err := connect("mount"); err != nil {
		_ = s.sendSessionError("upstream_unavailable", "failed to connect to the monitor model", true)
		flushAndClose()
		return err
	}

	for {
		select {
		case <-s.ctx.Done():
			return nil

		case <-expired:
			_ = s.sendSessionError("session_expired", "maximum session duration reached", true)
			flushAndClose()
			return nil

		case err, ok := <-writerErrCh:
			if ok && err != nil {
				return err
			}
			return nil

		case <-s.sc.Changed():
			if err := connect("configuration changed"); err != nil {
				_ = s.sendSessionError("upstream_unavailable", "failed to reconnect to the monitor model", true)
				flushAndClose()
				return err
			}

		case ev := <-upstreamCh:
			if ev.conn != connSeq || upstream == nil {
				continue
			}
			if ev.err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("live upstream closed", "error", ev.err)
				_ = s.sendSessionError("upstream_closed", "monitor model connection closed", true)
				flushAndClose()
				return ev.err
			}
			if ev.msg.GoAway != nil {
				if err := connect("go away"); err != nil {
					_ = s.sendSessionError("upstream_unavailable", "failed to reconnect to the monitor model", true)
					flushAndClose()
					return err
				}
				continue
			}
			s.handleServerContent(ev.msg.ServerContent, &current)

		case frame, ok := <-readCh:
			if !ok {
				return nil
			}
			if frame.err != nil {
				if websocket.IsUnexpectedCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("live client read ended", "error", frame.err)
				}
				return nil
			}
			if s.cfg.ReadTimeout > 0 {
				_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			}

			switch frame.messageType {
			case websocket.BinaryMessage:
				if err := s.forwardAudio(upstream, frame.data); err != nil {
					s.logger.Warn("live upstream send failed", "error", err)
					_ = s.sendSessionError("upstream_error", "failed to forward audio", true)
					flushAndClose()
					return err
				}
			case websocket.TextMessage:
				end, err := s.handleClientText(frame.data)
				if err != nil {
					continue
				}
				if end {
					flushAndClose()
					return nil
				}
			}
		}
	}
}

// dial waits for a complete submission and opens an upstream for it.
func (s *LiveSession) dial() (gemini.Upstream, gemini.Snapshot, error) {
	snap := s.sc.Snapshot()
	for !snap.Ready {
		select {
		case <-s.ctx.Done():
			return nil, snap, s.ctx.Err()
		case <-s.sc.Changed():
			snap = s.sc.Snapshot()
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.UpstreamConnectTimeout)
	defer cancel()

	up, err := s.connector.Connect(ctx, snap.Model, snap.Config)
	s.metrics.UpstreamConnect(err)
	if err != nil {
		return nil, snap, fmt.Errorf("connect upstream: %w", err)
	}

	payload, err := json.Marshal(snap.Config)
	if err == nil {
		err = s.recorder.RecordSubmission(ctx, store.Submission{
			SessionID:     s.sessionID,
			Model:         snap.Model,
			PolicyVersion: sentinel.PolicyVersion,
			Generation:    snap.Generation,
			Config:        payload,
		})
	}
	if err != nil {
		s.logger.Warn("record submission failed", "error", err)
	}
	return up, snap, nil
}

func (s *LiveSession) receiveLoop(up gemini.Upstream, conn uint64, out chan<- upstreamEvent) {
	for {
		msg, err := up.Receive()
		if err == nil && msg == nil {
			continue
		}
		select {
		case out <- upstreamEvent{conn: conn, msg: msg, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *LiveSession) forwardAudio(up gemini.Upstream, data []byte) error {
	if len(data) == 0 || up == nil {
		return nil
	}
	if s.cfg.MaxAudioFrameBytes > 0 && len(data) > s.cfg.MaxAudioFrameBytes {
		_ = s.sendWarning("audio_frame_too_large", fmt.Sprintf("audio frames must be at most %d bytes", s.cfg.MaxAudioFrameBytes))
		return nil
	}
	if !pcm.Aligned(len(data)) {
		_ = s.sendWarning("audio_frame_misaligned", "audio frames must contain whole 16-bit samples")
		return nil
	}
	if !s.allowInbound(len(data)) {
		return nil
	}
	if err := up.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: gemini.InputAudioMIMEType, Data: data},
	}); err != nil {
		return err
	}
	s.metrics.Audio("in", pcm.Duration(len(data), protocol.InputSampleRateHz))
	return nil
}

func (s *LiveSession) allowInbound(n int) bool {
	if s.inbound.Allow(n) {
		return true
	}
	now := s.now()
	if now.Sub(s.lastRateWarning) >= time.Second {
		s.lastRateWarning = now
		_ = s.sendWarning("rate_limited", "inbound audio rate exceeded; frames dropped")
	}
	return false
}

// handleClientText processes a JSON frame. end reports a client request to
// finish the session.
func (s *LiveSession) handleClientText(data []byte) (end bool, err error) {
	decoded, err := protocol.DecodeClientMessage(data)
	if err != nil {
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) {
			_ = s.sendSessionError(decErr.Code, decErr.Error(), false)
		}
		return false, err
	}
	switch msg := decoded.(type) {
	case protocol.ClientControl:
		return msg.Op == protocol.ControlEndSession, nil
	case protocol.ClientHello:
		_ = s.sendSessionError("bad_request", "hello already received", false)
		return false, fmt.Errorf("duplicate hello")
	default:
		return false, nil
	}
}

// handleServerContent walks the monitor through its states: any audio or
// transcript opens an intervention, turn completion closes it, and an
// interruption abandons it.
func (s *LiveSession) handleServerContent(content *genai.LiveServerContent, cur *intervention) {
	if content == nil {
		return
	}

	if content.Interrupted {
		if cur.id != "" {
			s.interrupt(cur, "interrupted")
		}
		return
	}

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
				continue
			}
			s.begin(cur)
			if err := s.enqueueNormal(outboundFrame{interventionID: cur.id, binary: part.InlineData.Data}); err != nil {
				s.handleBackpressure(cur)
				return
			}
			s.metrics.Audio("out", pcm.Duration(len(part.InlineData.Data), protocol.OutputSampleRateHz))
		}
	}

	if t := content.OutputTranscription; t != nil && t.Text != "" {
		s.begin(cur)
		cur.text.WriteString(t.Text)
		if err := s.sendInterventionJSON(cur.id, protocol.ServerInterventionText{
			Type:           "intervention_text",
			InterventionID: cur.id,
			Delta:          t.Text,
		}); err != nil {
			s.handleBackpressure(cur)
			return
		}
	}

	if content.TurnComplete && cur.id != "" {
		s.finish(cur)
	}
}

func (s *LiveSession) begin(cur *intervention) {
	if cur.id != "" {
		return
	}
	cur.id = fmt.Sprintf("i_%d", s.interventionCounter.Add(1))
	cur.text.Reset()
	s.logger.Debug("monitor state", "state", sentinel.StateIntervening.String(), "intervention_id", cur.id)
}

func (s *LiveSession) finish(cur *intervention) {
	text := strings.TrimSpace(cur.text.String())
	format := sentinel.ClassifyUtterance(text)

	// Recorded before the end frame so the audit trail is never behind the client.
	s.record(cur.id, text, format, false)
	_ = s.sendJSON(protocol.ServerInterventionEnd{
		Type:           "intervention_end",
		InterventionID: cur.id,
		Text:           text,
		Format:         string(format),
	})
	s.logger.Info("monitor intervened", "intervention_id", cur.id, "format", string(format))
	s.logger.Debug("monitor state", "state", sentinel.StateSilent.String())

	cur.id = ""
	cur.text.Reset()
}

func (s *LiveSession) interrupt(cur *intervention, reason string) {
	text := strings.TrimSpace(cur.text.String())
	s.cancelIntervention(cur.id)
	s.record(cur.id, text, sentinel.ClassifyUtterance(text), true)
	_ = s.sendAudioReset(reason, cur.id)
	_ = s.sendJSONPriority(protocol.ServerInterventionEnd{
		Type:           "intervention_end",
		InterventionID: cur.id,
		Text:           text,
		Interrupted:    true,
	})
	s.logger.Debug("monitor state", "state", sentinel.StateSilent.String(), "reason", reason)
	cur.id = ""
	cur.text.Reset()
}

func (s *LiveSession) handleBackpressure(cur *intervention) {
	if cur.id == "" {
		return
	}
	s.logger.Warn("live outbound backpressure", "intervention_id", cur.id)
	s.interrupt(cur, "backpressure")
}

func (s *LiveSession) record(id, text string, format sentinel.Format, interrupted bool) {
	label := string(format)
	if label == "" {
		label = "unclassified"
	}
	s.metrics.Intervention(label)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.recorder.RecordIntervention(ctx, store.Intervention{
		SessionID:      s.sessionID,
		InterventionID: id,
		Model:          sentinel.SelectModel(),
		PolicyVersion:  sentinel.PolicyVersion,
		Format:         label,
		Text:           text,
		Interrupted:    interrupted,
	})
	if err != nil {
		s.logger.Warn("record intervention failed", "intervention_id", id, "error", err)
	}
}

func (s *LiveSession) sendAudioReset(reason, interventionID string) error {
	return s.sendJSONPriority(protocol.ServerAudioReset{Type: "audio_reset", Reason: reason, InterventionID: interventionID})
}

func (s *LiveSession) sendWarning(code, message string) error {
	return s.sendJSON(protocol.ServerWarning{Type: "warning", Code: code, Message: message})
}

func (s *LiveSession) sendSessionError(code, message string, close bool) error {
	msg := protocol.ServerError{Type: "error", Scope: "session", Code: code, Message: message, Close: close}
	if close {
		return s.sendJSONPriority(msg)
	}
	return s.sendJSON(msg)
}

func (s *LiveSession) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{text: payload})
}

func (s *LiveSession) sendInterventionJSON(interventionID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{interventionID: interventionID, text: payload})
}

func (s *LiveSession) sendJSONPriority(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueuePriority(outboundFrame{text: payload})
}

func (s *LiveSession) enqueueNormal(frame outboundFrame) error {
	if frame.interventionID != "" && s.isInterventionCanceled(frame.interventionID) {
		return nil
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

// enqueuePriority makes room by evicting older priority frames; the newest
// control message is the one that matters.
func (s *LiveSession) enqueuePriority(frame outboundFrame) error {
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) cancelIntervention(id string) {
	if id == "" {
		return
	}
	s.canceledMu.Lock()
	defer s.canceledMu.Unlock()
	if _, ok := s.canceledSet[id]; ok {
		return
	}
	s.canceledSet[id] = struct{}{}
	s.canceledOrder = append(s.canceledOrder, id)
	if len(s.canceledOrder) > maxCanceledInterventions {
		oldest := s.canceledOrder[0]
		s.canceledOrder = s.canceledOrder[1:]
		delete(s.canceledSet, oldest)
	}
}

func (s *LiveSession) isInterventionCanceled(id string) bool {
	if id == "" {
		return false
	}
	s.canceledMu.Lock()
	defer s.canceledMu.Unlock()
	_, ok := s.canceledSet[id]
	return ok
}

func (s *LiveSession) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

func (s *LiveSession) SendWarning(code, message string) error {
	if s == nil {
		return nil
	}
	return s.sendWarning(code, message)
}
