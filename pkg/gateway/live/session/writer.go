package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundFrame is one queued client write. Frames tagged with an intervention
// id are dropped once that intervention has been interrupted.
type outboundFrame struct {
	interventionID string
	text           []byte
	binary         []byte
}

// outboundWriter is the only goroutine that writes to the client socket.
// Priority frames (audio resets, fatal errors) always go out before queued
// normal frames.
type outboundWriter struct {
	ws           wsWriter
	ctx          context.Context
	pingInterval time.Duration
	writeTimeout time.Duration
	priority     <-chan outboundFrame
	normal       <-chan outboundFrame
	isCanceled   func(interventionID string) bool
}

func (w *outboundWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}
	if w.pingInterval <= 0 {
		w.pingInterval = 20 * time.Second
	}
	if w.writeTimeout <= 0 {
		w.writeTimeout = 5 * time.Second
	}
	done := context.Background().Done()
	if w.ctx != nil {
		done = w.ctx.Done()
	}

	ping := time.NewTicker(w.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			w.drainPriority()
			_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(w.writeTimeout))
			_ = w.ws.Close()
			return nil
		default:
		}

		select {
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.write(frame); err != nil {
				return err
			}
			continue
		default:
		}

		if w.priority == nil && w.normal == nil {
			return nil
		}

		select {
		case <-done:
		case <-ping.C:
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(w.writeTimeout)); err != nil {
				return err
			}
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.write(frame); err != nil {
				return err
			}
		case frame, ok := <-w.normal:
			if !ok {
				w.normal = nil
				continue
			}
			// A reset queued while this frame waited must win.
			if err := w.preempt(); err != nil {
				return err
			}
			if err := w.write(frame); err != nil {
				return err
			}
		}
	}
}

func (w *outboundWriter) preempt() error {
	for w.priority != nil {
		select {
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				return nil
			}
			if err := w.write(frame); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// drainPriority makes a short best-effort attempt to deliver final errors
// before the socket closes.
func (w *outboundWriter) drainPriority() {
	if w.priority == nil {
		return
	}
	flush := 100 * time.Millisecond
	if w.writeTimeout < flush {
		flush = w.writeTimeout
	}
	deadline := time.Now().Add(flush)
	for i := 0; i < 8 && time.Now().Before(deadline); i++ {
		select {
		case frame, ok := <-w.priority:
			if !ok {
				return
			}
			_ = w.write(frame)
		default:
			return
		}
	}
}

func (w *outboundWriter) write(frame outboundFrame) error {
	if frame.interventionID != "" && w.isCanceled != nil && w.isCanceled(frame.interventionID) {
		return nil
	}

	messageType, payload := websocket.TextMessage, frame.text
	if len(frame.binary) > 0 {
		messageType, payload = websocket.BinaryMessage, frame.binary
	}
	if len(payload) == 0 {
		return nil
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(messageType, payload)
}
