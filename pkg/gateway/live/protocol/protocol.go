// Package protocol defines the JSON frames exchanged on /v1/live. Audio travels
// as raw binary frames in both directions; everything else is a JSON text frame
// with a "type" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	EncodingPCMS16LE = "pcm_s16le"

	InputSampleRateHz  = 16000
	OutputSampleRateHz = 24000
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// AudioFormat describes negotiated live audio shape.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

// InputFormat is the only accepted microphone format.
func InputFormat() AudioFormat {
	return AudioFormat{Encoding: EncodingPCMS16LE, SampleRateHz: InputSampleRateHz, Channels: 1}
}

// OutputFormat is the shape of monitor audio sent to clients.
func OutputFormat() AudioFormat {
	return AudioFormat{Encoding: EncodingPCMS16LE, SampleRateHz: OutputSampleRateHz, Channels: 1}
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type HelloAuth struct {
	GatewayAPIKey string `json:"gateway_api_key,omitempty"`
}

type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Client          HelloClient `json:"client,omitempty"`
	Auth            *HelloAuth  `json:"auth,omitempty"`
	AudioIn         AudioFormat `json:"audio_in"`
	AudioOut        AudioFormat `json:"audio_out"`
}

func (h ClientHello) RedactedForLog() map[string]any {
	return map[string]any{
		"type":             h.Type,
		"protocol_version": h.ProtocolVersion,
		"client":           h.Client,
		"audio_in":         h.AudioIn,
		"audio_out":        h.AudioOut,
		"has_gateway_key":  h.Auth != nil && strings.TrimSpace(h.Auth.GatewayAPIKey) != "",
	}
}

// ClientControl carries session-level requests. The only supported op is
// "end_session".
type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

const ControlEndSession = "end_session"

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		if op != ControlEndSession {
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ValidateHello checks structural requirements and the fixed audio formats.
func ValidateHello(msg ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if strings.TrimSpace(msg.ProtocolVersion) != ProtocolVersion1 {
		return &DecodeError{Code: "unsupported_version", Message: "unsupported protocol_version", Param: "protocol_version"}
	}
	if err := validateFormat(msg.AudioIn, InputFormat(), "audio_in"); err != nil {
		return err
	}
	return validateFormat(msg.AudioOut, OutputFormat(), "audio_out")
}

func validateFormat(got, want AudioFormat, param string) error {
	if strings.TrimSpace(got.Encoding) == "" {
		return badRequest("hello."+param+".encoding is required", param+".encoding")
	}
	if got.SampleRateHz <= 0 {
		return badRequest("hello."+param+".sample_rate_hz must be > 0", param+".sample_rate_hz")
	}
	if got.Channels <= 0 {
		return badRequest("hello."+param+".channels must be > 0", param+".channels")
	}
	if strings.TrimSpace(got.Encoding) != want.Encoding || got.SampleRateHz != want.SampleRateHz || got.Channels != want.Channels {
		return unsupported(fmt.Sprintf("%s must be %s @%dHz mono", param, want.Encoding, want.SampleRateHz), param)
	}
	return nil
}

type HelloAckLimits struct {
	MaxAudioFrameBytes  int   `json:"max_audio_frame_bytes"`
	MaxJSONMessageBytes int   `json:"max_json_message_bytes"`
	MaxAudioFPS         int   `json:"max_audio_fps,omitempty"`
	MaxAudioBPS         int64 `json:"max_audio_bps,omitempty"`
	InboundBurstSeconds int   `json:"inbound_burst_seconds,omitempty"`
	MaxSessionMS        int64 `json:"max_session_ms,omitempty"`
}

type ServerHelloAck struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Model           string          `json:"model"`
	PolicyVersion   string          `json:"policy_version"`
	AudioIn         AudioFormat     `json:"audio_in"`
	AudioOut        AudioFormat     `json:"audio_out"`
	Limits          *HelloAckLimits `json:"limits,omitempty"`
}

type ServerError struct {
	Type      string         `json:"type"`
	Scope     string         `json:"scope,omitempty"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Close     bool           `json:"close,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerInterventionText streams the transcript of a monitor utterance while it
// is being spoken.
type ServerInterventionText struct {
	Type           string `json:"type"`
	InterventionID string `json:"intervention_id"`
	Delta          string `json:"delta"`
}

// ServerInterventionEnd marks the monitor's return to silence.
type ServerInterventionEnd struct {
	Type           string `json:"type"`
	InterventionID string `json:"intervention_id"`
	Text           string `json:"text"`
	Format         string `json:"format,omitempty"`
	Interrupted    bool   `json:"interrupted,omitempty"`
}

type ServerAudioReset struct {
	Type           string `json:"type"`
	Reason         string `json:"reason"`
	InterventionID string `json:"intervention_id,omitempty"`
}
