package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

const validHello = `{
	"type":"hello",
	"protocol_version":"1",
	"client":{"name":"browser","version":"1.0"},
	"audio_in":{"encoding":"pcm_s16le","sample_rate_hz":16000,"channels":1},
	"audio_out":{"encoding":"pcm_s16le","sample_rate_hz":24000,"channels":1}
}`

func TestDecodeClientMessage_Hello(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(validHello))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientHello", msg)
	}
	if hello.ProtocolVersion != "1" || hello.Client.Name != "browser" {
		t.Fatalf("hello=%+v", hello)
	}
	if hello.AudioIn != InputFormat() || hello.AudioOut != OutputFormat() {
		t.Fatalf("formats=%+v/%+v", hello.AudioIn, hello.AudioOut)
	}
}

func TestDecodeClientMessage_HelloErrors(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		code  string
		param string
	}{
		{"missing version", `{"type":"hello"}`, "bad_request", "protocol_version"},
		{"wrong version", strings.Replace(validHello, `"protocol_version":"1"`, `"protocol_version":"2"`, 1), "unsupported_version", "protocol_version"},
		{"missing encoding", strings.Replace(validHello, `"encoding":"pcm_s16le","sample_rate_hz":16000`, `"sample_rate_hz":16000`, 1), "bad_request", "audio_in.encoding"},
		{"wrong input rate", strings.Replace(validHello, `16000`, `48000`, 1), "unsupported", "audio_in"},
		{"wrong output channels", strings.Replace(validHello, `"sample_rate_hz":24000,"channels":1`, `"sample_rate_hz":24000,"channels":2`, 1), "unsupported", "audio_out"},
		{"not json", `{`, "bad_request", ""},
		{"no type", `{"op":"end_session"}`, "bad_request", "type"},
		{"unknown type", `{"type":"audio_frame"}`, "bad_request", "type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			decErr, ok := err.(*DecodeError)
			if !ok {
				t.Fatalf("err type = %T", err)
			}
			if decErr.Code != tc.code || decErr.Param != tc.param {
				t.Fatalf("code=%q param=%q, want %q %q", decErr.Code, decErr.Param, tc.code, tc.param)
			}
		})
	}
}

func TestDecodeClientMessage_Control(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"control","op":" end_session "}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	ctrl, ok := msg.(ClientControl)
	if !ok || ctrl.Op != ControlEndSession {
		t.Fatalf("msg=%#v", msg)
	}

	_, err = DecodeClientMessage([]byte(`{"type":"control","op":"interrupt"}`))
	if decErr, ok := err.(*DecodeError); !ok || decErr.Code != "unsupported" {
		t.Fatalf("err=%v, want unsupported", err)
	}
	_, err = DecodeClientMessage([]byte(`{"type":"control"}`))
	if decErr, ok := err.(*DecodeError); !ok || decErr.Param != "op" {
		t.Fatalf("err=%v, want missing op", err)
	}
}

func TestRedactedForLog_HidesKey(t *testing.T) {
	h := ClientHello{Type: "hello", Auth: &HelloAuth{GatewayAPIKey: "sk_secret"}}
	raw, err := json.Marshal(h.RedactedForLog())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "sk_secret") {
		t.Fatalf("redacted hello leaks key: %s", raw)
	}
	if !strings.Contains(string(raw), `"has_gateway_key":true`) {
		t.Fatalf("redacted hello=%s", raw)
	}
}

func TestServerInterventionEnd_JSON(t *testing.T) {
	raw, err := json.Marshal(ServerInterventionEnd{Type: "intervention_end", InterventionID: "i_1", Text: "Correction: That statement is inaccurate. One plus one equals two.", Format: "correction"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"intervention_end","intervention_id":"i_1","text":"Correction: That statement is inaccurate. One plus one equals two.","format":"correction"}`
	if string(raw) != want {
		t.Fatalf("json=%s\nwant=%s", raw, want)
	}
}
