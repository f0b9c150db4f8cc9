package sentinel

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"
)

func TestNewSessionConfig_WirePayload(t *testing.T) {
	got, err := json.Marshal(NewSessionConfig())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	text, err := json.Marshal(PolicyDocument)
	if err != nil {
		t.Fatalf("marshal policy: %v", err)
	}
	want := `{"responseModalities":["AUDIO"],` +
		`"systemInstruction":{"parts":[{"text":` + string(text) + `}]},` +
		`"proactivity":{"proactiveAudio":true},` +
		`"tools":[{"googleSearch":{}}]}`

	if string(got) != want {
		t.Fatalf("payload mismatch (-want +got):\n%s", cmp.Diff(want, string(got)))
	}
}

func TestNewSessionConfig_Fields(t *testing.T) {
	cfg := NewSessionConfig()

	if diff := cmp.Diff([]Modality{ModalityAudio}, cfg.ResponseModalities); diff != "" {
		t.Fatalf("ResponseModalities (-want +got):\n%s", diff)
	}
	if len(cfg.SystemInstruction.Parts) != 1 {
		t.Fatalf("parts=%d, want 1", len(cfg.SystemInstruction.Parts))
	}
	if cfg.SystemInstruction.Parts[0].Text != PolicyDocument {
		t.Fatalf("system instruction text does not equal PolicyDocument")
	}
	if cfg.SystemInstruction.Text() != PolicyDocument {
		t.Fatalf("Content.Text() does not equal PolicyDocument")
	}
	if cfg.Proactivity == nil || !cfg.Proactivity.ProactiveAudio {
		t.Fatalf("Proactivity=%+v, want proactiveAudio=true", cfg.Proactivity)
	}
	if diff := cmp.Diff([]Tool{{GoogleSearch: &GoogleSearch{}}}, cfg.Tools); diff != "" {
		t.Fatalf("Tools (-want +got):\n%s", diff)
	}
}

func TestNewSessionConfig_FreshValues(t *testing.T) {
	a := NewSessionConfig()
	b := NewSessionConfig()

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("configs differ (-a +b):\n%s", diff)
	}

	a.ResponseModalities[0] = "TEXT"
	a.SystemInstruction.Parts[0].Text = "mutated"
	a.Proactivity.ProactiveAudio = false

	c := NewSessionConfig()
	if c.ResponseModalities[0] != ModalityAudio {
		t.Fatalf("modalities aliased across calls")
	}
	if c.SystemInstruction.Parts[0].Text != PolicyDocument {
		t.Fatalf("system instruction aliased across calls")
	}
	if !c.Proactivity.ProactiveAudio {
		t.Fatalf("proactivity aliased across calls")
	}
	if b.ResponseModalities[0] != ModalityAudio {
		t.Fatalf("mutating one config changed another")
	}
}

func TestSessionConfig_LiveConnectConfig(t *testing.T) {
	lc := NewSessionConfig().LiveConnectConfig()

	if len(lc.ResponseModalities) != 1 || lc.ResponseModalities[0] != genai.ModalityAudio {
		t.Fatalf("ResponseModalities=%v, want [AUDIO]", lc.ResponseModalities)
	}
	if lc.SystemInstruction == nil || len(lc.SystemInstruction.Parts) != 1 {
		t.Fatalf("SystemInstruction=%+v, want one part", lc.SystemInstruction)
	}
	if lc.SystemInstruction.Parts[0].Text != PolicyDocument {
		t.Fatalf("system instruction text does not equal PolicyDocument")
	}
	if lc.Proactivity == nil || lc.Proactivity.ProactiveAudio == nil || !*lc.Proactivity.ProactiveAudio {
		t.Fatalf("Proactivity=%+v, want proactiveAudio=true", lc.Proactivity)
	}
	if len(lc.Tools) != 1 || lc.Tools[0].GoogleSearch == nil {
		t.Fatalf("Tools=%+v, want one googleSearch tool", lc.Tools)
	}

	other := NewSessionConfig().LiveConnectConfig()
	if other == lc || other.SystemInstruction == lc.SystemInstruction {
		t.Fatalf("LiveConnectConfig returned shared values")
	}
}

func TestSessionConfig_LiveConnectConfig_NoProactivity(t *testing.T) {
	cfg := NewSessionConfig()
	cfg.Proactivity = nil

	if lc := cfg.LiveConnectConfig(); lc.Proactivity != nil {
		t.Fatalf("Proactivity=%+v, want nil", lc.Proactivity)
	}
}

func TestSelectModel(t *testing.T) {
	if got := SelectModel(); got != "models/gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Fatalf("SelectModel()=%q", got)
	}
}
