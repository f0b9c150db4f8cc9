package sentinel

import (
	"google.golang.org/genai"
)

// ModelID is the audio-capable Live model the monitor is bound to.
const ModelID = "models/gemini-2.5-flash-native-audio-preview-09-2025"

// Modality is an output channel the remote session may use.
type Modality string

const ModalityAudio Modality = "AUDIO"

// Part is a single text segment of a Content.
type Part struct {
	Text string `json:"text"`
}

// Content is an ordered sequence of text segments forming one document.
type Content struct {
	Parts []Part `json:"parts"`
}

// Text joins all parts of the content.
func (c Content) Text() string {
	if len(c.Parts) == 1 {
		return c.Parts[0].Text
	}
	var n int
	for _, p := range c.Parts {
		n += len(p.Text)
	}
	b := make([]byte, 0, n)
	for _, p := range c.Parts {
		b = append(b, p.Text...)
	}
	return string(b)
}

// Proactivity controls whether the remote session may speak without an explicit
// human turn. A nil *Proactivity means it must wait to be prompted.
type Proactivity struct {
	ProactiveAudio bool `json:"proactiveAudio"`
}

// GoogleSearch declares the web search capability. It carries no options.
type GoogleSearch struct{}

// Tool is a capability declaration forwarded verbatim to the remote model.
type Tool struct {
	GoogleSearch *GoogleSearch `json:"googleSearch,omitempty"`
}

// SessionConfig is the configuration submitted to a session context. Treat it as
// immutable: build a new one with NewSessionConfig instead of editing a value
// that has already been submitted.
type SessionConfig struct {
	ResponseModalities []Modality   `json:"responseModalities"`
	SystemInstruction  Content      `json:"systemInstruction"`
	Proactivity        *Proactivity `json:"proactivity,omitempty"`
	Tools              []Tool       `json:"tools"`
}

// SelectModel returns the model identifier for the monitor session.
func SelectModel() string { return ModelID }

// NewSessionConfig assembles the silent-monitor configuration. Every call returns
// freshly allocated slices, so values handed to different sessions never alias.
func NewSessionConfig() SessionConfig {
	return SessionConfig{
		ResponseModalities: []Modality{ModalityAudio},
		SystemInstruction: Content{
			Parts: []Part{{Text: PolicyDocument}},
		},
		Proactivity: &Proactivity{ProactiveAudio: true},
		Tools:       []Tool{{GoogleSearch: &GoogleSearch{}}},
	}
}

// LiveConnectConfig converts the configuration into the genai SDK's connect
// options. The result is a new value on every call.
func (c SessionConfig) LiveConnectConfig() *genai.LiveConnectConfig {
	out := &genai.LiveConnectConfig{}

	for _, m := range c.ResponseModalities {
		out.ResponseModalities = append(out.ResponseModalities, genai.Modality(m))
	}

	if len(c.SystemInstruction.Parts) > 0 {
		content := &genai.Content{Parts: make([]*genai.Part, 0, len(c.SystemInstruction.Parts))}
		for _, p := range c.SystemInstruction.Parts {
			content.Parts = append(content.Parts, &genai.Part{Text: p.Text})
		}
		out.SystemInstruction = content
	}

	if c.Proactivity != nil {
		out.Proactivity = &genai.ProactivityConfig{
			ProactiveAudio: genai.Ptr(c.Proactivity.ProactiveAudio),
		}
	}

	for _, t := range c.Tools {
		tool := &genai.Tool{}
		if t.GoogleSearch != nil {
			tool.GoogleSearch = &genai.GoogleSearch{}
		}
		out.Tools = append(out.Tools, tool)
	}

	return out
}
