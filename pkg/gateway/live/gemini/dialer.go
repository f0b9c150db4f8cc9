package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
)

const (
	// InputAudioMIMEType is the shape of client audio forwarded upstream.
	InputAudioMIMEType = "audio/pcm;rate=16000"
)

// Upstream is one open Live connection. *genai.Session satisfies it.
type Upstream interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Connector opens Live connections for a submitted model and configuration.
type Connector interface {
	Connect(ctx context.Context, model string, cfg sentinel.SessionConfig) (Upstream, error)
}

// ClientConfig selects the Gemini API surface.
type ClientConfig struct {
	Backend  genai.Backend
	APIKey   string
	Project  string
	Location string
}

// Dialer is the genai-backed Connector.
type Dialer struct {
	client *genai.Client
}

func NewDialer(ctx context.Context, cfg ClientConfig) (*Dialer, error) {
	cc := &genai.ClientConfig{Backend: cfg.Backend}
	switch cfg.Backend {
	case genai.BackendVertexAI:
		if strings.TrimSpace(cfg.Project) == "" {
			return nil, errors.New("vertex backend requires a project")
		}
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	default:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("gemini backend requires an api key")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Dialer{client: client}, nil
}

func (d *Dialer) Connect(ctx context.Context, model string, cfg sentinel.SessionConfig) (Upstream, error) {
	if d == nil || d.client == nil {
		return nil, errors.New("gemini dialer is not initialized")
	}
	sess, err := d.client.Live.Connect(ctx, model, ConnectConfig(cfg))
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ConnectConfig is the genai connect configuration for cfg. Output audio
// transcription is always enabled so spoken interventions can be relayed and
// audited as text.
func ConnectConfig(cfg sentinel.SessionConfig) *genai.LiveConnectConfig {
	lc := cfg.LiveConnectConfig()
	lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	return lc
}
