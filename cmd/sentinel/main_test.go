package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/gemini"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-sentinel/pkg/gateway/store"
)

type nopConnector struct{}

func (nopConnector) Connect(context.Context, string, sentinel.SessionConfig) (gemini.Upstream, error) {
	return nil, errors.New("not connected")
}

type closeTrackingStore struct {
	store.Nop
	closed bool
}

func (s *closeTrackingStore) Close() { s.closed = true }

func testServeDeps(t *testing.T, cfg config.Config, st store.Store, listen func(*http.Server) error) serveDeps {
	t.Helper()
	return serveDeps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		openStore: func(context.Context, config.Config) (store.Store, error) {
			return st, nil
		},
		newConnector: func(context.Context, config.Config) (gemini.Connector, error) {
			return nopConnector{}, nil
		},
		listen:       listen,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	}
}

func serveConfig() config.Config {
	return config.Config{
		Addr:                "127.0.0.1:0",
		AuthMode:            config.AuthModeDisabled,
		Backend:             config.BackendGeminiAPI,
		GeminiAPIKey:        "gm_test",
		MaxLiveSessions:     2,
		ReadHeaderTimeout:   time.Second,
		ShutdownGracePeriod: time.Second,
	}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	deps := defaultServeDeps()
	deps.loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("boom")
	}
	deps.openStore = func(context.Context, config.Config) (store.Store, error) {
		t.Fatalf("openStore should not be called when config load fails")
		return nil, nil
	}

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), []string{"serve", "--env-file", filepath.Join(t.TempDir(), ".env")}, io.Discard, &stderr, deps)
	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); !strings.Contains(got, "load config: boom") {
		t.Fatalf("stderr=%q", got)
	}
}

func TestRunMain_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	code := runMain(context.Background(), []string{"serve", "--log-level", "loud", "--env-file", filepath.Join(t.TempDir(), ".env")}, io.Discard, &stderr, testServeDeps(t, serveConfig(), store.Nop{}, nil))
	if code != 1 || !strings.Contains(stderr.String(), "invalid --log-level") {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
	}
	srv := buildHTTPServer(cfg, http.NotFoundHandler())

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
}

func TestRunServe_ListenErrorClosesStore(t *testing.T) {
	t.Parallel()

	st := &closeTrackingStore{}
	deps := testServeDeps(t, serveConfig(), st, func(*http.Server) error {
		return errors.New("address in use")
	})

	err := runServe(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), deps)
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Fatalf("err=%v", err)
	}
	if !st.closed {
		t.Fatalf("store was not closed")
	}
}

func TestRunServe_GracefulOnContextCancel(t *testing.T) {
	t.Parallel()

	started := make(chan *http.Server, 1)
	stopped := make(chan struct{})
	deps := testServeDeps(t, serveConfig(), store.Nop{}, func(srv *http.Server) error {
		started <- srv
		<-stopped
		return http.ErrServerClosed
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runServe(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), deps)
	}()

	srv := <-started
	srv.RegisterOnShutdown(func() { close(stopped) })
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runServe error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runServe did not return after cancel")
	}
}

func TestDrainLiveSessions_CancelsStragglersAndLogsIDs(t *testing.T) {
	t.Parallel()

	tracker := sessions.NewTracker(0)
	for _, id := range []string{"s_b", "s_a"} {
		var release func()
		r, err := tracker.Admit(id, sessions.Handle{Cancel: func() { release() }})
		if err != nil {
			t.Fatalf("Admit(%s): %v", id, err)
		}
		release = r
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	drainLiveSessions(ctx, logger, tracker, time.Second)

	if n := tracker.Count(); n != 0 {
		t.Fatalf("Count()=%d, want 0", n)
	}
	if !strings.Contains(logs.String(), "session_ids=\"[s_a s_b]\"") {
		t.Fatalf("logs=%s, want canceled session ids", logs.String())
	}
	if strings.Contains(logs.String(), "did not exit") {
		t.Fatalf("logs=%s", logs.String())
	}
}

func TestDrainLiveSessions_ReturnsWhenIdle(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	drainLiveSessions(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)), sessions.NewTracker(1), time.Second)
	if logs.Len() != 0 {
		t.Fatalf("logs=%s, want none", logs.String())
	}
}

func TestRunServe_MissingDeps(t *testing.T) {
	t.Parallel()
	if err := runServe(context.Background(), nil, serveDeps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestConfigCommand_PrintsPayload(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	code := runMain(context.Background(), []string{"config", "--env-file", filepath.Join(t.TempDir(), ".env")}, &stdout, io.Discard, serveDeps{})
	if code != 0 {
		t.Fatalf("exit=%d", code)
	}

	var got payload
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout.String())
	}
	want := payload{
		Model:         sentinel.ModelID,
		PolicyVersion: sentinel.PolicyVersion,
		Config:        sentinel.NewSessionConfig(),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stdout.String(), `"proactiveAudio": true`) {
		t.Fatalf("payload missing proactivity flag:\n%s", stdout.String())
	}
}

func TestDescribeCommand(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	code := runMain(context.Background(), []string{"describe", "--env-file", filepath.Join(t.TempDir(), ".env")}, &stdout, io.Discard, serveDeps{})
	if code != 0 {
		t.Fatalf("exit=%d", code)
	}
	out := stdout.String()
	d := sentinel.Describe()
	for _, want := range []string{d.Title, d.Model, d.Features[0].Title, d.Examples[1].Input} {
		if !strings.Contains(out, want) {
			t.Fatalf("describe output missing %q:\n%s", want, out)
		}
	}

	stdout.Reset()
	code = runMain(context.Background(), []string{"describe", "--json", "--env-file", filepath.Join(t.TempDir(), ".env")}, &stdout, io.Discard, serveDeps{})
	if code != 0 {
		t.Fatalf("json exit=%d", code)
	}
	var got sentinel.Description
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Fatalf("description mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMain_UnknownCommand(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"bogus"}, io.Discard, &stderr, serveDeps{}); code != 1 {
		t.Fatalf("exit=%d, want 1", code)
	}
}
