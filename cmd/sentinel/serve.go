package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/gemini"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-sentinel/pkg/gateway/metrics"
	gatewayserver "github.com/vango-go/vai-sentinel/pkg/gateway/server"
	"github.com/vango-go/vai-sentinel/pkg/gateway/store"
)

type serveDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(context.Context, config.Config) (store.Store, error)
	newConnector func(context.Context, config.Config) (gemini.Connector, error)
	listen       func(*http.Server) error
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServeDeps() serveDeps {
	return serveDeps{
		loadConfig:   config.LoadFromEnv,
		openStore:    openStore,
		newConnector: newConnector,
		listen:       (*http.Server).ListenAndServe,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return store.Nop{}, nil
	}
	return store.OpenPostgres(ctx, cfg.DatabaseURL)
}

func newConnector(ctx context.Context, cfg config.Config) (gemini.Connector, error) {
	cc := gemini.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.GeminiAPIKey,
	}
	if cfg.Backend == config.BackendVertexAI {
		cc = gemini.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.VertexProject,
			Location: cfg.VertexLocation,
		}
	}
	return gemini.NewDialer(ctx, cc)
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newServeCmd(stderr io.Writer, root *rootOptions, deps serveDeps) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live monitor gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(stderr, root.logLevel)
			if err != nil {
				return err
			}
			if addr != "" {
				loadConfig := deps.loadConfig
				deps.loadConfig = func() (config.Config, error) {
					cfg, err := loadConfig()
					cfg.Addr = addr
					return cfg, err
				}
			}
			return runServe(cmd.Context(), logger, deps)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SENTINEL_ADDR)")
	return cmd
}

func runServe(ctx context.Context, logger *slog.Logger, deps serveDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil || deps.newConnector == nil || deps.listen == nil {
		return errors.New("missing serve dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := deps.openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer st.Close()

	connector, err := deps.newConnector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}

	gw := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Connector: connector,
		Store:     st,
		Metrics:   metrics.New(),
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting sentinel gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"backend", cfg.Backend,
		"audit", cfg.DatabaseURL != "",
		"max_live_sessions", cfg.MaxLiveSessions,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := deps.listen(httpSrv)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("context canceled, shutting down")
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Lifecycle().BeginDrain(time.Now())
	warned := gw.LiveSessions().WarnAll("draining", "gateway is shutting down; finish and reconnect")
	logger.Info("draining live sessions", "sessions", warned, "grace_period", cfg.ShutdownGracePeriod)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Shutdown does not track hijacked WebSocket connections.
	drainLiveSessions(shutdownCtx, logger, gw.LiveSessions(), 5*time.Second)

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("sentinel gateway stopped")
	return nil
}

// drainLiveSessions waits for relays to finish until ctx expires, then cancels
// the stragglers and gives them cancelWait to exit.
func drainLiveSessions(ctx context.Context, logger *slog.Logger, tracker *sessions.Tracker, cancelWait time.Duration) {
	if tracker.Wait(ctx) {
		return
	}
	ids := tracker.IDs()
	canceled := tracker.CancelAll()
	logger.Warn("grace period elapsed, canceled live sessions", "sessions", canceled, "session_ids", ids)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cancelWait)
	defer waitCancel()
	if !tracker.Wait(waitCtx) {
		logger.Error("live sessions did not exit after cancel", "session_ids", tracker.IDs())
	}
}
