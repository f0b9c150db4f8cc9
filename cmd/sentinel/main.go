// Command sentinel runs the silent fact-checking monitor gateway and prints the
// monitor's configuration for operators.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-go/vai-sentinel/internal/dotenv"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd(stdout, stderr io.Writer, deps serveDeps) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Silent fact-checking monitor for live audio",
		Long:          "sentinel relays live audio to a Gemini Live session configured as a silent monitor that only speaks to correct false statements or flag safety risks.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return dotenv.LoadFile(opts.envFile)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading SENTINEL_* variables")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	root.AddCommand(
		newServeCmd(stderr, opts, deps),
		newConfigCmd(stdout),
		newDescribeCmd(stdout),
	)
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps serveDeps) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	root := newRootCmd(stdout, stderr, deps)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "sentinel: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultServeDeps()))
}
