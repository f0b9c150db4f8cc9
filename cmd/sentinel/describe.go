package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
)

type payload struct {
	Model         string                 `json:"model"`
	PolicyVersion string                 `json:"policy_version"`
	Config        sentinel.SessionConfig `json:"config"`
}

func newConfigCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the model and the exact session configuration submitted upstream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeIndentedJSON(stdout, payload{
				Model:         sentinel.SelectModel(),
				PolicyVersion: sentinel.PolicyVersion,
				Config:        sentinel.NewSessionConfig(),
			})
		},
	}
}

func newDescribeCmd(stdout io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the monitor's feature list and example behaviors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := sentinel.Describe()
			if asJSON {
				return writeIndentedJSON(stdout, d)
			}
			return writeDescription(stdout, d)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the description as JSON")
	return cmd
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeDescription(w io.Writer, d sentinel.Description) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("%s\n", d.Title)
	printf("model: %s\npolicy: %s\n\n", d.Model, d.PolicyVersion)
	printf("Features\n")
	for _, f := range d.Features {
		printf("  %s %s: %s\n", f.Icon, f.Title, f.Description)
	}
	printf("\nExamples\n")
	for _, ex := range d.Examples {
		printf("  %s %s\n    input:    %s\n    behavior: %s\n", ex.Icon, ex.Title, ex.Input, ex.Behavior)
	}
	return err
}
