package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/cmd/audioprint/internal/build"
	"github.com/haivivi/audioprint/pkg/cli"
	"github.com/haivivi/audioprint/pkg/fft"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("format") {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), build.String())
				if a.verbose {
					fmt.Fprintf(cmd.OutOrStdout(), "  config:  %s\n  engines: %v\n", a.cfg.Path(), fft.Engines())
				}
				return err
			}
			if a.format == string(cli.FormatRaw) {
				return a.output(cmd, build.String())
			}
			return a.output(cmd, build.Get())
		},
	}
}
