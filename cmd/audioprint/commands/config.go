package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/cli"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Long: `Show or change ~/.audioprint/config.yaml (or the file given by --config).

Keys: ` + strings.Join(cli.Keys(), ", ") + `

Examples:
  audioprint config show
  audioprint config set engine godsp
  audioprint config set storage.kind s3
  audioprint config set storage.bucket prints`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.output(cmd, a.cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one key and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			cli.PrintSuccess("%s = %s", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Path())
			return err
		},
	})
	return cmd
}
