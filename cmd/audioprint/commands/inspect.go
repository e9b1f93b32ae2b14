package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/fingerprint"
)

type inspectResult struct {
	Version int        `json:"version" yaml:"version"`
	Width   int        `json:"width" yaml:"width"`
	Items   int        `json:"items" yaml:"items"`
	Bytes   int        `json:"bytes" yaml:"bytes"`
	Bits    []itemBits `json:"bits,omitempty" yaml:"bits,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var showItems bool
	cmd := &cobra.Command{
		Use:   "inspect <fingerprint>",
		Short: "Decode a fingerprint string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := fingerprint.Parse(args[0])
			if err != nil {
				return err
			}
			r := inspectResult{
				Version: fp.Version,
				Width:   fp.Width,
				Items:   fp.Len(),
				Bytes:   len(fp.Marshal()),
			}
			if showItems {
				r.Bits = itemsOf(fp)
			}
			return a.output(cmd, r)
		},
	}
	cmd.Flags().BoolVar(&showItems, "items", false, "list every item")
	return cmd
}
