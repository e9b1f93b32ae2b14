package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/fingerprint"
)

type compareResult struct {
	BitErrorRate float64 `json:"bit_error_rate" yaml:"bit_error_rate"`
	Compared     int     `json:"compared_items" yaml:"compared_items"`
	Match        bool    `json:"match" yaml:"match"`
}

func newCompareCmd(a *app) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Bit error rate between two fingerprints",
		Long: `Compare two fingerprints item by item over their common length. Each
argument is an audio file or a fingerprint string. Fingerprints match when
the bit error rate is at most --threshold.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fa, err := a.resolveFingerprint(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fb, err := a.resolveFingerprint(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			ber, err := fingerprint.BitErrorRate(fa, fb)
			if err != nil {
				return err
			}
			return a.output(cmd, compareResult{
				BitErrorRate: ber,
				Compared:     min(fa.Len(), fb.Len()),
				Match:        ber <= threshold,
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.35, "maximum bit error rate for a match")
	return cmd
}
