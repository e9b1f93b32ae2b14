package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/cli"
	"github.com/haivivi/audioprint/pkg/fingerprint"
)

type fingerprintResult struct {
	File        string     `json:"file" yaml:"file"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Duration    string     `json:"duration,omitempty" yaml:"duration,omitempty"`
	SampleRate  int        `json:"sample_rate" yaml:"sample_rate"`
	Frames      int        `json:"frames" yaml:"frames"`
	Width       int        `json:"width" yaml:"width"`
	Hash        string     `json:"hash,omitempty" yaml:"hash,omitempty"`
	Fingerprint string     `json:"fingerprint" yaml:"fingerprint"`
	Items       []itemBits `json:"items,omitempty" yaml:"items,omitempty"`
}

// itemBits shows an item as bit strings, feature 0 rightmost.
type itemBits struct {
	Delta string `json:"delta" yaml:"delta"`
	Level string `json:"level" yaml:"level"`
}

func itemsOf(fp *fingerprint.Fingerprint) []itemBits {
	out := make([]itemBits, len(fp.Items))
	for i, it := range fp.Items {
		out[i] = itemBits{
			Delta: fmt.Sprintf("%0*b", fp.Width, it.Delta),
			Level: fmt.Sprintf("%0*b", fp.Width, it.Level),
		}
	}
	return out
}

func newFingerprintCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:     "fingerprint <file>...",
		Aliases: []string{"fp"},
		Short:   "Fingerprint audio files",
		Long: `Decode each file, compute its feature image and print the fingerprint,
hash and frame count. With --format raw only the fingerprint strings are
printed, one per line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []fingerprintResult
			for _, path := range args {
				an, err := a.analyze(cmd.Context(), path)
				if err != nil {
					return err
				}
				sum, err := fingerprint.Summarize(an.Image, a.hasher(an.Image.Width()))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				r := fingerprintResult{
					File:        path,
					Title:       an.Tags.Title,
					SampleRate:  an.SampleRate,
					Frames:      sum.Frames,
					Width:       sum.Width,
					Hash:        sum.Hash,
					Fingerprint: sum.Fingerprint,
				}
				if an.Duration > 0 {
					r.Duration = cli.FormatDuration(an.Duration)
				}
				if raw {
					fp, err := fingerprint.Parse(sum.Fingerprint)
					if err != nil {
						return err
					}
					r.Items = itemsOf(fp)
				}
				results = append(results, r)
			}

			if a.format == string(cli.FormatRaw) {
				for _, r := range results {
					if err := a.output(cmd, r.Fingerprint); err != nil {
						return err
					}
				}
				return nil
			}
			if len(results) == 1 {
				return a.output(cmd, results[0])
			}
			return a.output(cmd, results)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "include the quantized items")
	return cmd
}
