package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/cli"
	"github.com/haivivi/audioprint/pkg/fft"
)

// app carries the flags and lazily opened resources shared by commands.
type app struct {
	configPath  string
	verbose     bool
	format      string
	engine      string
	sampleRate  int
	mode        string
	bands       int
	interpolate bool

	cfg    *cli.Config
	logger *slog.Logger
	pool   *fft.Pool
}

// NewRootCmd builds the audioprint command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "audioprint",
		Short: "Chroma fingerprints for audio files and streams",
		Long: `audioprint - compute, compare and catalog acoustic fingerprints.

Audio is decoded (wav, mp3, flac, ogg), resampled to the analysis rate,
cut into overlapping frames and folded into a 12-bin chromagram (or a
linear-band spectrogram). The image is quantized into a compact
fingerprint string and a short locality-sensitive hash.

Configuration is read from ~/.audioprint/config.yaml; flags override it.

Examples:
  audioprint fingerprint song.mp3
  audioprint chroma song.flac --export song
  audioprint compare a.wav b.wav
  audioprint catalog add ~/Music/*.mp3
  audioprint catalog find song.wav
  audioprint serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.audioprint/config.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVarP(&a.format, "format", "o", "yaml", "output format: yaml, json, raw")
	pf.StringVar(&a.engine, "engine", "", "FFT engine: "+fmt.Sprint(fft.Engines()))
	pf.IntVar(&a.sampleRate, "rate", 0, "analysis sample rate (0 keeps the source rate)")
	pf.StringVar(&a.mode, "mode", "", "feature mode: chroma, spectrogram")
	pf.IntVar(&a.bands, "bands", 0, "spectrogram band count")
	pf.BoolVar(&a.interpolate, "interpolate", false, "split spectrum bins between neighbouring pitch classes")

	root.AddCommand(
		newFingerprintCmd(a),
		newChromaCmd(a),
		newInspectCmd(a),
		newCompareCmd(a),
		newCatalogCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the audioprint command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(cmd *cobra.Command) error {
	a.logger = cli.NewLogger(cmd.ErrOrStderr(), a.verbose)
	slog.SetDefault(a.logger)

	if _, err := cli.ParseFormat(a.format); err != nil {
		return err
	}

	cfg, err := cli.LoadConfigWithPath(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = a.engine
	}
	if flags.Changed("rate") {
		cfg.SampleRate = a.sampleRate
	}
	if flags.Changed("mode") {
		cfg.Mode = a.mode
	}
	if flags.Changed("bands") {
		cfg.Bands = a.bands
	}
	if flags.Changed("interpolate") {
		cfg.Interpolate = a.interpolate
	}
	a.cfg = cfg
	a.logger.Debug("config loaded", "path", cfg.Path(), "engine", cfg.Engine, "mode", cfg.Mode)
	return nil
}

func (a *app) teardown() error {
	if a.pool == nil {
		return nil
	}
	err := a.pool.Close()
	a.pool = nil
	return err
}

func (a *app) output(cmd *cobra.Command, v any) error {
	return cli.Output(v, cli.OutputOptions{
		Format: cli.OutputFormat(a.format),
		Writer: cmd.OutOrStdout(),
	})
}
