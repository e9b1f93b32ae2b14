package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/fingerprint"
	"github.com/haivivi/audioprint/pkg/printserver"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Fingerprint audio streamed over websockets",
		Long: `Accept websocket connections and fingerprint the PCM they stream.

A session sends {"sample_rate": 11025, "channels": 1, "mode": "chroma"}
as its first text message, then binary 16-bit little-endian PCM, then
{"type": "flush"} to receive the fingerprint of everything sent so far.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := a.fftPool()
			if err != nil {
				return err
			}
			bits := a.cfg.HashBits
			if bits <= 0 {
				bits = fingerprint.DefaultHashBits
			}
			srv := printserver.New(
				printserver.WithPool(pool),
				printserver.WithLogger(a.logger),
				printserver.WithHashing(bits, fingerprint.DefaultSeed),
				printserver.WithInterpolation(a.cfg.Interpolate),
			)

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
