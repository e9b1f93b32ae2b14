package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
	"github.com/haivivi/audioprint/pkg/cli"
	"github.com/haivivi/audioprint/pkg/storage"
)

func newChromaCmd(a *app) *cobra.Command {
	var (
		exportID string
		fromID   string
		cols     int
	)
	cmd := &cobra.Command{
		Use:   "chroma [file]",
		Short: "Render a feature image as a heatmap",
		Long: `Compute the feature image of a file and render it in the terminal.

--export stores the image as images/<id>.fimg in the configured storage
(local directory or S3). --from renders a stored image instead of a file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				img   *chroma.FeatureImage
				title string
			)
			switch {
			case fromID != "" && len(args) > 0:
				return errors.New("give either a file or --from, not both")
			case fromID != "":
				fs, err := a.openStorage(ctx)
				if err != nil {
					return err
				}
				if img, err = storage.LoadImage(ctx, fs, fromID); err != nil {
					return err
				}
				title = fromID
			case len(args) == 1:
				an, err := a.analyze(ctx, args[0])
				if err != nil {
					return err
				}
				img, title = an.Image, filepath.Base(args[0])
			default:
				return errors.New("a file or --from is required")
			}

			if exportID != "" {
				fs, err := a.openStorage(ctx)
				if err != nil {
					return err
				}
				p, err := storage.SaveImage(ctx, fs, exportID, img)
				if err != nil {
					return err
				}
				a.logger.Info("image exported", "path", p, "rows", img.NumRows())
			}

			h := cli.Heatmap{Styles: cli.NewStyles(cli.DefaultTheme), Title: title, MaxCols: cols}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), h.Render(img))
			return err
		},
	}
	cmd.Flags().StringVar(&exportID, "export", "", "store the image under this id")
	cmd.Flags().StringVar(&fromID, "from", "", "render the stored image with this id")
	cmd.Flags().IntVar(&cols, "cols", 96, "maximum heatmap columns")
	return cmd
}
