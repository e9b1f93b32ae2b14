package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/audioprint/pkg/catalog"
	"github.com/haivivi/audioprint/pkg/fingerprint"
	"github.com/haivivi/audioprint/pkg/storage"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Store and look up fingerprints",
		Long: `Manage the fingerprint catalog.

The catalog is a badger database (config key "catalog") holding one record
per recording, indexed by hash. Set catalog to "memory" for a throwaway
catalog.`,
	}
	cmd.AddCommand(
		newCatalogAddCmd(a),
		newCatalogGetCmd(a),
		newCatalogListCmd(a),
		newCatalogDeleteCmd(a),
		newCatalogFindCmd(a),
	)
	return cmd
}

// withCatalog opens the catalog for the duration of fn.
func (a *app) withCatalog(fn func(c *catalog.Catalog) error) (err error) {
	c, closeStore, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

func newCatalogAddCmd(a *app) *cobra.Command {
	var (
		id     string
		export bool
	)
	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Fingerprint files and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id != "" && len(args) > 1 {
				return fmt.Errorf("--id needs exactly one file")
			}
			ctx := cmd.Context()
			return a.withCatalog(func(c *catalog.Catalog) error {
				var added []catalog.Record
				for _, path := range args {
					an, err := a.analyze(ctx, path)
					if err != nil {
						return err
					}
					sum, err := fingerprint.Summarize(an.Image, a.hasher(an.Image.Width()))
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					rec, err := c.Put(ctx, catalog.Record{
						ID:          id,
						Title:       an.Tags.Title,
						Artist:      an.Tags.Artist,
						Album:       an.Tags.Album,
						Source:      path,
						Duration:    an.Duration,
						SampleRate:  an.SampleRate,
						Frames:      sum.Frames,
						Fingerprint: sum.Fingerprint,
						Hash:        sum.Hash,
					})
					if err != nil {
						return err
					}
					if export {
						fs, err := a.openStorage(ctx)
						if err != nil {
							return err
						}
						if _, err := storage.SaveImage(ctx, fs, rec.ID, an.Image); err != nil {
							return err
						}
					}
					a.logger.Info("catalogued", "id", rec.ID, "title", rec.Title, "hash", rec.Hash)
					added = append(added, rec)
				}
				return a.output(cmd, added)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id (default: a new UUID)")
	cmd.Flags().BoolVar(&export, "export", false, "also store the feature image under the record id")
	return cmd
}

func newCatalogGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCatalog(func(c *catalog.Catalog) error {
				rec, err := c.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.output(cmd, rec)
			})
		},
	}
}

type listEntry struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Hash   string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Frames int    `json:"frames" yaml:"frames"`
}

func newCatalogListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List records",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCatalog(func(c *catalog.Catalog) error {
				entries := []listEntry{}
				for rec, err := range c.List(cmd.Context()) {
					if err != nil {
						return err
					}
					entries = append(entries, listEntry{ID: rec.ID, Title: rec.Title, Hash: rec.Hash, Frames: rec.Frames})
				}
				return a.output(cmd, entries)
			})
		},
	}
}

func newCatalogDeleteCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete records",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withCatalog(func(c *catalog.Catalog) error {
				for _, id := range args {
					if err := c.Delete(ctx, id); err != nil {
						return err
					}
					if purge {
						fs, err := a.openStorage(ctx)
						if err != nil {
							return err
						}
						p, err := storage.ImagePath(id)
						if err != nil {
							return err
						}
						if err := fs.Delete(ctx, p); err != nil {
							return err
						}
					}
					a.logger.Info("deleted", "id", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also delete the stored feature image")
	return cmd
}

type findResult struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title,omitempty" yaml:"title,omitempty"`
	Source       string   `json:"source,omitempty" yaml:"source,omitempty"`
	BitErrorRate *float64 `json:"bit_error_rate,omitempty" yaml:"bit_error_rate,omitempty"`
}

func newCatalogFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <hash|file>",
		Short: "Find records with the same hash",
		Long: `List the records whose hash equals the given hash. When the argument is
an audio file it is fingerprinted first and each record reports its bit
error rate against the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hash := args[0]
			var probe *fingerprint.Fingerprint
			if isAudioFile(args[0]) {
				an, err := a.analyze(ctx, args[0])
				if err != nil {
					return err
				}
				if probe, err = fingerprint.FromImage(an.Image); err != nil {
					return err
				}
				hash = a.hasher(an.Image.Width()).Hash(an.Image)
				a.logger.Debug("probe hash", "hash", hash)
			}
			return a.withCatalog(func(c *catalog.Catalog) error {
				recs, err := c.FindByHash(ctx, hash)
				if err != nil {
					return err
				}
				results := []findResult{}
				for _, rec := range recs {
					r := findResult{ID: rec.ID, Title: rec.Title, Source: rec.Source}
					if probe != nil {
						if fp, err := fingerprint.Parse(rec.Fingerprint); err == nil {
							if ber, err := fingerprint.BitErrorRate(probe, fp); err == nil {
								r.BitErrorRate = &ber
							}
						}
					}
					results = append(results, r)
				}
				return a.output(cmd, results)
			})
		},
	}
}
