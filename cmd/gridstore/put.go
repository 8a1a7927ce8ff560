package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/4vn/gridstore"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const maxParallelUploads = 4

func newPutCmd(a *app) *cobra.Command {
	var (
		name        string
		contentType string
		detect      bool
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "put PATH...",
		Short: "Store local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return errors.New("--name can only be used with a single path")
			}
			mode := gridstore.ModeWrite
			if overwrite {
				mode = gridstore.ModeOverwrite
			}

			return a.withRegistry(cmd, func(ctx context.Context, reg *gridstore.Registry) error {
				records := make([]*gridstore.FileRecord, len(args))
				g, ctx := errgroup.WithContext(ctx)
				g.SetLimit(maxParallelUploads)
				for i, path := range args {
					i, path := i, path
					g.Go(func() error {
						opts := gridstore.WriteOptions{
							Filename:    name,
							ContentType: contentType,
							Mode:        mode,
						}
						if opts.Filename == "" {
							opts.Filename = filepath.Base(path)
						}
						if opts.ContentType == "" && detect {
							mt, err := mimetype.DetectFile(path)
							if err != nil {
								return err
							}
							opts.ContentType = mt.String()
						}

						rec, err := reg.Write(ctx, gridstore.PathSource(path), opts)
						if err != nil {
							return err
						}
						records[i] = rec
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}

				for _, rec := range records {
					printf(cmd.OutOrStdout(), "%s\t%s\t%d\n", rec.ID.Hex(), rec.Filename, rec.Length)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "stored filename (defaults to the base name of PATH)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type to record")
	cmd.Flags().BoolVar(&detect, "detect-type", false, "sniff the content type when --content-type is not set")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "delete older revisions with the same filename")
	return cmd
}
