package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/4vn/gridstore"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get SELECTOR",
		Short: "Write a stored file to stdout or a local path",
		Long:  "SELECTOR is either an object id in hex or a filename. A filename selects its newest revision.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd, func(ctx context.Context, reg *gridstore.Registry) error {
				f, err := reg.Read(ctx, args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				w := cmd.OutOrStdout()
				if output != "" {
					out, err := os.Create(output)
					if err != nil {
						return err
					}
					defer out.Close()
					w = out
				}

				n, err := io.Copy(w, f)
				if err != nil {
					return fmt.Errorf("copy %s: %w", f.Filename, err)
				}
				a.log.Debug().Str("filename", f.Filename).Int64("bytes", n).Msg("read complete")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this path instead of stdout")
	return cmd
}
