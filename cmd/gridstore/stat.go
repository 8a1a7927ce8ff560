package main

import (
	"context"
	"encoding/json"

	"github.com/4vn/gridstore"
	"github.com/spf13/cobra"
)

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat SELECTOR",
		Short: "Print the record of a stored file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd, func(ctx context.Context, reg *gridstore.Registry) error {
				f, err := reg.Read(ctx, args[0])
				if err != nil {
					return err
				}
				_ = f.Close()

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(f.FileRecord)
			})
		},
	}
}
