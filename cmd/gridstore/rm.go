package main

import (
	"context"

	"github.com/4vn/gridstore"
	"github.com/spf13/cobra"
)

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm SELECTOR...",
		Short: "Remove stored files",
		Long:  "Each SELECTOR is an object id in hex or a filename. A filename removes every revision stored under it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd, func(ctx context.Context, reg *gridstore.Registry) error {
				for _, sel := range args {
					if err := reg.Remove(ctx, sel); err != nil {
						return err
					}
					printf(cmd.OutOrStdout(), "removed %s\n", sel)
				}
				return nil
			})
		},
	}
}
