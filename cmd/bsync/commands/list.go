package commands

import (
	"fmt"

	"blobsync/pkg/report"

	"github.com/spf13/cobra"
)

func newListCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the blobs in the container with their tier and size",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := st.App(cmd)
			if err != nil {
				return err
			}
			if err := a.Store.EnsureContainer(ctx, false); err != nil {
				return err
			}
			blobs, err := a.Store.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list container: %w", err)
			}
			report.PrintListing(cmd.OutOrStdout(), blobs)
			return nil
		},
	}
}
