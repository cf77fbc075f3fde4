package commands

import (
	"fmt"

	"blobsync/pkg/app"
	"blobsync/pkg/report"
	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/spf13/cobra"
)

func newRehydrateCmd(st *state) *cobra.Command {
	rehydrateCmd := &cobra.Command{
		Use:   "rehydrate [blob] | --all",
		Short: "Move archived blobs to a readable tier",
		Long: `Request a tier change for one blob or every blob in the container.
Rehydration from Archive is asynchronous: the command returns once the request
is accepted; run 'bsync list' later to see the new tier.`,
		Args: allOrOne,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := st.App(cmd)
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			target := types.TierCool
			if st.settings.Tier != "" {
				if target, err = types.ParseTier(st.settings.Tier); err != nil {
					return err
				}
			}
			priority, err := types.ParsePriority(st.settings.Priority)
			if err != nil {
				return err
			}

			if err := a.Store.EnsureContainer(ctx, false); err != nil {
				return err
			}
			manifest, err := storage.FetchManifest(ctx, a.Store)
			if err != nil {
				return fmt.Errorf("failed to list container: %w", err)
			}

			names := manifest.Names()
			if !all {
				if !manifest.Has(args[0]) {
					return &ExitError{Code: ExitNotFound, Err: fmt.Errorf("blob %s in %s: %w", args[0], a.Store.Container(), types.ErrNotFound)}
				}
				names = []string{args[0]}
			}
			items := make([]types.WorkItem, 0, len(names))
			for _, name := range names {
				items = append(items, types.WorkItem{RemoteName: name})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "♨️  Rehydrating %d blob(s) in %s to %s (priority %s)\n",
				len(items), a.Store.Container(), target, priority)
			r := a.RunBatch(ctx, app.Batch{
				Command: "rehydrate",
				Options: map[string]any{
					"tier":     target,
					"priority": priority,
					"workers":  st.settings.Workers,
					"dry_run":  dryRun,
				},
				Items:   items,
				Handler: a.TierHandler(target, priority, dryRun),
			})
			report.PrintSummary(cmd.OutOrStdout(), "rehydrate", r)
			if all {
				return batchError(r)
			}
			return singleError(r)
		},
	}
	f := rehydrateCmd.Flags()
	f.Bool("all", false, "rehydrate every blob in the container")
	f.String("tier", "", "target tier: Hot or Cool (default Cool)")
	f.String("priority", "", "rehydrate priority: Standard or High")
	addBatchFlags(rehydrateCmd)
	return rehydrateCmd
}
