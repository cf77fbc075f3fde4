package commands

import (
	"errors"
	"fmt"

	"blobsync/pkg/app"
	"blobsync/pkg/report"
	"blobsync/pkg/resolver"
	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/spf13/cobra"
)

func newDownloadCmd(st *state) *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download [blob] | --all",
		Short: "Download one blob, or every blob in the container",
		Long: `Download blobs into --dest, keeping their names as relative paths.
Only Hot and Cool blobs can be downloaded; rehydrate archived blobs first.
Existing local files are kept unless --overwrite is given; files whose MD5
already matches are never downloaded again.`,
		Args: allOrOne,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := st.App(cmd)
			if err != nil {
				return err
			}
			dest, _ := cmd.Flags().GetString("dest")
			all, _ := cmd.Flags().GetBool("all")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			// 下载要求容器已经存在
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
			items, markers := resolver.DownloadItems(dest, names)
			for _, m := range markers {
				a.Logger.Info("skipping folder marker", "blob", m)
			}
			if !all && len(items) == 0 {
				return &ExitError{Code: ExitNotFound, Err: fmt.Errorf("blob %s is a folder marker: %w", args[0], resolver.ErrInvalidName)}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "⬇️  Downloading %d blob(s) from %s to %s\n", len(items), a.Store.Container(), dest)
			r := a.RunBatch(ctx, app.Batch{
				Command: "download",
				Options: map[string]any{
					"dest":      dest,
					"overwrite": st.settings.Overwrite,
					"workers":   st.settings.Workers,
					"dry_run":   dryRun,
				},
				Items:   items,
				Handler: a.DownloadHandler(dest, st.settings.Overwrite, dryRun),
			})
			report.PrintSummary(cmd.OutOrStdout(), "download", r)
			if all {
				return batchError(r)
			}
			return singleError(r)
		},
	}
	f := downloadCmd.Flags()
	f.StringP("dest", "d", ".", "local destination folder")
	f.Bool("all", false, "download every blob in the container")
	f.Bool("overwrite", false, "replace local files whose MD5 differs")
	f.String("md5-cache-file", "", "file that caches local MD5 sums")
	addBatchFlags(downloadCmd)
	return downloadCmd
}

// allOrOne 要么给一个对象名，要么 --all
func allOrOne(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	switch {
	case all && len(args) > 0:
		return errors.New("cannot combine a blob name with --all")
	case !all && len(args) != 1:
		return errors.New("requires exactly one blob name, or --all")
	}
	return nil
}
