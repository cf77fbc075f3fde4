package commands

import (
	"fmt"
	"os"

	"blobsync/pkg/app"
	"blobsync/pkg/dispatch"
	"blobsync/pkg/ignore"
	"blobsync/pkg/report"
	"blobsync/pkg/resolver"
	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/spf13/cobra"
)

func newUploadCmd(st *state) *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a file or a folder to the container",
	}
	pf := uploadCmd.PersistentFlags()
	pf.String("tier", "", "access tier of new blobs: Hot, Cool or Archive (default Archive)")
	pf.Bool("overwrite", false, "replace remote blobs whose MD5 differs from the local file")
	pf.String("md5-cache-file", "", "file that caches local MD5 sums")

	fileCmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fi, err := os.Stat(path)
			if os.IsNotExist(err) {
				return &ExitError{Code: ExitNotFound, Err: fmt.Errorf("local file %s: %w", path, types.ErrNotFound)}
			}
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return fmt.Errorf("%s is a directory (use 'bsync upload folder')", path)
			}

			name, _ := cmd.Flags().GetString("name")
			item := types.WorkItem{LocalPath: path, RemoteName: resolver.SingleName(path, name)}
			r, err := runUpload(cmd, st, []types.WorkItem{item})
			if err != nil {
				return err
			}
			return singleError(r)
		},
	}
	fileCmd.Flags().String("name", "", "remote blob name (default: the path as given)")
	addBatchFlags(fileCmd)

	folderCmd := &cobra.Command{
		Use:   "folder <dir>",
		Short: "Upload every file under a folder, recursively",
		Long: `Upload every file under <dir>. Blob names keep the folder's own name as
prefix (photos/2020/a.jpg) unless --strip-base-folder is given (2020/a.jpg).
Rules in <dir>/` + ignore.FileName + ` and --exclude patterns skip matching files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			strip, _ := cmd.Flags().GetBool("strip-base-folder")
			excludes, _ := cmd.Flags().GetStringSlice("exclude")

			matcher, err := ignore.NewMatcher(dir, excludes...)
			if err != nil {
				return fmt.Errorf("failed to load ignore rules: %w", err)
			}
			items, err := resolver.Walk(dir, strip, matcher)
			if os.IsNotExist(err) {
				return &ExitError{Code: ExitNotFound, Err: fmt.Errorf("local folder %s: %w", dir, types.ErrNotFound)}
			}
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to upload.")
				return nil
			}

			r, err := runUpload(cmd, st, items)
			if err != nil {
				return err
			}
			return batchError(r)
		},
	}
	folderCmd.Flags().Bool("strip-base-folder", false, "do not prefix blob names with the folder name")
	folderCmd.Flags().StringSlice("exclude", nil, "extra ignore patterns (gitignore syntax)")
	addBatchFlags(folderCmd)

	uploadCmd.AddCommand(fileCmd, folderCmd)
	return uploadCmd
}

// runUpload 上传前创建容器 (不存在时)，拉取一次 manifest 快照
func runUpload(cmd *cobra.Command, st *state, items []types.WorkItem) (*dispatch.Report, error) {
	ctx := cmd.Context()
	a, err := st.App(cmd)
	if err != nil {
		return nil, err
	}

	tier := types.TierArchive
	if st.settings.Tier != "" {
		if tier, err = types.ParseTier(st.settings.Tier); err != nil {
			return nil, err
		}
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if err := a.Store.EnsureContainer(ctx, true); err != nil {
		return nil, err
	}
	manifest, err := storage.FetchManifest(ctx, a.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to list container: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "📦 Uploading %d file(s) to %s (tier %s)\n", len(items), a.Store.Container(), tier)
	r := a.RunBatch(ctx, app.Batch{
		Command: "upload",
		Options: map[string]any{
			"tier":      tier,
			"overwrite": st.settings.Overwrite,
			"workers":   st.settings.Workers,
			"dry_run":   dryRun,
		},
		Items: items,
		Handler: a.UploadHandler(manifest, app.UploadOptions{
			Tier:      tier,
			Overwrite: st.settings.Overwrite,
			DryRun:    dryRun,
		}),
	})
	report.PrintSummary(cmd.OutOrStdout(), "upload", r)
	return r, nil
}
