package app

import (
	"context"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/resolver"
	"blobsync/pkg/storage"
	"blobsync/pkg/syncer"
	"blobsync/pkg/types"
)

// UploadOptions 控制上传批次
type UploadOptions struct {
	Tier      types.Tier
	Overwrite bool
	DryRun    bool
}

// UploadHandler 对每个文件做 plan + execute
// manifest 是 batch 开始时的快照，决定是否需要比较 checksum
func (a *App) UploadHandler(manifest storage.Manifest, opts UploadOptions) dispatch.Handler {
	return func(ctx context.Context, item types.WorkItem) types.Result {
		d, err := a.Engine.PlanUpload(ctx, item, opts.Tier, syncer.Options{
			Update:    manifest.Has(item.RemoteName),
			Overwrite: opts.Overwrite,
		})
		if err != nil {
			return failedResult(item, err)
		}
		return a.execute(ctx, d, opts.DryRun)
	}
}

// DownloadHandler 把对象下载到 dest 下对应的本地路径
// 对象名无法映射到 dest 之内时只让这一项失败
func (a *App) DownloadHandler(dest string, overwrite, dryRun bool) dispatch.Handler {
	return func(ctx context.Context, item types.WorkItem) types.Result {
		local, err := resolver.LocalPath(dest, item.RemoteName)
		if err != nil {
			return failedResult(item, err)
		}
		item.LocalPath = local

		d, err := a.Engine.PlanDownload(ctx, item, overwrite)
		if err != nil {
			return failedResult(item, err)
		}
		return a.execute(ctx, d, dryRun)
	}
}

// TierHandler 修改对象层级 (rehydrate)，item 只需要 RemoteName
func (a *App) TierHandler(target types.Tier, priority types.Priority, dryRun bool) dispatch.Handler {
	return func(ctx context.Context, item types.WorkItem) types.Result {
		d, err := a.Engine.PlanTier(ctx, item.RemoteName, target, priority)
		if err != nil {
			return failedResult(item, err)
		}
		return a.execute(ctx, d, dryRun)
	}
}

func (a *App) execute(ctx context.Context, d syncer.Decision, dryRun bool) types.Result {
	if dryRun && d.Action != syncer.ActionNoOp {
		return types.Result{Item: d.Item, Outcome: types.OutcomeNoOp, Detail: "dry-run: " + d.String()}
	}
	return a.Executor.Execute(ctx, d)
}

func failedResult(item types.WorkItem, err error) types.Result {
	return types.Result{Item: item, Outcome: types.OutcomeFailed, Detail: err.Error(), Err: err}
}
