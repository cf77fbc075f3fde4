package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blobsync/pkg/storage"
	"blobsync/pkg/types"
)

// Checksummer 是 checksum.Cache 的最小接口
type Checksummer interface {
	Sum(ctx context.Context, path string) (types.Checksum, error)
}

// Engine 拉取决策需要的新鲜状态，然后调用纯函数做决定
type Engine struct {
	store  storage.Store
	sums   Checksummer
	logger *slog.Logger
}

func NewEngine(store storage.Store, sums Checksummer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, sums: sums, logger: logger}
}

// PlanUpload 决定本地文件是否需要上传
// opts.Update 通常由调用方按 manifest 是否包含该对象名设置
func (e *Engine) PlanUpload(ctx context.Context, item types.WorkItem, tier types.Tier, opts Options) (Decision, error) {
	d := Decision{Item: item, Tier: tier}

	localSum, err := e.sums.Sum(ctx, item.LocalPath)
	if err != nil {
		return d, fmt.Errorf("checksum %s: %w", item.LocalPath, err)
	}
	d.LocalSum = localSum

	var remote *storage.BlobRecord
	if opts.Update {
		// manifest 是 batch 开始时的快照，这里重新读一次
		remote, err = e.store.Stat(ctx, item.RemoteName)
		if errors.Is(err, storage.ErrNotFound) {
			remote, err = nil, nil
		}
		if err != nil {
			return d, err
		}
	}
	d.Remote = remote
	d.Action, d.Reason, d.WouldOverwrite = decideUpload(localSum, remote, opts)

	attrs := []any{"item", item.LocalPath, "blob", item.RemoteName, "decision", d.Action, "reason", d.Reason, "local_md5", localSum}
	if remote != nil {
		attrs = append(attrs, "remote_md5", remote.Checksum)
	}
	if d.WouldOverwrite {
		e.logger.Info("checksum mismatch, overwrite disabled", attrs...)
	} else {
		e.logger.Debug("upload decided", attrs...)
	}
	return d, nil
}

// PlanDownload 检查远端对象是否可以下载
func (e *Engine) PlanDownload(ctx context.Context, item types.WorkItem, overwrite bool) (Decision, error) {
	d := Decision{Item: item, Overwrite: overwrite}

	remote, err := e.store.Stat(ctx, item.RemoteName)
	if err != nil {
		return d, err
	}
	d.Remote = remote
	d.Tier = remote.Tier

	d.Action, d.Reason, err = decideDownload(remote)
	if err != nil {
		return d, err
	}
	e.logger.Debug("download decided", "blob", item.RemoteName, "dest", item.LocalPath, "tier", remote.Tier)
	return d, nil
}

// PlanTier 决定是否需要修改层级 (rehydrate)
func (e *Engine) PlanTier(ctx context.Context, name string, target types.Tier, priority types.Priority) (Decision, error) {
	d := Decision{Item: types.WorkItem{RemoteName: name}, Tier: target, Priority: priority}

	remote, err := e.store.Stat(ctx, name)
	if err != nil {
		return d, err
	}
	d.Remote = remote
	d.Action, d.Reason = decideTier(remote, target)

	e.logger.Debug("tier decided", "blob", name, "tier", remote.Tier, "archive_status", remote.ArchiveStatus,
		"target", target, "decision", d.Action)
	return d, nil
}
