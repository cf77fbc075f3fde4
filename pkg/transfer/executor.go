// Package transfer 执行 syncer 做出的决定，并在传输后做完整性校验
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"blobsync/pkg/checksum"
	"blobsync/pkg/retry"
	"blobsync/pkg/storage"
	"blobsync/pkg/syncer"
	"blobsync/pkg/types"
)

// PartSuffix 是下载中的临时文件后缀，校验失败时保留以便检查
const PartSuffix = ".bsync-part"

// Config 控制重试策略
type Config struct {
	UploadAttempts   int           // 上传总次数，默认 2 (失败后再试一次)
	UploadDelay      time.Duration // 上传重试前的固定等待，默认 2s
	DownloadAttempts int           // 下载总次数 (校验失败时整体重下)，默认 3
}

func DefaultConfig() Config {
	return Config{
		UploadAttempts:   2,
		UploadDelay:      2 * time.Second,
		DownloadAttempts: 3,
	}
}

// Executor 把 syncer.Decision 变成对 storage.Store 的调用
type Executor struct {
	store  storage.Store
	sums   syncer.Checksummer
	cfg    Config
	logger *slog.Logger
}

func NewExecutor(store storage.Store, sums syncer.Checksummer, cfg Config, logger *slog.Logger) *Executor {
	def := DefaultConfig()
	if cfg.UploadAttempts < 1 {
		cfg.UploadAttempts = def.UploadAttempts
	}
	if cfg.DownloadAttempts < 1 {
		cfg.DownloadAttempts = def.DownloadAttempts
	}
	if cfg.UploadDelay < 0 {
		cfg.UploadDelay = 0
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{store: store, sums: sums, cfg: cfg, logger: logger}
}

// Execute 执行一个决定
// 所有失败都以 OutcomeFailed + Err 的形式返回，不会返回空结果
func (e *Executor) Execute(ctx context.Context, d syncer.Decision) types.Result {
	switch d.Action {
	case syncer.ActionNoOp:
		return types.Result{Item: d.Item, Outcome: types.OutcomeNoOp, Detail: d.Reason}
	case syncer.ActionUploadNew, syncer.ActionUploadOverwrite:
		return e.upload(ctx, d)
	case syncer.ActionDownload:
		return e.download(ctx, d)
	case syncer.ActionRehydrate:
		return e.setTier(ctx, d)
	default:
		return failed(d.Item, fmt.Errorf("unknown action %s", d.Action))
	}
}

func failed(item types.WorkItem, err error) types.Result {
	return types.Result{Item: item, Outcome: types.OutcomeFailed, Detail: err.Error(), Err: err}
}

// -----------------------------------------------------------------------------
// Upload
// -----------------------------------------------------------------------------

func (e *Executor) upload(ctx context.Context, d syncer.Decision) types.Result {
	item := d.Item
	log := e.logger.With("item", item.LocalPath, "blob", item.RemoteName)

	if d.Action == syncer.ActionUploadOverwrite {
		log.Info("md5 mismatch, replacing remote copy", "local_md5", d.LocalSum, "remote_md5", remoteSum(d.Remote))
		if err := e.store.Delete(ctx, item.RemoteName); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return failed(item, err)
		}
	}

	var size int64
	policy := retry.Policy{
		Attempts:  e.cfg.UploadAttempts,
		Delay:     e.cfg.UploadDelay,
		Retriable: func(err error) bool { return errors.Is(err, storage.ErrTransient) },
		OnRetry: func(attempt int, err error) {
			log.Warn("upload failed, retrying", "attempt", attempt, "delay", e.cfg.UploadDelay, "err", err)
		},
	}
	attempts, err := retry.Do(ctx, policy, func(int) error {
		// 每次重试都重新打开文件，流已经被上一次消费掉了
		f, err := os.Open(item.LocalPath)
		if err != nil {
			return err
		}
		defer f.Close()

		fi, err := f.Stat()
		if err != nil {
			return err
		}
		size = fi.Size()

		return e.store.Put(ctx, item.RemoteName, f, storage.PutOptions{
			Tier:     d.Tier,
			Checksum: d.LocalSum,
			Size:     size,
		})
	})
	if err != nil {
		log.Error("upload failed", "attempts", attempts, "kind", types.Kind(err), "err", err)
		return failed(item, fmt.Errorf("upload %s after %d attempt(s): %w", item.RemoteName, attempts, err))
	}

	log.Info("uploaded", "tier", d.Tier, "md5", d.LocalSum, "bytes", size)
	return types.Result{Item: item, Outcome: types.OutcomeUploaded, Detail: d.Reason, Bytes: size}
}

// -----------------------------------------------------------------------------
// Download
// -----------------------------------------------------------------------------

func (e *Executor) download(ctx context.Context, d syncer.Decision) types.Result {
	item := d.Item
	dest := item.LocalPath
	log := e.logger.With("item", dest, "blob", item.RemoteName)
	expected := remoteSum(d.Remote)

	if _, err := os.Stat(dest); err == nil {
		if !d.Overwrite {
			log.Warn("file already exists and is not set to overwrite", "remote_md5", expected)
			return types.Result{Item: item, Outcome: types.OutcomeNoOp, Detail: "already present"}
		}
		local, err := e.sums.Sum(ctx, dest)
		if err != nil {
			return failed(item, err)
		}
		if !expected.IsZero() && local == expected {
			log.Info("local copy matches remote", "md5", local)
			return types.Result{Item: item, Outcome: types.OutcomeNoOp, Detail: syncer.ReasonMatch}
		}
	} else if !os.IsNotExist(err) {
		return failed(item, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return failed(item, fmt.Errorf("create destination dir: %w", err))
	}

	part := dest + PartSuffix
	var written int64
	policy := retry.Policy{
		Attempts:  e.cfg.DownloadAttempts,
		Retriable: types.Retriable,
		OnRetry: func(attempt int, err error) {
			log.Warn("download failed, retrying", "attempt", attempt, "kind", types.Kind(err), "err", err)
		},
	}
	attempts, err := retry.Do(ctx, policy, func(attempt int) error {
		n, actual, err := e.fetch(ctx, item.RemoteName, part)
		if err != nil {
			return err
		}
		written = n
		if expected.IsZero() {
			log.Warn("remote has no md5 metadata, skipping verification", "local_md5", actual)
			return nil
		}
		if actual != expected {
			return &types.IntegrityError{Name: item.RemoteName, Expected: expected, Actual: actual, Attempts: attempt}
		}
		return nil
	})
	if err != nil {
		// 临时文件留在原地方便检查
		log.Error("download failed", "attempts", attempts, "kind", types.Kind(err), "part", part, "err", err)
		return failed(item, err)
	}

	if err := os.Rename(part, dest); err != nil {
		return failed(item, fmt.Errorf("finalize download: %w", err))
	}
	log.Info("downloaded", "md5", expected, "bytes", written, "attempts", attempts)
	return types.Result{Item: item, Outcome: types.OutcomeDownloaded, Detail: d.Reason, Bytes: written}
}

// fetch 把远端对象流式写入 path，同时计算 MD5
func (e *Executor) fetch(ctx context.Context, name, path string) (int64, types.Checksum, error) {
	rc, err := e.store.Get(ctx, name)
	if err != nil {
		return 0, "", err
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, "", err
	}

	w := &countingWriter{w: f}
	sum, err := checksum.Reader(io.TeeReader(rc, w))
	if err != nil {
		f.Close()
		return w.n, "", fmt.Errorf("%w: stream %s: %w", storage.ErrTransient, name, err)
	}
	if err := f.Close(); err != nil {
		return w.n, "", err
	}
	return w.n, sum, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// -----------------------------------------------------------------------------
// Tier
// -----------------------------------------------------------------------------

// setTier 发出请求后不轮询，远端异步完成
func (e *Executor) setTier(ctx context.Context, d syncer.Decision) types.Result {
	item := d.Item
	log := e.logger.With("blob", item.RemoteName)

	log.Info("setting blob tier", "target", d.Tier, "priority", d.Priority)
	err := e.store.SetTier(ctx, item.RemoteName, d.Tier, d.Priority)
	if errors.Is(err, storage.ErrAlreadyInProgress) {
		log.Info("tier change already in progress, skipping", "err", err)
		return types.Result{Item: item, Outcome: types.OutcomeNoOp, Detail: "tier change already in progress"}
	}
	if err != nil {
		log.Error("set tier failed", "kind", types.Kind(err), "err", err)
		return failed(item, err)
	}

	detail := fmt.Sprintf("requested %s", d.Tier)
	if rec, err := e.store.Stat(ctx, item.RemoteName); err == nil {
		log.Info("blob tier updated", "tier", rec.Tier, "archive_status", rec.ArchiveStatus)
		detail = fmt.Sprintf("tier %s, archive status %q", rec.Tier, rec.ArchiveStatus)
	} else {
		log.Warn("failed to read tier after change", "err", err)
	}
	return types.Result{Item: item, Outcome: types.OutcomeTierChanged, Detail: detail}
}

func remoteSum(r *storage.BlobRecord) types.Checksum {
	if r == nil {
		return ""
	}
	return r.Checksum
}
