package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"blobsync/pkg/types"
)

// ErrPanic 是 handler panic 之后返回的错误
var ErrPanic = errors.New("panic recovered")

// safeHandle 在单个 item 的边界上捕获 panic，worker 不会因此退出
func safeHandle(ctx context.Context, logger *slog.Logger, h Handler, item types.WorkItem) (res types.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = recoverFromPanic(logger, item, r)
		}
	}()
	return h(ctx, item)
}

func recoverFromPanic(logger *slog.Logger, item types.WorkItem, p any) types.Result {
	// 打印堆栈信息，方便调试
	logger.Error("🔥 PANIC RECOVERED",
		slog.String("item", item.LocalPath),
		slog.String("blob", item.RemoteName),
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)
	err := fmt.Errorf("%w: %v", ErrPanic, p)
	return types.Result{Item: item, Outcome: types.OutcomeFailed, Detail: err.Error(), Err: err}
}

// logResult 统一的单项日志
func logResult(logger *slog.Logger, res types.Result, duration time.Duration) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("item", res.Item.LocalPath),
		slog.String("blob", res.Item.RemoteName),
		slog.String("outcome", res.Outcome.String()),
		slog.String("detail", res.Detail),
		slog.Int("attempts", res.Attempts),
		slog.Duration("dur", duration),
	}
	switch res.Outcome {
	case types.OutcomeFailed:
		level = slog.LevelError
		attrs = append(attrs, slog.String("kind", types.Kind(res.Err)), slog.String("err", errToString(res.Err)))
	case types.OutcomeUploaded, types.OutcomeDownloaded, types.OutcomeTierChanged:
		level = slog.LevelInfo
		attrs = append(attrs, slog.Int64("bytes", res.Bytes))
	}
	logger.LogAttrs(context.Background(), level, "item finished", attrs...)
}

func errToString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
