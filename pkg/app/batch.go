package app

import (
	"context"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/journal"
	"blobsync/pkg/metrics"
	"blobsync/pkg/types"
)

// Batch 描述一次批量操作
type Batch struct {
	Command string
	Options any // 写入 journal 的选项快照
	Items   []types.WorkItem
	Handler dispatch.Handler
}

// RunBatch 分发整批任务，同时挂上 metrics 和 journal
// 单个 item 的失败体现在 Report 里，不会让整批失败
func (a *App) RunBatch(ctx context.Context, b Batch) *dispatch.Report {
	stats := metrics.NewBatch(b.Command)
	observers := []dispatch.Observer{stats}

	var rec *journal.Recorder
	if a.Journal != nil {
		run, err := a.Journal.StartRun(ctx, b.Command, a.Store.Container(), b.Options)
		if err != nil {
			a.Logger.Warn("journal unavailable, run will not be recorded", "err", err)
		} else {
			rec = a.Journal.NewRecorder(run)
			observers = append(observers, rec)
		}
	}

	log := a.Logger.With("command", b.Command, "container", a.Store.Container())
	d := dispatch.New(dispatch.Config{
		Workers:     a.Settings.Workers,
		MaxRequeues: a.Settings.Retry.Requeues,
	}, log, observers...)

	report := d.Run(ctx, b.Items, b.Handler)
	stats.Finish(report)

	// 即使 ctx 已经取消，也要把结果写完
	finishCtx := context.WithoutCancel(ctx)
	if rec != nil {
		if err := rec.Finish(finishCtx, report); err != nil {
			log.Warn("failed to record run in journal", "err", err)
		}
	}
	if path := a.Settings.Metrics.Textfile; path != "" {
		if err := stats.WriteTextfile(path); err != nil {
			log.Warn("failed to write metrics", "path", path, "err", err)
		}
	}
	return report
}
