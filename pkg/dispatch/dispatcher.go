// Package dispatch 把一批 WorkItem 分发给 N 个并发 worker
//
// 单个 item 的失败 (包括 panic) 不会中断其它 item，也不会让 worker 退出。
// 暂时性错误会重新入队，次数有上限。Run 阻塞到所有 item 都进入终态。
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"blobsync/pkg/types"

	"golang.org/x/sync/errgroup"
)

// Handler 处理单个 item，失败用 OutcomeFailed + Err 表示
type Handler func(ctx context.Context, item types.WorkItem) types.Result

// Observer 接收每个进入终态的结果 (metrics、journal)
// 会被多个 worker 并发调用
type Observer interface {
	Observe(res types.Result)
}

type Config struct {
	Workers int // 至少 1
	// MaxRequeues 单个 item 最多重新入队的次数，0 表示不重新入队
	MaxRequeues int
	// Requeue 判断失败是否值得重新入队，nil 时只有暂时性错误重新入队
	Requeue func(types.Result) bool
}

func DefaultConfig() Config {
	return Config{Workers: 1, MaxRequeues: 2}
}

type Dispatcher struct {
	cfg       Config
	logger    *slog.Logger
	observers []Observer
}

func New(cfg Config, logger *slog.Logger, observers ...Observer) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRequeues < 0 {
		cfg.MaxRequeues = 0
	}
	if cfg.Requeue == nil {
		cfg.Requeue = transientOnly
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{cfg: cfg, logger: logger, observers: observers}
}

func transientOnly(res types.Result) bool {
	return errors.Is(res.Err, types.ErrTransient) || errors.Is(res.Err, ErrPanic)
}

// job 是队列里的一项
type job struct {
	idx     int
	item    types.WorkItem
	attempt int
}

// Run 处理整批 item，返回时所有 item 都已经有终态结果
// Results 与 items 一一对应 (同样的下标)
func (d *Dispatcher) Run(ctx context.Context, items []types.WorkItem, h Handler) *Report {
	report := newReport(len(items))
	if len(items) == 0 {
		report.finish()
		return report
	}

	// 每个 item 任意时刻最多占一个位置，所以重新入队永远不会阻塞
	queue := make(chan job, len(items))
	for i, item := range items {
		queue <- job{idx: i, item: item, attempt: 1}
	}

	var pending atomic.Int64
	pending.Store(int64(len(items)))

	workers := min(d.cfg.Workers, len(items))
	d.logger.Info("batch started", "items", len(items), "workers", workers, "max_requeues", d.cfg.MaxRequeues)

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			log := d.logger.With("worker", w)
			for j := range queue {
				res := d.process(ctx, log, h, j)

				if res.Failed() && j.attempt <= d.cfg.MaxRequeues && ctx.Err() == nil && d.cfg.Requeue(res) {
					log.Warn("requeueing item", "item", j.item.LocalPath, "blob", j.item.RemoteName,
						"attempt", j.attempt, "kind", types.Kind(res.Err), "err", res.Err)
					report.requeued.Add(1)
					queue <- job{idx: j.idx, item: j.item, attempt: j.attempt + 1}
					continue
				}

				report.Results[j.idx] = res
				for _, o := range d.observers {
					o.Observe(res)
				}
				if pending.Add(-1) == 0 {
					close(queue)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	report.finish()
	d.logger.Info("batch finished", report.LogAttrs()...)
	return report
}

func (d *Dispatcher) process(ctx context.Context, log *slog.Logger, h Handler, j job) types.Result {
	start := time.Now()

	var res types.Result
	if err := ctx.Err(); err != nil {
		// 已经取消：剩下的 item 直接记为失败，不再调用 handler
		res = types.Result{Outcome: types.OutcomeFailed, Detail: err.Error(), Err: err}
	} else {
		res = safeHandle(ctx, log, h, j.item)
	}

	res.Item = j.item
	res.Attempts = j.attempt
	res.Duration = time.Since(start)
	logResult(log, res, res.Duration)
	return res
}
