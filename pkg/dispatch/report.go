package dispatch

import (
	"sync/atomic"
	"time"

	"blobsync/pkg/types"
)

// Report 是一批任务的汇总
type Report struct {
	Results  []types.Result
	Started  time.Time
	Duration time.Duration

	counts   map[types.Outcome]int
	requeued atomic.Int64
}

func newReport(n int) *Report {
	return &Report{
		Results: make([]types.Result, n),
		Started: time.Now(),
		counts:  make(map[types.Outcome]int),
	}
}

func (r *Report) finish() {
	r.Duration = time.Since(r.Started)
	for _, res := range r.Results {
		r.counts[res.Outcome]++
	}
}

// Count 返回某种结果的数量
func (r *Report) Count(o types.Outcome) int { return r.counts[o] }

// Requeued 返回重新入队的总次数
func (r *Report) Requeued() int { return int(r.requeued.Load()) }

// Failed 返回所有失败的结果
func (r *Report) Failed() []types.Result {
	var failed []types.Result
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r *Report) HasFailures() bool { return r.Count(types.OutcomeFailed) > 0 }

// Bytes 返回成功传输的总字节数
func (r *Report) Bytes() int64 {
	var total int64
	for _, res := range r.Results {
		if !res.Failed() {
			total += res.Bytes
		}
	}
	return total
}

// LogAttrs 返回用于 slog 的汇总字段
func (r *Report) LogAttrs() []any {
	return []any{
		"items", len(r.Results),
		"uploaded", r.Count(types.OutcomeUploaded),
		"downloaded", r.Count(types.OutcomeDownloaded),
		"tier_changed", r.Count(types.OutcomeTierChanged),
		"noop", r.Count(types.OutcomeNoOp),
		"failed", r.Count(types.OutcomeFailed),
		"requeued", r.Requeued(),
		"bytes", r.Bytes(),
		"dur", r.Duration,
	}
}
