// Package metrics 记录一批任务的 Prometheus 指标
//
// CLI 是一次性进程，不暴露 /metrics 端点；batch 结束后把指标写成
// node-exporter textfile collector 能读取的文本文件。
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelCommand = "command"
	LabelOutcome = "outcome"
	LabelKind    = "kind"
)

// Batch 持有一次运行的全部指标，每次运行使用独立的 registry
type Batch struct {
	command  string
	registry *prometheus.Registry

	itemsTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	requeuesTotal *prometheus.CounterVec

	batchDuration *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
}

// NewBatch 创建并注册指标
func NewBatch(command string) *Batch {
	b := &Batch{
		command:  command,
		registry: prometheus.NewRegistry(),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bsync",
				Name:      "items_total",
				Help:      "Work items that reached a terminal outcome",
			},
			[]string{LabelCommand, LabelOutcome},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bsync",
				Name:      "errors_total",
				Help:      "Failed work items by error kind",
			},
			[]string{LabelCommand, LabelKind},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bsync",
				Name:      "transferred_bytes_total",
				Help:      "Bytes uploaded or downloaded",
			},
			[]string{LabelCommand},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bsync",
				Name:      "item_duration_seconds",
				Help:      "Time spent on a single work item (last attempt)",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10), // 5ms .. ~22min
			},
			[]string{LabelCommand, LabelOutcome},
		),
		requeuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bsync",
				Name:      "requeues_total",
				Help:      "Work items put back on the queue after a transient failure",
			},
			[]string{LabelCommand},
		),
		batchDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bsync",
				Name:      "batch_duration_seconds",
				Help:      "Wall time of the last batch",
			},
			[]string{LabelCommand},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bsync",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last batch finished",
			},
			[]string{LabelCommand},
		),
	}

	b.registry.MustRegister(
		b.itemsTotal,
		b.errorsTotal,
		b.bytesTotal,
		b.itemDuration,
		b.requeuesTotal,
		b.batchDuration,
		b.lastRun,
	)
	return b
}

// Observe 实现 dispatch.Observer
func (b *Batch) Observe(res types.Result) {
	outcome := res.Outcome.String()
	b.itemsTotal.WithLabelValues(b.command, outcome).Inc()
	b.itemDuration.WithLabelValues(b.command, outcome).Observe(res.Duration.Seconds())
	if res.Failed() {
		b.errorsTotal.WithLabelValues(b.command, types.Kind(res.Err)).Inc()
		return
	}
	if res.Bytes > 0 {
		b.bytesTotal.WithLabelValues(b.command).Add(float64(res.Bytes))
	}
}

// Finish 记录整批的汇总
func (b *Batch) Finish(report *dispatch.Report) {
	b.requeuesTotal.WithLabelValues(b.command).Add(float64(report.Requeued()))
	b.batchDuration.WithLabelValues(b.command).Set(report.Duration.Seconds())
	b.lastRun.WithLabelValues(b.command).Set(float64(time.Now().Unix()))
}

// Registry 返回底层 registry (测试和自定义导出用)
func (b *Batch) Registry() *prometheus.Registry { return b.registry }

// WriteTextfile 以 Prometheus 文本格式原子写入 path
func (b *Batch) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, b.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
