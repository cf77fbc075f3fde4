package types

import (
	"fmt"
	"time"
)

// WorkItem 是一次传输任务：本地路径 <-> 远端对象名
// 由 resolver 创建，worker 消费一次 (或因暂时性错误重新入队)
type WorkItem struct {
	LocalPath  string
	RemoteName string
}

func (w WorkItem) String() string {
	return fmt.Sprintf("%s -> %s", w.LocalPath, w.RemoteName)
}

// Outcome 是单个 WorkItem 的最终结果
type Outcome int

const (
	OutcomeNoOp Outcome = iota
	OutcomeUploaded
	OutcomeDownloaded
	OutcomeTierChanged
	OutcomeFailed
)

var outcomeNames = [...]string{"no-op", "uploaded", "downloaded", "tier-changed", "failed"}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result 只用于日志、统计和重新入队判断
type Result struct {
	Item    WorkItem
	Outcome Outcome
	Detail  string
	Bytes   int64
	Err     error

	// 由 dispatcher 填写
	Attempts int
	Duration time.Duration
}

func (r Result) Failed() bool { return r.Outcome == OutcomeFailed }
