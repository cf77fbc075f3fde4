package commands

import (
	"errors"
	"fmt"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/types"
)

// 退出码
const (
	ExitOK             = 0
	ExitNotFound       = 1 // 对象/文件不存在，或容器不存在
	ExitNotPermitted   = 2 // 当前状态下不允许 (比如归档层级不能下载)
	ExitBatchHadFailed = 3 // batch 跑完了，但有 item 失败
)

// ExitError 携带进程退出码
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode 把命令返回的错误映射成退出码
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, types.ErrNotDownloadable):
		return ExitNotPermitted
	default:
		// not found、容器不存在以及其它错误都是 1
		return ExitNotFound
	}
}

// batchError 有失败的 item 时返回 exit 3
func batchError(report *dispatch.Report) error {
	if !report.HasFailures() {
		return nil
	}
	n := report.Count(types.OutcomeFailed)
	return &ExitError{Code: ExitBatchHadFailed, Err: fmt.Errorf("%d of %d item(s) failed", n, len(report.Results))}
}

// singleError 单个对象的命令按错误类型决定退出码
func singleError(report *dispatch.Report) error {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	err := failed[0].Err
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrContainerMissing):
		return &ExitError{Code: ExitNotFound, Err: err}
	case errors.Is(err, types.ErrNotDownloadable):
		return &ExitError{Code: ExitNotPermitted, Err: err}
	default:
		return &ExitError{Code: ExitBatchHadFailed, Err: err}
	}
}
