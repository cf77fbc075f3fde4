package types

import (
	"errors"
	"fmt"
)

// 错误分类 (taxonomy)
// 所有后端都必须用 %w 包装成下面的哨兵错误，调用方统一用 errors.Is 判断
var (
	ErrNotFound          = errors.New("not found")
	ErrTransient         = errors.New("transient i/o error")
	ErrAlreadyInProgress = errors.New("tier change already in progress")
	ErrPermission        = errors.New("permission denied")
	ErrContainerMissing  = errors.New("container does not exist")
	ErrIntegrityMismatch = errors.New("checksum mismatch")
	ErrNotDownloadable   = errors.New("blob tier is not downloadable")
)

// IntegrityError 下载后校验失败，带上两边的 checksum
type IntegrityError struct {
	Name     string
	Expected Checksum
	Actual   Checksum
	Attempts int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch after %d attempt(s): remote %s, local %s",
		e.Name, e.Attempts, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityMismatch }

// Kind 把错误映射成一个稳定的短名称，用于日志字段、journal 和 metrics label
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrIntegrityMismatch):
		return "integrity"
	case errors.Is(err, ErrAlreadyInProgress):
		return "in_progress"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrContainerMissing):
		return "container_missing"
	case errors.Is(err, ErrNotDownloadable):
		return "not_downloadable"
	default:
		return "internal"
	}
}

// Retriable 只有暂时性错误和完整性错误值得再试一次
func Retriable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrIntegrityMismatch)
}
