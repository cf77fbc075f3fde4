// Package syncer 决定一个 (本地文件, 远端对象) 对需要做什么
//
// decide* 系列函数都是纯函数，不做任何 I/O；Engine 负责拉取新鲜的远端状态
// 和本地 checksum，然后调用它们。
package syncer

import (
	"fmt"

	"blobsync/pkg/storage"
	"blobsync/pkg/types"
)

// Action 是决策结果的种类
type Action int

const (
	ActionNoOp Action = iota
	ActionUploadNew
	ActionUploadOverwrite
	ActionDownload
	ActionRehydrate
)

var actionNames = [...]string{"no-op", "upload-new", "upload-overwrite", "download", "rehydrate"}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// 日志里使用的原因描述
const (
	ReasonAbsent        = "not found in container"
	ReasonExists        = "already in container"
	ReasonMatch         = "MD5Sums Match"
	ReasonMismatch      = "MD5Sum Mismatch"
	ReasonNoOverwrite   = "MD5Sum Mismatch - set not to overwrite"
	ReasonDownloadable  = "tier is downloadable"
	ReasonAtTier        = "already at target tier"
	ReasonPending       = "rehydrate to target already pending"
	ReasonTierChangeReq = "tier change requested"
)

// Options 控制上传决策
type Options struct {
	// Update 表示对象名已经在 manifest 里，需要比较 checksum
	Update bool
	// Overwrite 允许覆盖已有的对象 (上传) 或本地文件 (下载)
	Overwrite bool
}

// Decision 是 Engine 交给 transfer.Executor 执行的完整指令
type Decision struct {
	Action Action
	Item   types.WorkItem
	Reason string

	LocalSum types.Checksum      // 上传时本地文件的 MD5
	Remote   *storage.BlobRecord // 决策时的远端快照，远端不存在时为 nil

	Tier     types.Tier // 上传的层级，或 rehydrate 的目标层级
	Priority types.Priority

	// Overwrite 下载时允许覆盖本地文件
	Overwrite bool
	// WouldOverwrite 表示 checksum 不一致，但因为不允许覆盖而跳过
	WouldOverwrite bool
}

func (d Decision) String() string {
	return fmt.Sprintf("%s (%s)", d.Action, d.Reason)
}

// decideUpload 按顺序应用上传规则:
//  1. 远端不存在 -> UploadNew
//  2. 远端存在，update=false -> NoOp
//  3. update=true: checksum 相同 -> NoOp；不同且允许覆盖 -> UploadOverwrite；否则 NoOp 并标记
//
// 远端 metadata 没有 md5 时是空串，不会等于任何真实的 checksum
func decideUpload(localSum types.Checksum, remote *storage.BlobRecord, opts Options) (action Action, reason string, wouldOverwrite bool) {
	if remote == nil {
		return ActionUploadNew, ReasonAbsent, false
	}
	if !opts.Update {
		return ActionNoOp, ReasonExists, false
	}
	if !remote.Checksum.IsZero() && remote.Checksum == localSum {
		return ActionNoOp, ReasonMatch, false
	}
	if opts.Overwrite {
		return ActionUploadOverwrite, ReasonMismatch, false
	}
	return ActionNoOp, ReasonNoOverwrite, true
}

// decideDownload 只有 Hot/Cool 可以下载
func decideDownload(remote *storage.BlobRecord) (Action, string, error) {
	if !remote.Tier.Downloadable() {
		return ActionNoOp, "", fmt.Errorf("%s is in %s tier (archive status %q): %w",
			remote.Name, remote.Tier, remote.ArchiveStatus, types.ErrNotDownloadable)
	}
	return ActionDownload, ReasonDownloadable, nil
}

// decideTier 已经在目标层级，或者已经在 rehydrate 到目标层级，都是 NoOp
func decideTier(remote *storage.BlobRecord, target types.Tier) (Action, string) {
	if remote.Tier == target {
		return ActionNoOp, ReasonAtTier
	}
	if remote.ArchiveStatus == types.PendingStatus(target) {
		return ActionNoOp, ReasonPending
	}
	return ActionRehydrate, ReasonTierChangeReq
}
