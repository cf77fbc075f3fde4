// pkg/types/common.go
package types

import (
	"fmt"
	"strings"
)

// Checksum 是文件内容的 MD5 (Hex String)
// 只用于变更检测和完整性校验，不是安全边界。
type Checksum string

// EmptyChecksum 是 0 字节文件的 MD5
const EmptyChecksum Checksum = "d41d8cd98f00b204e9800998ecf8427e"

func (c Checksum) String() string { return string(c) }

func (c Checksum) IsZero() bool  { return c == "" }
func (c Checksum) IsValid() bool { return len(c) == 32 } // 简单的长度检查

// Short 返回前 8 位，用于日志
func (c Checksum) Short() string {
	if len(c) < 8 {
		return string(c)
	}
	return string(c[:8])
}

// Tier 是远端对象的存储层级
type Tier string

const (
	TierHot     Tier = "Hot"
	TierCool    Tier = "Cool"
	TierArchive Tier = "Archive"
)

func (t Tier) String() string { return string(t) }

// Downloadable 只有 Hot/Cool 可以直接读取，Archive 需要先 rehydrate
func (t Tier) Downloadable() bool {
	return t == TierHot || t == TierCool
}

// ParseTier 大小写不敏感地解析层级名称
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hot":
		return TierHot, nil
	case "cool":
		return TierCool, nil
	case "archive":
		return TierArchive, nil
	default:
		return "", fmt.Errorf("unknown tier %q (want Hot, Cool or Archive)", s)
	}
}

// PendingStatus 返回 "正在 rehydrate 到 t" 时远端上报的 archive status
// 例如: rehydrate-pending-to-cool
func PendingStatus(t Tier) string {
	return "rehydrate-pending-to-" + strings.ToLower(string(t))
}

// Priority 是 rehydrate 的优先级
type Priority string

const (
	PriorityStandard Priority = "Standard"
	PriorityHigh     Priority = "High"
)

func (p Priority) String() string { return string(p) }

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return PriorityStandard, nil
	case "high":
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown rehydrate priority %q (want Standard or High)", s)
	}
}
