package journal

import (
	"time"

	"gorm.io/datatypes"
)

// Run 是一次批量操作 (bsync upload/download/rehydrate)
type Run struct {
	ID        uint   `gorm:"primaryKey"`
	Command   string `gorm:"index;type:varchar(32)"`
	Container string `gorm:"index;type:varchar(255)"`

	// 汇总
	Items       int
	Uploaded    int
	Downloaded  int
	TierChanged int
	NoOp        int
	Failed      int
	Requeued    int
	Bytes       int64

	// Options: 这次运行使用的参数 (workers, tier, overwrite ...)
	Options datatypes.JSON

	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
}

// TransferRecord 是 Run 中单个 item 的终态结果
type TransferRecord struct {
	ID    uint `gorm:"primaryKey"`
	RunID uint `gorm:"index;not null"`

	LocalPath  string `gorm:"type:text"`
	RemoteName string `gorm:"index;type:text"`
	Outcome    string `gorm:"index;type:varchar(16)"`
	Detail     string `gorm:"type:text"`
	ErrorKind  string `gorm:"type:varchar(32)"`

	Bytes      int64
	Attempts   int
	DurationMs int64

	CreatedAt time.Time
}

// TableName 强制指定表名
func (TransferRecord) TableName() string {
	return "transfers"
}
