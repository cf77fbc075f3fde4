package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("run not found in journal")

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 记录 (写)
// -----------------------------------------------------------------------------

// StartRun 在 batch 开始前插入一条 Run
func (r *Repository) StartRun(ctx context.Context, command, container string, opts any) (*Run, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run options: %w", err)
	}
	run := &Run{
		Command:   command,
		Container: container,
		Options:   datatypes.JSON(optsJSON),
		StartedAt: time.Now(),
	}
	if err := r.db.conn.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// Recorder 实现 dispatch.Observer，先在内存里攒着，FinishRun 时一次性写入
// (SQLite 下多个 worker 同时写会互相锁住)
type Recorder struct {
	repo *Repository
	run  *Run

	mu      sync.Mutex
	records []TransferRecord
}

func (r *Repository) NewRecorder(run *Run) *Recorder {
	return &Recorder{repo: r, run: run}
}

func (rec *Recorder) Observe(res types.Result) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.records = append(rec.records, TransferRecord{
		RunID:      rec.run.ID,
		LocalPath:  res.Item.LocalPath,
		RemoteName: res.Item.RemoteName,
		Outcome:    res.Outcome.String(),
		Detail:     res.Detail,
		ErrorKind:  types.Kind(res.Err),
		Bytes:      res.Bytes,
		Attempts:   res.Attempts,
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	})
}

// Finish 写入所有单项结果并更新 Run 的汇总
func (rec *Recorder) Finish(ctx context.Context, report *dispatch.Report) error {
	rec.mu.Lock()
	records := rec.records
	rec.records = nil
	rec.mu.Unlock()

	now := time.Now()
	run := rec.run
	run.Items = len(report.Results)
	run.Uploaded = report.Count(types.OutcomeUploaded)
	run.Downloaded = report.Count(types.OutcomeDownloaded)
	run.TierChanged = report.Count(types.OutcomeTierChanged)
	run.NoOp = report.Count(types.OutcomeNoOp)
	run.Failed = report.Count(types.OutcomeFailed)
	run.Requeued = report.Requeued()
	run.Bytes = report.Bytes()
	run.FinishedAt = &now

	return rec.repo.db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 200).Error; err != nil {
				return fmt.Errorf("failed to record transfers: %w", err)
			}
		}
		if err := tx.Save(run).Error; err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// 2. 查询 (bsync history)
// -----------------------------------------------------------------------------

// ListRuns 按时间倒序返回最近的 Run
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := r.db.conn.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *Repository) GetRun(ctx context.Context, id uint) (*Run, error) {
	var run Run
	err := r.db.conn.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FailedTransfers 返回某次 Run 中失败的 item
func (r *Repository) FailedTransfers(ctx context.Context, runID uint) ([]TransferRecord, error) {
	var records []TransferRecord
	err := r.db.conn.WithContext(ctx).
		Where("run_id = ? AND outcome = ?", runID, types.OutcomeFailed.String()).
		Order("id").
		Find(&records).Error
	return records, err
}
