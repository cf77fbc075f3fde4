package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"blobsync/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []types.WorkItem {
	items := make([]types.WorkItem, n)
	for i := range items {
		items[i] = types.WorkItem{
			LocalPath:  fmt.Sprintf("/data/file-%d", i+1),
			RemoteName: fmt.Sprintf("file-%d", i+1),
		}
	}
	return items
}

// recorder 是一个并发安全的 Observer
type recorder struct {
	mu      sync.Mutex
	results []types.Result
}

func (r *recorder) Observe(res types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	items := makeItems(10)
	var calls sync.Map // blob -> *atomic.Int32

	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		v, _ := calls.LoadOrStore(item.RemoteName, new(atomic.Int32))
		v.(*atomic.Int32).Add(1)
		if item.RemoteName == "file-5" {
			err := fmt.Errorf("simulated outage: %w", types.ErrTransient)
			return types.Result{Outcome: types.OutcomeFailed, Err: err}
		}
		return types.Result{Outcome: types.OutcomeUploaded, Bytes: 10}
	}

	rec := &recorder{}
	d := New(Config{Workers: 4, MaxRequeues: 2}, nil, rec)
	report := d.Run(context.Background(), items, handler)

	require.Len(t, report.Results, 10)
	for i, res := range report.Results {
		assert.Equal(t, items[i], res.Item, "结果和输入一一对应")
		if i == 4 {
			assert.Equal(t, types.OutcomeFailed, res.Outcome)
			assert.ErrorIs(t, res.Err, types.ErrTransient)
			assert.Equal(t, 3, res.Attempts)
			continue
		}
		assert.Equal(t, types.OutcomeUploaded, res.Outcome, "item %d", i+1)
		assert.Equal(t, 1, res.Attempts)
	}

	v, _ := calls.Load("file-5")
	assert.Equal(t, int32(3), v.(*atomic.Int32).Load(), "重新入队有上限: 1 + 2 次")

	assert.Equal(t, 9, report.Count(types.OutcomeUploaded))
	assert.Equal(t, 1, report.Count(types.OutcomeFailed))
	assert.Equal(t, 2, report.Requeued())
	assert.Equal(t, int64(90), report.Bytes())
	assert.True(t, report.HasFailures())
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "file-5", report.Failed()[0].Item.RemoteName)

	// 每个 item 只有终态结果才会通知 observer
	assert.Len(t, rec.results, 10)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	items := makeItems(10)
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		if item.RemoteName == "file-5" {
			panic("boom")
		}
		return types.Result{Outcome: types.OutcomeNoOp}
	}

	report := New(Config{Workers: 4, MaxRequeues: 0}, nil).Run(context.Background(), items, handler)

	assert.Equal(t, 9, report.Count(types.OutcomeNoOp))
	require.Equal(t, 1, report.Count(types.OutcomeFailed))
	assert.ErrorIs(t, report.Results[4].Err, ErrPanic)
	assert.Contains(t, report.Results[4].Detail, "boom")
}

func TestDispatcher_RequeueThenSucceed(t *testing.T) {
	var attempts atomic.Int32
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		if attempts.Add(1) == 1 {
			return types.Result{Outcome: types.OutcomeFailed, Err: types.ErrTransient}
		}
		return types.Result{Outcome: types.OutcomeDownloaded}
	}

	report := New(DefaultConfig(), nil).Run(context.Background(), makeItems(1), handler)
	assert.Equal(t, types.OutcomeDownloaded, report.Results[0].Outcome)
	assert.Equal(t, 2, report.Results[0].Attempts)
	assert.Equal(t, 1, report.Requeued())
}

func TestDispatcher_TerminalErrorsNotRequeued(t *testing.T) {
	var calls atomic.Int32
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		calls.Add(1)
		return types.Result{Outcome: types.OutcomeFailed, Err: fmt.Errorf("gone: %w", types.ErrNotFound)}
	}

	report := New(Config{Workers: 2, MaxRequeues: 5}, nil).Run(context.Background(), makeItems(3), handler)
	assert.Equal(t, 3, report.Count(types.OutcomeFailed))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, report.Requeued())
}

func TestDispatcher_CustomRequeue(t *testing.T) {
	errRetry := errors.New("retry me")
	var calls atomic.Int32
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		calls.Add(1)
		return types.Result{Outcome: types.OutcomeFailed, Err: errRetry}
	}
	cfg := Config{
		Workers:     1,
		MaxRequeues: 1,
		Requeue:     func(res types.Result) bool { return errors.Is(res.Err, errRetry) },
	}

	New(cfg, nil).Run(context.Background(), makeItems(1), handler)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcher_Empty(t *testing.T) {
	report := New(Config{Workers: 4}, nil).Run(context.Background(), nil, nil)
	assert.Empty(t, report.Results)
	assert.False(t, report.HasFailures())
}

func TestDispatcher_Sequential(t *testing.T) {
	// Workers=1 时严格按提交顺序处理
	var order []string
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		order = append(order, item.RemoteName)
		return types.Result{Outcome: types.OutcomeNoOp}
	}
	New(Config{Workers: 0}, nil).Run(context.Background(), makeItems(5), handler)
	assert.Equal(t, []string{"file-1", "file-2", "file-3", "file-4", "file-5"}, order)
}

func TestDispatcher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		calls.Add(1)
		return types.Result{Outcome: types.OutcomeNoOp}
	}
	report := New(Config{Workers: 2, MaxRequeues: 2}, nil).Run(ctx, makeItems(4), handler)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 4, report.Count(types.OutcomeFailed))
	assert.ErrorIs(t, report.Results[0].Err, context.Canceled)
}
