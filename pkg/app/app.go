// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"blobsync/pkg/checksum"
	"blobsync/pkg/config"
	"blobsync/pkg/journal"
	"blobsync/pkg/logging"
	"blobsync/pkg/storage"
	"blobsync/pkg/storage/azure"
	"blobsync/pkg/storage/disk"
	"blobsync/pkg/storage/s3"
	"blobsync/pkg/syncer"
	"blobsync/pkg/transfer"
	"blobsync/pkg/types"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 每次 CLI 调用创建一个，生命周期和这次调用相同
type App struct {
	Settings *config.Settings
	Logger   *slog.Logger

	Store    storage.Store
	Engine   *syncer.Engine
	Executor *transfer.Executor

	// Journal 为 nil 表示 journal.driver=none
	Journal *journal.Repository

	sums      *lazySums
	journalDB *journal.DB
}

// NewApp 是工厂函数，按配置组装所有组件
// logOut 是日志输出 (CLI 里是 stderr)
func NewApp(ctx context.Context, s *config.Settings, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, s.Log.Level, s.Log.Format)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, s, logger)
}

func newApp(ctx context.Context, s *config.Settings, logger *slog.Logger) (*App, error) {
	if s.Container == "" {
		return nil, fmt.Errorf("container not set (use --container or BSYNC_CONTAINER)")
	}

	// 1. 初始化存储层
	store, err := initStore(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 2. checksum 缓存只在第一次需要时才打开 (list/rehydrate 用不到)
	sums := &lazySums{open: func() (*checksum.Cache, error) {
		ledger, err := initLedger(s)
		if err != nil {
			return nil, err
		}
		return checksum.NewCache(ctx, ledger, logger)
	}}

	a := &App{
		Settings: s,
		Logger:   logger,
		Store:    store,
		Engine:   syncer.NewEngine(store, sums, logger),
		Executor: transfer.NewExecutor(store, sums, transfer.Config{
			UploadAttempts:   s.Retry.UploadAttempts,
			UploadDelay:      s.Retry.UploadDelay,
			DownloadAttempts: s.Retry.DownloadAttempts,
		}, logger),
		sums: sums,
	}

	// 3. 可选的 journal
	if s.Journal.Driver != "" && s.Journal.Driver != "none" {
		db, err := journal.Open(ctx, journal.Config{Driver: s.Journal.Driver, DSN: s.Journal.DSN})
		if err != nil {
			return nil, err
		}
		a.journalDB = db
		a.Journal = journal.NewRepository(db)
	}
	return a, nil
}

// initStore 根据 store.type 选择后端
func initStore(ctx context.Context, s *config.Settings) (storage.Store, error) {
	switch s.Store.Type {
	case "azure":
		return azure.NewAdapter(azure.Config{
			AccountURL: s.Azure.URL,
			Key:        s.Azure.Key,
			Container:  s.Container,
		})
	case "s3":
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        s.S3.Endpoint,
			Region:          s.S3.Region,
			Bucket:          s.Container,
			AccessKeyID:     s.S3.AccessKey,
			SecretAccessKey: s.S3.SecretKey,
		})
	case "disk":
		return disk.NewAdapter(disk.Config{
			Root:           s.Store.Path,
			Container:      s.Container,
			RehydrateDelay: s.Store.RehydrateDelay,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", s.Store.Type)
	}
}

// initLedger 根据 checksum.ledger 选择 checksum 的持久化方式
func initLedger(s *config.Settings) (checksum.Ledger, error) {
	switch s.Checksum.Ledger {
	case "", "file":
		return checksum.OpenFileLedger(s.MD5CacheFile)
	case "redis":
		return checksum.NewRedisLedger(checksum.RedisConfig{
			RedisURL: s.Redis.URL,
			Prefix:   s.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported checksum ledger: %q", s.Checksum.Ledger)
	}
}

// Close 释放 checksum ledger 和 journal 连接
func (a *App) Close() error {
	var errs []error
	if a.sums != nil {
		errs = append(errs, a.sums.close())
	}
	if a.journalDB != nil {
		errs = append(errs, a.journalDB.Close())
	}
	return errors.Join(errs...)
}

// lazySums 第一次调用 Sum 时才打开 checksum 缓存
type lazySums struct {
	open func() (*checksum.Cache, error)

	once  sync.Once
	cache *checksum.Cache
	err   error
}

func (l *lazySums) get() (*checksum.Cache, error) {
	l.once.Do(func() {
		l.cache, l.err = l.open()
	})
	return l.cache, l.err
}

func (l *lazySums) Sum(ctx context.Context, path string) (types.Checksum, error) {
	c, err := l.get()
	if err != nil {
		return "", err
	}
	return c.Sum(ctx, path)
}

func (l *lazySums) close() error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Close()
}
