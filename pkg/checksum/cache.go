package checksum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"blobsync/pkg/types"
)

// Cache 计算并记住每个本地文件的 MD5
//
// 内存里的 map 只由 Cache 自己修改；新算出来的值立即追加到 Ledger。
// 可以被多个 worker 并发调用。
type Cache struct {
	ledger Ledger
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache 从 ledger 读出全部已有记录
func NewCache(ctx context.Context, ledger Ledger, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loaded, err := ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load md5 cache: %w", err)
	}

	entries := make(map[string]Entry, len(loaded))
	for _, e := range loaded {
		entries[e.Path] = e // 追加式账本，后写的覆盖先写的
	}
	logger.Debug("md5 cache loaded", "entries", len(entries))

	return &Cache{ledger: ledger, logger: logger, entries: entries}, nil
}

// Sum 返回文件的 MD5
// 只有文件不可读时才会失败
func (c *Cache) Sum(ctx context.Context, path string) (types.Checksum, error) {
	key := filepath.Clean(path)
	fi, err := os.Stat(key)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.FreshFor(fi) {
		c.logger.Debug("md5 cache hit", "path", key, "md5", e.Sum)
		return e.Sum, nil
	}

	sum, err := File(key)
	if err != nil {
		return "", err
	}
	c.logger.Debug("md5 calculated", "path", key, "md5", sum, "stale", ok)

	fresh := Entry{Path: key, Sum: sum, ModTime: fi.ModTime(), Size: fi.Size()}
	c.mu.Lock()
	c.entries[key] = fresh
	c.mu.Unlock()

	// 持久化失败不影响本次结果，只是下次要重算
	if err := c.ledger.Append(ctx, fresh); err != nil {
		c.logger.Warn("failed to persist md5", "path", key, "err", err)
	}
	return sum, nil
}

// Len 返回内存里记录的数量
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Close() error { return c.ledger.Close() }
