package checksum

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blobsync/pkg/types"
)

// Entry 是一条已经计算过的 checksum 记录
//
// ModTime/Size 是计算时观察到的文件状态，非零时按精确匹配判断是否新鲜。
// 从旧格式文件读出来的记录没有这两个字段，只能退化为用 Recorded
// (账本文件自身的 mtime) 和文件 mtime 比较。
type Entry struct {
	Path     string
	Sum      types.Checksum
	ModTime  time.Time
	Size     int64
	Recorded time.Time
}

// FreshFor 判断这条记录对当前文件状态是否还能复用
func (e Entry) FreshFor(fi os.FileInfo) bool {
	if !e.ModTime.IsZero() {
		return e.ModTime.Equal(fi.ModTime()) && e.Size == fi.Size()
	}
	return e.Recorded.After(fi.ModTime())
}

// Ledger 是 checksum 的持久化后端，只追加，不修改，不删除
type Ledger interface {
	// Load 读出全部记录，同一路径出现多次时以最后一条为准
	Load(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, e Entry) error
	Close() error
}

// FileLedger 是纯文本账本: 每行 "<md5> <path>\n"
type FileLedger struct {
	path string
	mu   sync.Mutex // 串行化追加，避免多个 worker 写出交错的行
}

// OpenFileLedger 打开 (不存在则创建) 账本文件
func OpenFileLedger(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create md5 cache dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open md5 cache file: %w", err)
	}
	f.Close()
	return &FileLedger{path: path}, nil
}

func (l *FileLedger) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// 旧格式记录的新鲜度锚点：加载时账本文件的 mtime
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	recorded := fi.ModTime()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sum, path, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		entries = append(entries, Entry{Path: path, Sum: sum, Recorded: recorded})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read md5 cache %s: %w", l.path, err)
	}
	return entries, nil
}

func (l *FileLedger) Append(ctx context.Context, e Entry) error {
	if strings.ContainsAny(e.Path, "\r\n") {
		return fmt.Errorf("path %q cannot be stored in md5 cache", e.Path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	// 一次 Write 写完整行
	if _, err := f.WriteString(formatLine(e.Sum, e.Path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *FileLedger) Close() error { return nil }

func formatLine(sum types.Checksum, path string) string {
	return sum.String() + " " + path + "\n"
}

// parseLine 只按第一个空格切分，所以路径里可以有空格
func parseLine(line string) (types.Checksum, string, bool) {
	line = strings.TrimRight(line, "\r")
	sum, path, ok := strings.Cut(line, " ")
	if !ok || path == "" {
		return "", "", false
	}
	c := types.Checksum(sum)
	if !c.IsValid() {
		return "", "", false
	}
	return c, path, true
}
