package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blobsync/pkg/storage"
	"blobsync/pkg/types"
)

// Config 用于初始化本地目录后端
type Config struct {
	Root      string // 比如: /var/lib/bsync
	Container string
	// RehydrateDelay 模拟远端异步 rehydrate 的耗时，0 表示下一次读取时即完成
	RehydrateDelay time.Duration
}

// Adapter 实现了 storage.Store 接口
// 布局:
//
//	<root>/<container>/blobs/<name>       对象内容
//	<root>/<container>/meta/<name>.json   元数据 (md5, tier, archive status)
type Adapter struct {
	base      string
	container string
	delay     time.Duration
	now       func() time.Time

	mu sync.Mutex // 保护 meta 文件的读改写
}

// sidecar 是 meta/<name>.json 的内容
type sidecar struct {
	Checksum      types.Checksum `json:"md5,omitempty"`
	Tier          types.Tier     `json:"tier"`
	ArchiveStatus string         `json:"archive_status,omitempty"`
	PendingTier   types.Tier     `json:"pending_tier,omitempty"`
	PendingSince  time.Time      `json:"pending_since,omitzero"`
}

// NewAdapter 创建一个新的本地目录后端
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("disk store root not set")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("container name not set")
	}
	return &Adapter{
		base:      filepath.Join(cfg.Root, cfg.Container),
		container: cfg.Container,
		delay:     cfg.RehydrateDelay,
		now:       time.Now,
	}, nil
}

func (s *Adapter) Container() string { return s.container }

// blobPath 返回对象内容的物理路径，对象名一律使用 "/" 分隔
func (s *Adapter) blobPath(name string) string {
	return filepath.Join(s.base, "blobs", filepath.FromSlash(name))
}

func (s *Adapter) metaPath(name string) string {
	return filepath.Join(s.base, "meta", filepath.FromSlash(name)+".json")
}

func (s *Adapter) EnsureContainer(ctx context.Context, create bool) error {
	_, err := os.Stat(s.base)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	if !create {
		return fmt.Errorf("container %s: %w", s.container, storage.ErrContainerMissing)
	}
	for _, dir := range []string{"blobs", "meta"} {
		if err := os.MkdirAll(filepath.Join(s.base, dir), 0755); err != nil {
			return fmt.Errorf("failed to create container dir: %w", err)
		}
	}
	return nil
}

func (s *Adapter) List(ctx context.Context) ([]storage.BlobInfo, error) {
	root := filepath.Join(s.base, "blobs")
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, fmt.Errorf("container %s: %w", s.container, storage.ErrContainerMissing)
	}

	var blobs []storage.BlobInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// 跳过目录和还没 rename 的临时文件
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		rec, err := s.Stat(ctx, name)
		if err != nil {
			return err
		}
		blobs = append(blobs, storage.BlobInfo{Name: rec.Name, Tier: rec.Tier, Size: rec.Size})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

func (s *Adapter) Stat(ctx context.Context, name string) (*storage.BlobRecord, error) {
	fi, err := os.Stat(s.blobPath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMeta(name)
	if err != nil {
		return nil, err
	}

	return &storage.BlobRecord{
		Name:          name,
		Checksum:      meta.Checksum,
		Tier:          meta.Tier,
		Size:          fi.Size(),
		ArchiveStatus: meta.ArchiveStatus,
	}, nil
}

func (s *Adapter) Put(ctx context.Context, name string, r io.Reader, opts storage.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	targetPath := s.blobPath(name)
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 原子写入：先写临时文件再 Rename
	// 保证要么对象不存在，要么对象是完整的
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := io.Copy(tempFile, r); err != nil {
		tempFile.Close()
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return err
	}

	tier := opts.Tier
	if tier == "" {
		tier = types.TierHot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveMeta(name, sidecar{Checksum: opts.Checksum, Tier: tier})
}

func (s *Adapter) Delete(ctx context.Context, name string) error {
	if err := os.Remove(s.blobPath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", name, storage.ErrNotFound)
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.metaPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SetTier 从 Archive 出来是异步的：先记为 pending，过了 RehydrateDelay 之后下一次读取时完成
func (s *Adapter) SetTier(ctx context.Context, name string, tier types.Tier, priority types.Priority) error {
	if _, err := os.Stat(s.blobPath(name)); os.IsNotExist(err) {
		return fmt.Errorf("blob %s: %w", name, storage.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMeta(name)
	if err != nil {
		return err
	}

	switch {
	case meta.PendingTier != "":
		return fmt.Errorf("blob %s is being rehydrated to %s: %w", name, meta.PendingTier, storage.ErrAlreadyInProgress)
	case meta.Tier == types.TierArchive && tier != types.TierArchive:
		meta.PendingTier = tier
		meta.PendingSince = s.now()
		meta.ArchiveStatus = types.PendingStatus(tier)
	default:
		meta.Tier = tier
	}
	return s.saveMeta(name, meta)
}

func (s *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	rec, err := s.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec.Tier == types.TierArchive {
		return nil, fmt.Errorf("blob %s is archived: %w", name, types.ErrNotDownloadable)
	}

	f, err := os.Open(s.blobPath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// loadMeta 读取 sidecar，顺便完成已经到期的 rehydrate
// 调用方必须持有 s.mu
func (s *Adapter) loadMeta(name string) (sidecar, error) {
	var meta sidecar
	data, err := os.ReadFile(s.metaPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		// 没有 sidecar 的对象 (比如手工拷进来的) 当作 Hot、无 md5
		return sidecar{Tier: types.TierHot}, nil
	}
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("corrupted metadata for %s: %w", name, err)
	}

	if meta.PendingTier != "" && s.now().Sub(meta.PendingSince) >= s.delay {
		meta.Tier = meta.PendingTier
		meta.PendingTier = ""
		meta.PendingSince = time.Time{}
		meta.ArchiveStatus = ""
		if err := s.saveMeta(name, meta); err != nil {
			return meta, err
		}
	}
	return meta, nil
}

func (s *Adapter) saveMeta(name string, meta sidecar) error {
	path := s.metaPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
