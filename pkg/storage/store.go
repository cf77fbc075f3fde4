package storage

import (
	"context"
	"io"
	"sort"

	"blobsync/pkg/types"
)

// 哨兵错误，和 types 中的分类保持同一个实例，errors.Is 在两边都成立
var (
	ErrNotFound          = types.ErrNotFound
	ErrTransient         = types.ErrTransient
	ErrAlreadyInProgress = types.ErrAlreadyInProgress
	ErrPermission        = types.ErrPermission
	ErrContainerMissing  = types.ErrContainerMissing
)

// MetadataChecksumKey 是对象元数据里存放 MD5 的 key
const MetadataChecksumKey = "md5"

// BlobInfo 是 List 返回的一行
type BlobInfo struct {
	Name string
	Tier types.Tier
	Size int64
}

// BlobRecord 是某一时刻远端对象的快照
// 需要新鲜数据的决策前必须重新 Stat，不要复用旧的 record
type BlobRecord struct {
	Name          string
	Checksum      types.Checksum // 元数据里没有 md5 时为空串，空串不会等于任何真实 checksum
	Tier          types.Tier
	Size          int64
	ArchiveStatus string // 例如 "rehydrate-pending-to-cool"，没有则为空
}

// PutOptions 上传时附带的层级和元数据
type PutOptions struct {
	Tier     types.Tier
	Checksum types.Checksum
	Size     int64 // -1 表示未知
}

// Store defines the interface for a blob storage backend bound to one container.
// Implementations can be Azure Blob Storage, S3 compatible storage, or a local directory.
type Store interface {
	// EnsureContainer 检查容器是否存在
	// create=true 时不存在则创建；create=false 时不存在返回 ErrContainerMissing
	EnsureContainer(ctx context.Context, create bool) error

	// List 列出容器中所有对象
	List(ctx context.Context) ([]BlobInfo, error)

	// Stat 读取对象元数据，不存在返回 ErrNotFound
	Stat(ctx context.Context, name string) (*BlobRecord, error)

	// Put 流式上传，不要把整个文件读进内存
	Put(ctx context.Context, name string, r io.Reader, opts PutOptions) error

	Delete(ctx context.Context, name string) error

	// SetTier 修改存储层级。对象正在 rehydrate 时返回 ErrAlreadyInProgress
	// 远端是异步完成的，这里不轮询
	SetTier(ctx context.Context, name string, tier types.Tier, priority types.Priority) error

	// Get 返回对象内容的流
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Container 返回绑定的容器名 (用于日志)
	Container() string
}

// Manifest 是某一时刻容器内对象名的只读快照
type Manifest map[string]BlobInfo

// FetchManifest 在 batch 开始前拉取一次对象列表
func FetchManifest(ctx context.Context, s Store) (Manifest, error) {
	blobs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(Manifest, len(blobs))
	for _, b := range blobs {
		m[b.Name] = b
	}
	return m, nil
}

func (m Manifest) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Names 按字典序返回所有对象名
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
