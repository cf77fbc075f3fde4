package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// Config 对应原来脚本里的 AZURE_URL / AZURE_KEY
type Config struct {
	AccountURL string // https://<account>.blob.core.windows.net
	Key        string // account key，或者 SAS token (以 "?" 开头或包含 "sig=")
	Container  string
}

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	container *container.Client
	name      string
}

// NewAdapter 创建 Azure Blob Storage 客户端
// 只负责创建对象，不发网络请求
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.AccountURL == "" {
		return nil, fmt.Errorf("azure account url not set (AZURE_URL)")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("container name not set")
	}

	var client *azblob.Client
	var err error
	if isSAS(cfg.Key) {
		sasURL := strings.TrimRight(cfg.AccountURL, "/") + "/?" + strings.TrimPrefix(cfg.Key, "?")
		client, err = azblob.NewClientWithNoCredential(sasURL, nil)
	} else {
		account, aerr := accountName(cfg.AccountURL)
		if aerr != nil {
			return nil, aerr
		}
		cred, cerr := azblob.NewSharedKeyCredential(account, cfg.Key)
		if cerr != nil {
			return nil, fmt.Errorf("invalid azure credential: %w", cerr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &Adapter{
		container: client.ServiceClient().NewContainerClient(cfg.Container),
		name:      cfg.Container,
	}, nil
}

func (a *Adapter) Container() string { return a.name }

func (a *Adapter) EnsureContainer(ctx context.Context, create bool) error {
	_, err := a.container.GetProperties(ctx, nil)
	if err == nil {
		return nil
	}
	if !bloberror.HasCode(err, bloberror.ContainerNotFound) {
		return fmt.Errorf("azure container %s: %w", a.name, mapError(err))
	}
	if !create {
		return fmt.Errorf("container %s: %w", a.name, storage.ErrContainerMissing)
	}

	if _, err := a.container.Create(ctx, nil); err != nil {
		// 并发创建
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return fmt.Errorf("azure create container %s: %w", a.name, mapError(err))
	}
	return nil
}

func (a *Adapter) List(ctx context.Context) ([]storage.BlobInfo, error) {
	var blobs []storage.BlobInfo
	pager := a.container.NewListBlobsFlatPager(nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure list failed: %w", mapError(err))
		}
		for _, item := range resp.Segment.BlobItems {
			info := storage.BlobInfo{Name: to.ValueOrDefault(item.Name, "")}
			if item.Properties != nil {
				if item.Properties.AccessTier != nil {
					info.Tier = tierFromAccess(string(*item.Properties.AccessTier))
				}
				info.Size = to.ValueOrDefault(item.Properties.ContentLength, 0)
			}
			blobs = append(blobs, info)
		}
	}
	return blobs, nil
}

func (a *Adapter) Stat(ctx context.Context, name string) (*storage.BlobRecord, error) {
	props, err := a.container.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("azure properties %s: %w", name, mapError(err))
	}
	return &storage.BlobRecord{
		Name:          name,
		Checksum:      types.Checksum(metadataValue(props.Metadata, storage.MetadataChecksumKey)),
		Tier:          tierFromAccess(to.ValueOrDefault(props.AccessTier, "")),
		Size:          to.ValueOrDefault(props.ContentLength, 0),
		ArchiveStatus: to.ValueOrDefault(props.ArchiveStatus, ""),
	}, nil
}

func (a *Adapter) Put(ctx context.Context, name string, r io.Reader, opts storage.PutOptions) error {
	upload := &blockblob.UploadStreamOptions{
		AccessTier: to.Ptr(accessFromTier(opts.Tier)),
		Metadata:   map[string]*string{},
	}
	if !opts.Checksum.IsZero() {
		upload.Metadata[storage.MetadataChecksumKey] = to.Ptr(opts.Checksum.String())
	}

	if _, err := a.container.NewBlockBlobClient(name).UploadStream(ctx, r, upload); err != nil {
		return fmt.Errorf("azure upload %s: %w", name, mapError(err))
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, name string) error {
	if _, err := a.container.NewBlobClient(name).Delete(ctx, nil); err != nil {
		return fmt.Errorf("azure delete %s: %w", name, mapError(err))
	}
	return nil
}

func (a *Adapter) SetTier(ctx context.Context, name string, tier types.Tier, priority types.Priority) error {
	opts := &blob.SetTierOptions{RehydratePriority: to.Ptr(rehydratePriority(priority))}
	if _, err := a.container.NewBlobClient(name).SetTier(ctx, accessFromTier(tier), opts); err != nil {
		return fmt.Errorf("azure set tier %s -> %s: %w", name, tier, mapError(err))
	}
	return nil
}

func (a *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := a.container.NewBlobClient(name).DownloadStream(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("azure download %s: %w", name, mapError(err))
	}
	return resp.Body, nil
}

// -----------------------------------------------------------------------------
// 辅助函数
// -----------------------------------------------------------------------------

func isSAS(key string) bool {
	return strings.HasPrefix(key, "?") || strings.Contains(key, "sig=")
}

// accountName 从 URL 中解析账户名
// https://myaccount.blob.core.windows.net -> myaccount
// http://127.0.0.1:10000/devstoreaccount1 (Azurite) -> devstoreaccount1
func accountName(accountURL string) (string, error) {
	u, err := url.Parse(accountURL)
	if err != nil {
		return "", fmt.Errorf("invalid azure url %q: %w", accountURL, err)
	}
	if path := strings.Trim(u.Path, "/"); path != "" {
		return strings.SplitN(path, "/", 2)[0], nil
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return "", fmt.Errorf("cannot derive account name from %q", accountURL)
	}
	return strings.SplitN(host, ".", 2)[0], nil
}

// metadataValue 大小写不敏感地查找 metadata
// 服务端返回的 key 会被 SDK 规范化成 "Md5" 这样的形式
func metadataValue(md map[string]*string, key string) string {
	for k, v := range md {
		if strings.EqualFold(k, key) && v != nil {
			return *v
		}
	}
	return ""
}

func accessFromTier(t types.Tier) blob.AccessTier {
	switch t {
	case types.TierCool:
		return blob.AccessTierCool
	case types.TierArchive:
		return blob.AccessTierArchive
	default:
		return blob.AccessTierHot
	}
}

func tierFromAccess(s string) types.Tier {
	if t, err := types.ParseTier(s); err == nil {
		return t
	}
	// Cold / Premium 等其它层级按可读处理
	return types.Tier(s)
}

func rehydratePriority(p types.Priority) blob.RehydratePriority {
	if p == types.PriorityHigh {
		return blob.RehydratePriorityHigh
	}
	return blob.RehydratePriorityStandard
}

// mapError 把 Azure 的错误码映射为我们自己的哨兵错误
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		return fmt.Errorf("%w: %w", storage.ErrContainerMissing, err)
	case bloberror.HasCode(err, bloberror.BlobBeingRehydrated):
		return fmt.Errorf("%w: %w", storage.ErrAlreadyInProgress, err)
	case bloberror.HasCode(err, bloberror.BlobArchived):
		return fmt.Errorf("%w: %w", types.ErrNotDownloadable, err)
	case bloberror.HasCode(err, bloberror.AuthorizationFailure, bloberror.AuthenticationFailed,
		bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		return fmt.Errorf("%w: %w", storage.ErrPermission, err)
	case bloberror.HasCode(err, bloberror.ServerBusy, bloberror.OperationTimedOut, bloberror.InternalError):
		return fmt.Errorf("%w: %w", storage.ErrTransient, err)
	}

	var re *azcore.ResponseError
	if errors.As(err, &re) {
		if re.StatusCode >= http.StatusInternalServerError || re.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", storage.ErrTransient, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", storage.ErrTransient, err)
	}
	return err
}
