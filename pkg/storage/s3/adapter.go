package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// rehydrateTagKey 记录正在进行的 restore 的目标层级
// S3 的 Restore header 只告诉我们 "正在恢复"，不告诉我们恢复到哪一层
const rehydrateTagKey = "bsync-rehydrate-target"

// restoreDays 是 restore 出来的临时副本保留的天数
// 在这期间再跑一次 rehydrate 会把它原地复制成目标 storage class
const restoreDays = 7

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	client *s3.Client
	bucket string
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewAdapter 初始化 S3 客户端 (兼容 MinIO)
// Bucket 是否存在由 EnsureContainer 决定，这里不自动创建
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name not set")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// 如果指定了 Endpoint (比如 MinIO 的 localhost:9000)，则覆盖默认值
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO 必须强制使用 Path Style
			o.UsePathStyle = true
		}
	})

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *Adapter) Container() string { return s.bucket }

func (s *Adapter) EnsureContainer(ctx context.Context, create bool) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !create {
		mapped := mapError(err)
		if errors.Is(mapped, storage.ErrNotFound) {
			return fmt.Errorf("bucket %s: %w", s.bucket, storage.ErrContainerMissing)
		}
		return fmt.Errorf("s3 head bucket failed: %w", mapped)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("s3 create bucket %s failed: %w", s.bucket, mapError(err))
	}
	return nil
}

func (s *Adapter) List(ctx context.Context) ([]storage.BlobInfo, error) {
	var blobs []storage.BlobInfo
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", mapError(err))
		}
		for _, obj := range page.Contents {
			blobs = append(blobs, storage.BlobInfo{
				Name: aws.ToString(obj.Key),
				Tier: tierFromClass(string(obj.StorageClass)),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return blobs, nil
}

func (s *Adapter) Stat(ctx context.Context, name string) (*storage.BlobRecord, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 head %s failed: %w", name, mapError(err))
	}

	rec := &storage.BlobRecord{
		Name:     name,
		Checksum: types.Checksum(out.Metadata[storage.MetadataChecksumKey]),
		Tier:     tierFromClass(string(out.StorageClass)),
		Size:     aws.ToInt64(out.ContentLength),
	}

	if restoreOngoing(aws.ToString(out.Restore)) {
		target, err := s.rehydrateTarget(ctx, name)
		if err != nil {
			return nil, err
		}
		rec.ArchiveStatus = types.PendingStatus(target)
	}
	return rec, nil
}

func (s *Adapter) Put(ctx context.Context, name string, r io.Reader, opts storage.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(name),
		Body:         r,
		StorageClass: classFromTier(opts.Tier),
		Metadata:     map[string]string{},
	}
	if !opts.Checksum.IsZero() {
		input.Metadata[storage.MetadataChecksumKey] = opts.Checksum.String()
	}
	if opts.Size >= 0 {
		input.ContentLength = aws.Int64(opts.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s failed: %w", name, mapError(err))
	}
	return nil
}

func (s *Adapter) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s failed: %w", name, mapError(err))
	}
	return nil
}

// SetTier 在 S3 上分两步:
//  1. GLACIER 对象先 RestoreObject (异步)，并打上目标层级的 tag
//  2. restore 完成后 (或本来就不是 GLACIER) 原地 CopyObject 改 storage class
func (s *Adapter) SetTier(ctx context.Context, name string, tier types.Tier, priority types.Priority) error {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("s3 head %s failed: %w", name, mapError(err))
	}

	archived := tierFromClass(string(head.StorageClass)) == types.TierArchive
	restore := aws.ToString(head.Restore)

	if archived && tier != types.TierArchive && !restoreDone(restore) {
		_, err := s.client.RestoreObject(ctx, &s3.RestoreObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(name),
			RestoreRequest: &s3types.RestoreRequest{
				Days: aws.Int32(restoreDays),
				GlacierJobParameters: &s3types.GlacierJobParameters{
					Tier: restoreTier(priority),
				},
			},
		})
		if err != nil {
			return fmt.Errorf("s3 restore %s failed: %w", name, mapError(err))
		}

		_, err = s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(name),
			Tagging: &s3types.Tagging{TagSet: []s3types.Tag{
				{Key: aws.String(rehydrateTagKey), Value: aws.String(tier.String())},
			}},
		})
		if err != nil {
			return fmt.Errorf("s3 tag %s failed: %w", name, mapError(err))
		}
		return nil
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(name),
		CopySource:        aws.String(copySource(s.bucket, name)),
		StorageClass:      classFromTier(tier),
		MetadataDirective: s3types.MetadataDirectiveCopy,
	})
	if err != nil {
		return fmt.Errorf("s3 copy %s to %s failed: %w", name, tier, mapError(err))
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s failed: %w", name, mapError(err))
	}
	return resp.Body, nil
}

func (s *Adapter) rehydrateTarget(ctx context.Context, name string) (types.Tier, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("s3 get tags %s failed: %w", name, mapError(err))
	}
	for _, tag := range out.TagSet {
		if aws.ToString(tag.Key) == rehydrateTagKey {
			if t, err := types.ParseTier(aws.ToString(tag.Value)); err == nil {
				return t, nil
			}
		}
	}
	// 别的工具发起的 restore，没有 tag，S3 的 restore 副本默认可读，按 Hot 处理
	return types.TierHot, nil
}

// -----------------------------------------------------------------------------
// 映射函数
// -----------------------------------------------------------------------------

// classFromTier: Hot -> STANDARD, Cool -> STANDARD_IA, Archive -> GLACIER
func classFromTier(t types.Tier) s3types.StorageClass {
	switch t {
	case types.TierCool:
		return s3types.StorageClassStandardIa
	case types.TierArchive:
		return s3types.StorageClassGlacier
	default:
		return s3types.StorageClassStandard
	}
}

// tierFromClass 处理 HeadObject 和 ListObjects 两种 storage class 类型 (都是字符串)
// STANDARD 对象在 HeadObject 中 storage class 为空
func tierFromClass(class string) types.Tier {
	switch class {
	case "GLACIER", "DEEP_ARCHIVE":
		return types.TierArchive
	case "STANDARD_IA", "ONEZONE_IA", "GLACIER_IR":
		return types.TierCool
	default:
		return types.TierHot
	}
}

func restoreTier(p types.Priority) s3types.Tier {
	if p == types.PriorityHigh {
		return s3types.TierExpedited
	}
	return s3types.TierStandard
}

// restoreOngoing 解析 x-amz-restore: ongoing-request="true"
func restoreOngoing(header string) bool {
	return strings.Contains(header, `ongoing-request="true"`)
}

// restoreDone 解析 x-amz-restore: ongoing-request="false", expiry-date="..."
func restoreDone(header string) bool {
	return strings.Contains(header, `ongoing-request="false"`)
}

// copySource 需要 URL 编码，但保留路径分隔符
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// mapError 把 AWS 的错误映射为我们自己的哨兵错误
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	var noBucket *s3types.NoSuchBucket
	var archived *s3types.InvalidObjectState
	switch {
	case errors.As(err, &noKey), errors.As(err, &notFound):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case errors.As(err, &noBucket):
		return fmt.Errorf("%w: %w", storage.ErrContainerMissing, err)
	case errors.As(err, &archived):
		return fmt.Errorf("%w: %w", types.ErrNotDownloadable, err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %w", storage.ErrPermission, err)
		case "RestoreAlreadyInProgress":
			return fmt.Errorf("%w: %w", storage.ErrAlreadyInProgress, err)
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return fmt.Errorf("%w: %w", storage.ErrTransient, err)
		}
		if ae.ErrorFault() == smithy.FaultServer {
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
