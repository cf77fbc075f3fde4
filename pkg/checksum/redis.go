package checksum

import (
	"context"
	"fmt"
	"time"

	"blobsync/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// 账本条目的 CBOR 编码选项
// 时间统一存成 Unix 纳秒整数，不带 Tag
var encOptions = cbor.EncOptions{
	Sort:        cbor.SortCanonical,
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 限制大小，防止坏数据耗尽内存
	MaxArrayElements: 16,
	MaxMapPairs:      16,
	MaxNestedLevels:  4,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// redisEntry 是 Redis Hash 里每个字段的值
type redisEntry struct {
	Sum     string `cbor:"1,keyasint"`
	ModTime int64  `cbor:"2,keyasint"` // UnixNano
	Size    int64  `cbor:"3,keyasint"`
}

type RedisConfig struct {
	RedisURL string // redis://<user>:<password>@<host>:<port>/<db>
	Prefix   string // key 前缀，默认 "bsync"
}

// RedisLedger 把 checksum 存在 Redis Hash 里，多台机器可以共享
// 每条记录都带计算时的 mtime/size，所以总是按精确匹配判断新鲜度
type RedisLedger struct {
	client *redis.Client
	key    string
}

func NewRedisLedger(cfg RedisConfig) (*RedisLedger, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bsync"
	}
	return &RedisLedger{client: client, key: prefix + ":md5sums"}, nil
}

func (l *RedisLedger) Load(ctx context.Context) ([]Entry, error) {
	fields, err := l.client.HGetAll(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load md5 ledger: %w", err)
	}

	entries := make([]Entry, 0, len(fields))
	for path, raw := range fields {
		var re redisEntry
		if err := dm.Unmarshal([]byte(raw), &re); err != nil {
			// 坏条目直接忽略，下次会重新计算并覆盖
			continue
		}
		entries = append(entries, Entry{
			Path:    path,
			Sum:     types.Checksum(re.Sum),
			ModTime: time.Unix(0, re.ModTime),
			Size:    re.Size,
		})
	}
	return entries, nil
}

func (l *RedisLedger) Append(ctx context.Context, e Entry) error {
	data, err := em.Marshal(redisEntry{
		Sum:     e.Sum.String(),
		ModTime: e.ModTime.UnixNano(),
		Size:    e.Size,
	})
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	if err := l.client.HSet(ctx, l.key, e.Path, data).Err(); err != nil {
		return fmt.Errorf("redis append md5 ledger: %w", err)
	}
	return nil
}

func (l *RedisLedger) Close() error { return l.client.Close() }
