package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// 配置 key，命令行 flag 通过 viper.BindPFlag 绑定到这些 key 上
const (
	KeyStoreType      = "store.type"
	KeyStorePath      = "store.path"
	KeyRehydrateDelay = "store.rehydrate_delay"

	KeyS3Endpoint  = "s3.endpoint"
	KeyS3Region    = "s3.region"
	KeyS3AccessKey = "s3.access_key"
	KeyS3SecretKey = "s3.secret_key"

	KeyAzureURL = "azure.url"
	KeyAzureKey = "azure.key"

	KeyContainer = "container"
	KeyWorkers   = "workers"
	KeyOverwrite = "overwrite"
	KeyTier      = "tier"
	KeyPriority  = "priority"

	KeyMD5CacheFile   = "md5_cache_file"
	KeyChecksumLedger = "checksum.ledger"
	KeyRedisURL       = "redis.url"
	KeyRedisPrefix    = "redis.prefix"

	KeyUploadDelay      = "retry.upload_delay"
	KeyUploadAttempts   = "retry.upload_attempts"
	KeyDownloadAttempts = "retry.download_attempts"
	KeyRequeues         = "retry.requeues"

	KeyJournalDriver   = "journal.driver"
	KeyJournalDSN      = "journal.dsn"
	KeyMetricsTextfile = "metrics.textfile"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
)

// Settings 是一次 CLI 调用的全部配置
type Settings struct {
	Store struct {
		Type           string        `mapstructure:"type"`
		Path           string        `mapstructure:"path"`
		RehydrateDelay time.Duration `mapstructure:"rehydrate_delay"`
	} `mapstructure:"store"`

	S3 struct {
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"s3"`

	Azure struct {
		URL string `mapstructure:"url"`
		Key string `mapstructure:"key"`
	} `mapstructure:"azure"`

	Container string `mapstructure:"container"`
	Workers   int    `mapstructure:"workers"`
	Overwrite bool   `mapstructure:"overwrite"`
	Tier      string `mapstructure:"tier"`
	Priority  string `mapstructure:"priority"`

	MD5CacheFile string `mapstructure:"md5_cache_file"`
	Checksum     struct {
		Ledger string `mapstructure:"ledger"`
	} `mapstructure:"checksum"`
	Redis struct {
		URL    string `mapstructure:"url"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Retry struct {
		UploadDelay      time.Duration `mapstructure:"upload_delay"`
		UploadAttempts   int           `mapstructure:"upload_attempts"`
		DownloadAttempts int           `mapstructure:"download_attempts"`
		Requeues         int           `mapstructure:"requeues"`
	} `mapstructure:"retry"`

	Journal struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"journal"`

	Metrics struct {
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults() {
	home, _ := os.UserHomeDir()
	dotDir := filepath.Join(home, ".bsync")

	// 存储默认值
	viper.SetDefault(KeyStoreType, "azure")
	viper.SetDefault(KeyStorePath, filepath.Join(dotDir, "store"))
	viper.SetDefault(KeyRehydrateDelay, time.Duration(0))
	viper.SetDefault(KeyS3Endpoint, "")
	viper.SetDefault(KeyS3Region, "us-east-1")
	viper.SetDefault(KeyS3AccessKey, "")
	viper.SetDefault(KeyS3SecretKey, "")
	viper.SetDefault(KeyAzureURL, "")
	viper.SetDefault(KeyAzureKey, "")

	// batch 默认值
	viper.SetDefault(KeyContainer, "")
	viper.SetDefault(KeyWorkers, 1)
	viper.SetDefault(KeyOverwrite, false)
	viper.SetDefault(KeyTier, "") // upload 默认 Archive，rehydrate 默认 Cool，由命令决定
	viper.SetDefault(KeyPriority, "Standard")

	// checksum 缓存
	viper.SetDefault(KeyMD5CacheFile, filepath.Join(dotDir, "md5sums"))
	viper.SetDefault(KeyChecksumLedger, "file")
	viper.SetDefault(KeyRedisURL, "redis://localhost:6379/0")
	viper.SetDefault(KeyRedisPrefix, "bsync")

	// 重试
	viper.SetDefault(KeyUploadDelay, 2*time.Second)
	viper.SetDefault(KeyUploadAttempts, 2)
	viper.SetDefault(KeyDownloadAttempts, 3)
	viper.SetDefault(KeyRequeues, 2)

	// 输出
	viper.SetDefault(KeyJournalDriver, "none")
	viper.SetDefault(KeyJournalDSN, filepath.Join(dotDir, "journal.db"))
	viper.SetDefault(KeyMetricsTextfile, "")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFormat, "console")
}

// Current 把 viper 当前的值解码成 Settings
func Current() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.Workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", s.Workers)
	}
	return &s, nil
}
