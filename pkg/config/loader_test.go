package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	used, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, used)

	s, err := Current()
	require.NoError(t, err)
	assert.Equal(t, "azure", s.Store.Type)
	assert.Equal(t, 1, s.Workers)
	assert.False(t, s.Overwrite)
	assert.Equal(t, "Standard", s.Priority)
	assert.Equal(t, 2*time.Second, s.Retry.UploadDelay)
	assert.Equal(t, 2, s.Retry.UploadAttempts)
	assert.Equal(t, 3, s.Retry.DownloadAttempts)
	assert.Equal(t, 2, s.Retry.Requeues)
	assert.Equal(t, "none", s.Journal.Driver)
	assert.Equal(t, "file", s.Checksum.Ledger)
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := filepath.Join(dir, "bsync.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
store:
  type: disk
  path: /srv/blobs
container: photos
workers: 4
retry:
  upload_delay: 10ms
`), 0644))

	t.Setenv("BSYNC_WORKERS", "8")
	t.Setenv("AZURE_URL", "https://acct.blob.core.windows.net")

	used, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, used)

	s, err := Current()
	require.NoError(t, err)
	assert.Equal(t, "disk", s.Store.Type)
	assert.Equal(t, "/srv/blobs", s.Store.Path)
	assert.Equal(t, "photos", s.Container)
	assert.Equal(t, 8, s.Workers, "环境变量覆盖配置文件")
	assert.Equal(t, 10*time.Millisecond, s.Retry.UploadDelay)
	assert.Equal(t, "https://acct.blob.core.windows.net", s.Azure.URL)
}

func TestLoad_DotEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AZURE_KEY=c2VjcmV0\n"), 0600))
	t.Setenv("AZURE_KEY", "") // 注册清理；gotenv 不覆盖非空的已有变量
	require.NoError(t, os.Unsetenv("AZURE_KEY"))

	_, err := Load("")
	require.NoError(t, err)

	s, err := Current()
	require.NoError(t, err)
	assert.Equal(t, "c2VjcmV0", s.Azure.Key)
}

func TestLoad_BadFile(t *testing.T) {
	viper.Reset()
	cfg := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("workers: [\n"), 0644))

	_, err := Load(cfg)
	assert.Error(t, err)
}

func TestCurrent_InvalidWorkers(t *testing.T) {
	viper.Reset()
	setDefaults()
	viper.Set(KeyWorkers, 0)

	_, err := Current()
	assert.Error(t, err)
}
