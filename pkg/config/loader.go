package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix 环境变量前缀: BSYNC_WORKERS, BSYNC_STORE_TYPE ...
const EnvPrefix = "BSYNC"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
// 返回实际使用的配置文件 (没有找到时为空串)
func Load(cfgFile string) (string, error) {
	// 1. 先加载当前目录的 .env (不覆盖已有的环境变量)
	if err := loadDotEnv(".env"); err != nil {
		return "", err
	}

	// 2. 设置默认值 (Defaults)
	setDefaults()

	// 3. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：当前目录 -> ./.bsync -> $HOME/.bsync
		viper.AddConfigPath(".")
		viper.AddConfigPath(".bsync")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".bsync"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 4. 读取环境变量 (BSYNC_STORE_TYPE 等)
	bindEnv()

	// 5. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// 没有配置文件，只用默认值和环境变量
			return "", nil
		}
		return "", fmt.Errorf("fatal error config file: %w", err)
	}
	return viper.ConfigFileUsed(), nil
}

func bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 沿用旧脚本的两个凭据变量，BSYNC_ 前缀的同名变量优先
	_ = viper.BindEnv(KeyAzureURL, EnvPrefix+"_AZURE_URL", "AZURE_URL")
	_ = viper.BindEnv(KeyAzureKey, EnvPrefix+"_AZURE_KEY", "AZURE_KEY")
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
