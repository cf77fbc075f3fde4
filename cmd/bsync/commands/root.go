package commands

import (
	"context"
	"fmt"

	"blobsync/pkg/app"
	"blobsync/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys: 命令行 flag -> viper key
// 只绑定当前命令实际拥有的 flag，同名 flag 可以出现在多个子命令上
var flagKeys = map[string]string{
	"container":      config.KeyContainer,
	"store":          config.KeyStoreType,
	"store-path":     config.KeyStorePath,
	"workers":        config.KeyWorkers,
	"overwrite":      config.KeyOverwrite,
	"tier":           config.KeyTier,
	"priority":       config.KeyPriority,
	"md5-cache-file": config.KeyMD5CacheFile,
	"journal":        config.KeyJournalDriver,
	"journal-dsn":    config.KeyJournalDSN,
	"metrics-file":   config.KeyMetricsTextfile,
	"log-level":      config.KeyLogLevel,
	"log-format":     config.KeyLogFormat,
}

// state 在一次调用的所有命令之间共享
type state struct {
	cfgFile  string
	settings *config.Settings
	app      *app.App
}

// App 第一次调用时按配置组装
func (s *state) App(cmd *cobra.Command) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	a, err := app.NewApp(cmd.Context(), s.settings, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bsync: %w", err)
	}
	s.app = a
	return a, nil
}

func (s *state) close() {
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			s.app.Logger.Warn("failed to close app", "err", err)
		}
		s.app = nil
	}
}

// NewRootCmd 构建完整的命令树
func NewRootCmd(st *state) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bsync",
		Short: "bsync: content-addressed blob sync for Azure, S3 and local stores",
		Long: `bsync uploads, downloads, lists and rehydrates blobs in a container.
Unchanged files are detected by MD5 and never transferred twice.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// PersistentPreRunE 会在所有子命令执行前运行
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(st.cfgFile); err != nil {
				return err
			}
			for name, key := range flagKeys {
				if f := cmd.Flags().Lookup(name); f != nil {
					if err := viper.BindPFlag(key, f); err != nil {
						return fmt.Errorf("failed to bind flag --%s: %w", name, err)
					}
				}
			}
			s, err := config.Current()
			if err != nil {
				return err
			}
			st.settings = s
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&st.cfgFile, "config", "", "config file (default is ./config.yaml, ./.bsync/config.yaml or $HOME/.bsync/config.yaml)")
	pf.StringP("container", "c", "", "target container (bucket)")
	pf.String("store", "", "blob store backend: azure, s3 or disk")
	pf.String("store-path", "", "root directory of the disk store")
	pf.String("journal", "", "run journal driver: none, sqlite or postgres")
	pf.String("journal-dsn", "", "journal database (sqlite path or postgres DSN)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: console or json")

	rootCmd.AddCommand(
		newUploadCmd(st),
		newDownloadCmd(st),
		newListCmd(st),
		newRehydrateCmd(st),
		newHistoryCmd(st),
	)
	return rootCmd
}

// Execute 是入口
func Execute() error {
	return ExecuteContext(context.Background(), nil)
}

// ExecuteContext 用给定的参数执行 (args 为 nil 时使用 os.Args)
func ExecuteContext(ctx context.Context, args []string) error {
	st := &state{}
	defer st.close()

	rootCmd := NewRootCmd(st)
	if args != nil {
		rootCmd.SetArgs(args)
	}
	return rootCmd.ExecuteContext(ctx)
}

// addBatchFlags 批量命令共用的 flag
func addBatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("workers", "w", 1, "number of parallel workers")
	f.Bool("dry-run", false, "only print the decisions, do not transfer anything")
	f.String("metrics-file", "", "write batch metrics in Prometheus text format to this file")
}
