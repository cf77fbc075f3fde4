// Package logging 构建 CLI 使用的 slog.Logger
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New 根据 level 和 format 创建 logger
// format: "json" 输出 JSON，其它值使用 tint 彩色控制台输出
// 日志写到 w (CLI 里是 stderr)，stdout 留给表格和汇总
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	case "", "console", "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly, // HH:MM:SS
		})
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", format)
	}
	return slog.New(handler), nil
}

// ParseLevel 解析 debug|info|warn|error，空串视为 info
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
