package main

import (
	"io"
	"log/slog"
	"strings"
)

// parseLogLevel はLOG_LEVELの値をslog.Levelに変換する。不明な値はinfo扱い
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger はテキスト形式のロガーを生成する。
// stdioトランスポートが標準出力を使うため、通常はos.Stderrを渡す
func newLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
}
