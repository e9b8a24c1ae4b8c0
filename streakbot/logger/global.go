package logger

import (
	"log/slog"
	"time"
)

// LogCommand logs a finished command.
func LogCommand(name, userName string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "cmd"),
		slog.String("name", name),
		slog.String("user_name", userName),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Command failed", append(attrs, slog.Any("error", err), slog.String("status", "failed"))...)
		return
	}
	slog.Info("Command executed", append(attrs, slog.String("status", "success"))...)
}

// LogQuery logs a database statement.
func LogQuery(query string, duration time.Duration, err error, attrs ...any) {
	base := []any{
		slog.String("type", "db"),
		slog.String("query", query),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(append(base, slog.Any("error", err)), attrs...)...)
		return
	}
	slog.Debug("Query executed", append(base, attrs...)...)
}

func LogSystem(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sys")}, attrs...)...)
}

func LogError(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{slog.String("type", "error"), slog.Any("error", err)}, attrs...)...)
}
