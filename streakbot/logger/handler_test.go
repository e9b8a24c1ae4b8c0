package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(NewHandlerWithOptions(buf, Options{Level: level, NoColor: true})), buf
}

func TestCustomHandler_Format(t *testing.T) {
	log, buf := newTestLogger(slog.LevelDebug)

	log.Info("Streak recorded",
		slog.String("type", "cmd"),
		slog.String("name", "streak"),
		slog.String("user_name", "ada"),
		slog.String("status", "success"),
		slog.Duration("took", 12*time.Millisecond),
		slog.String("guild_id", "g1"))

	line := buf.String()
	assert.Contains(t, line, "[StreakBot]")
	assert.Contains(t, line, "[INFO] [CMD] Streak recorded [streak by ada] [Status: success] (took 12ms)")
	assert.Contains(t, line, " guild_id=g1")
	assert.NotContains(t, line, "user_name=")
	assert.NotContains(t, line, "\033[")
}

func TestCustomHandler_ErrorsIncludeDetails(t *testing.T) {
	log, buf := newTestLogger(slog.LevelDebug)

	log.With(slog.String("type", "db")).Error("Query failed", slog.Any("error", errors.New("connection refused")))

	line := buf.String()
	assert.Contains(t, line, "[ERROR] [DB] Query failed (handler_test.go:")
	assert.Contains(t, line, ": connection refused")
}

func TestCustomHandler_LevelAndNoise(t *testing.T) {
	log, buf := newTestLogger(slog.LevelInfo)

	log.Debug("hidden")
	log.Info("Sending heartbeat", slog.Int("seq", 4))
	assert.Empty(t, buf.String())

	log.Warn("Role update failed", slog.String("type", "sys"))
	assert.Contains(t, buf.String(), "[WARN] [SYS] Role update failed")
}

func TestCustomHandler_Groups(t *testing.T) {
	log, buf := newTestLogger(slog.LevelInfo)

	log.WithGroup("rollover").Info("done", slog.Int("broken", 2))
	assert.Contains(t, buf.String(), " rollover.broken=2")
}
