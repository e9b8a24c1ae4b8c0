package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand LogType = "CMD"
	TypeDB      LogType = "DB"
	TypeSystem  LogType = "SYS"
	TypeError   LogType = "ERR"
)

const prefix = "[StreakBot]"

// CustomHandler writes one coloured line per record. The "type" attribute
// selects the CMD/DB/SYS/ERR column.
type CustomHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	color  bool
	attrs  []slog.Attr
	groups []string
}

// Options configures a CustomHandler.
type Options struct {
	Level   slog.Leveler
	NoColor bool
}

func NewHandler() *CustomHandler {
	return NewHandlerWithOptions(os.Stdout, Options{Level: slog.LevelDebug})
}

func NewHandlerWithOptions(out io.Writer, opts Options) *CustomHandler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &CustomHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
		color: !opts.NoColor,
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(r.Message) {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	levelColor, levelText := levelStyle(r.Level)
	message := r.Message

	if r.Level >= slog.LevelError {
		if loc := errorLocation(attrs, r.PC); loc != "" {
			message = fmt.Sprintf("%s (%s)", message, loc)
		}
		if details := attrValue(attrs, "error"); details != "" {
			message = fmt.Sprintf("%s: %s", message, details)
		}
	}
	if name, user := attrValue(attrs, "name"), attrValue(attrs, "user_name"); name != "" && user != "" {
		message = fmt.Sprintf("%s [%s by %s]", message, name, user)
	}
	if status := attrValue(attrs, "status"); status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, status)
	}
	if took := attrValue(attrs, "took"); took != "" {
		message = fmt.Sprintf("%s (took %s)", message, took)
	}

	var sb strings.Builder
	for _, a := range attrs {
		if isInternalAttr(a.Key) {
			continue
		}
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&sb, " %s=%v", key, a.Value)
	}

	white, reset := colorWhite, colorReset
	if !h.color {
		white, reset, levelColor = "", "", ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.out, "%s%s [%s] [%s%s%s] [%s] %s%s%s\n",
		white,
		prefix,
		r.Time.Format("15:04:05"),
		levelColor,
		levelText,
		white,
		logType(attrs),
		message,
		sb.String(),
		reset,
	)
	return err
}

func levelStyle(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return colorRed, "ERROR"
	case level >= slog.LevelWarn:
		return colorYellow, "WARN"
	case level >= slog.LevelInfo:
		return colorGreen, "INFO"
	default:
		return colorPurple, "DEBUG"
	}
}

// gateway and rest chatter from disgo
var skippedMessages = []string{
	"locking buckets",
	"unlocking buckets",
	"gateway event",
	"cleaning up bucket",
	"cleaned up rate limit buckets",
	"binary message received",
	"received gateway message",
	"locking gateway rate limiter",
	"unlocking gateway rate limiter",
	"sending gateway command",
	"new request",
	"new response",
	"locking rest bucket",
	"unlocking rest bucket",
	"rate limit response headers",
	"sending heartbeat",
}

func shouldSkipLog(msg string) bool {
	msg = strings.ToLower(msg)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}

func logType(attrs []slog.Attr) LogType {
	switch attrValue(attrs, "type") {
	case "cmd":
		return TypeCommand
	case "db":
		return TypeDB
	case "error":
		return TypeError
	default:
		return TypeSystem
	}
}

func isInternalAttr(key string) bool {
	switch key {
	case "type", "name", "user_name", "status", "error", "error_location", "took":
		return true
	}
	return false
}

func attrValue(attrs []slog.Attr, key string) string {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Key == key {
			return attrs[i].Value.String()
		}
	}
	return ""
}

func errorLocation(attrs []slog.Attr, pc uintptr) string {
	if loc := attrValue(attrs, "error_location"); loc != "" {
		return loc
	}
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}

// Since formats the time elapsed since start the way "took" attributes are shown.
func Since(start time.Time) slog.Attr {
	return slog.Duration("took", time.Since(start).Round(time.Microsecond))
}
