package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"custody-backend/internal/domain"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// ParseLevel maps a config level name onto a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New builds a logger writing to w in the given format ("json" or "text").
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Initialize sets up the global logger on stdout.
func Initialize(level, format string) {
	InitializeWithWriter(os.Stdout, level, format)
}

// InitializeWithWriter sets up the global logger on w.
func InitializeWithWriter(w io.Writer, level, format string) {
	l := New(w, level, format)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// Get returns the global logger, initializing an info/text one on first use.
func Get() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Initialize("info", "text")
		mu.RLock()
		l = defaultLogger
		mu.RUnlock()
	}
	return l
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Get().InfoContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Get().ErrorContext(ctx, msg, args...)
}

// WithJob returns a logger tagged with a scheduled job name.
func WithJob(name string) *slog.Logger {
	return Get().With("job", name)
}

func begin(what string, attrs []any) {
	Get().Debug("→ "+what, attrs...)
}

func end(what string, err error, attrs []any) {
	if err != nil {
		Get().Error("← "+what+" failed", append(attrs, "error", err)...)
		return
	}
	Get().Debug("← "+what+" succeeded", attrs...)
}

// EnterMethod and ExitMethod trace service calls at debug level.
func EnterMethod(methodName string, args ...any) {
	begin("Method entered", append([]any{"method", methodName}, args...))
}

func ExitMethod(methodName string, args ...any) {
	Get().Debug("← Method exited", append([]any{"method", methodName}, args...)...)
}

// ExitMethodWithError logs a failed service call. Rejections caused by the
// caller are warnings; everything else is an error.
func ExitMethodWithError(methodName string, err error, args ...any) {
	attrs := append([]any{"method", methodName, "error", err}, args...)
	if callerFault(err) {
		Get().Warn("← Method rejected", attrs...)
		return
	}
	Get().Error("← Method failed", attrs...)
}

func callerFault(err error) bool {
	switch domain.Kind(err) {
	case "", "Internal", "PartialBatchFailure":
		return false
	}
	return true
}

// Transition logs a document moving from one lifecycle state to another.
func Transition(document string, id any, from, to string, args ...any) {
	Get().Info("Document transitioned", append([]any{"document", document, "id", id, "from", from, "to", to}, args...)...)
}

func DatabaseCall(operation, query string, args ...any) {
	begin("Database call", append([]any{"operation", operation, "query", query}, args...))
}

func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	end("Database call", err, append([]any{"operation", operation, "rows_affected", rowsAffected}, args...))
}

// ExternalServiceCall and ExternalServiceResult trace calls to backends
// other than the database, such as Redis.
func ExternalServiceCall(service, operation string, args ...any) {
	begin("External call", append([]any{"service", service, "operation", operation}, args...))
}

func ExternalServiceResult(service, operation string, err error, args ...any) {
	end("External call", err, append([]any{"service", service, "operation", operation}, args...))
}
