// Package logging is the process-wide slog setup plus the small set of
// structured event helpers the rest of the codebase logs through.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Format selects the log output encoding.
type Format string

const (
	FormatText Format = "text" // human-readable key=value lines
	FormatJSON Format = "json" // one JSON object per line
)

// ParseLevel maps a level name to a slog level. Unknown names fall back
// to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat maps a format name to a Format. Unknown names fall back to
// text.
func ParseFormat(name string) Format {
	if name == "json" {
		return FormatJSON
	}
	return FormatText
}

// defaultLogger is the process-wide logger. Until InitLogger runs it
// writes JSON at info level.
var defaultLogger = slog.New(newHandler(slog.LevelInfo, FormatJSON))

// rfc3339Time rewrites the built-in time attribute to RFC 3339 so
// timestamps read the same in both encodings.
func rfc3339Time(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// newHandler builds a handler for the level and encoding.
func newHandler(level slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: rfc3339Time}
	if format == FormatText {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

// InitLogger replaces the process-wide logger and the slog default.
func InitLogger(level slog.Level, format Format) {
	defaultLogger = slog.New(newHandler(level, format))
	slog.SetDefault(defaultLogger)
}

// Logger returns the process-wide logger.
func Logger() *slog.Logger {
	return defaultLogger
}

// requestIDKey is the context key for request IDs.
type requestIDKey struct{}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID carried by the context, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns the logger with any context request ID attached.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return defaultLogger.With("request_id", id)
	}
	return defaultLogger
}

// emit is the shared exit point for all package-level helpers.
func emit(ctx context.Context, level slog.Level, msg string, args ...any) {
	FromContext(ctx).Log(ctx, level, msg, args...)
}

// Debug, Info, Warn, and Error log through the process-wide logger at
// the corresponding level, with optional key-value pairs.
func Debug(msg string, args ...any) { emit(context.Background(), slog.LevelDebug, msg, args...) }
func Info(msg string, args ...any)  { emit(context.Background(), slog.LevelInfo, msg, args...) }
func Warn(msg string, args ...any)  { emit(context.Background(), slog.LevelWarn, msg, args...) }
func Error(msg string, args ...any) { emit(context.Background(), slog.LevelError, msg, args...) }

// The Context variants additionally attach the request ID carried by ctx.

func DebugContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelDebug, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelError, msg, args...)
}

// HTTPRequestContext logs a completed HTTP request.
func HTTPRequestContext(ctx context.Context, method, path, remoteAddr string, status int, elapsed time.Duration, args ...any) {
	emit(ctx, slog.LevelInfo, "http_request", append([]any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", status,
		"duration_ms", elapsed.Milliseconds(),
	}, args...)...)
}

// WorkbookEvent logs workbook lifecycle events (open, save, create).
func WorkbookEvent(op, path string, args ...any) {
	emit(context.Background(), slog.LevelInfo, "workbook_event", append([]any{
		"operation", op,
		"path", path,
	}, args...)...)
}

// WorkbookError logs a failed workbook operation.
func WorkbookError(op, path string, err error, args ...any) {
	emit(context.Background(), slog.LevelError, "workbook_error", append([]any{
		"operation", op,
		"path", path,
		"error", err.Error(),
	}, args...)...)
}

// AnnotateEvent logs an applied annotation.
func AnnotateEvent(sheet, cell string, slot int, args ...any) {
	emit(context.Background(), slog.LevelInfo, "annotate_event", append([]any{
		"sheet", sheet,
		"cell", cell,
		"slot", slot,
	}, args...)...)
}

// WebSocketEvent logs websocket hub events.
func WebSocketEvent(event string, clients int, args ...any) {
	emit(context.Background(), slog.LevelInfo, "websocket_event", append([]any{
		"event", event,
		"client_count", clients,
	}, args...)...)
}

// ServerStartup logs the listen address details once at boot.
func ServerStartup(kind, protocol string, port int, args ...any) {
	emit(context.Background(), slog.LevelInfo, "server_startup", append([]any{
		"server_type", kind,
		"protocol", protocol,
		"port", port,
	}, args...)...)
}

// SecurityEvent logs security-relevant events at warn level.
func SecurityEvent(event, component string, args ...any) {
	emit(context.Background(), slog.LevelWarn, "security_event", append([]any{
		"event", event,
		"component", component,
	}, args...)...)
}
