package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trailgo/pkg/config"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

var (
	eventMu   sync.Mutex
	eventFile *os.File
)

// Init sets up the server, request and event logs from cfg. Files from the
// previous run are kept as .old. The returned func closes all log files.
func Init(cfg *config.LogConfig) (func(), error) {
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path)
	SetTrace(cfg.Trace)

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	serverHandler, serverFile, err := setupHandler(cfg.Server.Path, cfg.Server.Level, true)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	closers = append(closers, serverFile)

	requestHandler, requestFile, err := setupHandler(cfg.Requests.Path, cfg.Requests.Level, false)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	closers = append(closers, requestFile)

	if err := SetEventLogPath(cfg.Events.Path); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	slog.SetDefault(slog.New(serverHandler))
	RequestLogger = slog.New(requestHandler)

	return func() {
		_ = SetEventLogPath("")
		closeAll()
	}, nil
}

// parseLevel accepts DEBUG, INFO, WARN and ERROR in any case; anything else is INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// setupHandler opens path for appending. With console set, records also go to
// stdout and to LogCapture at INFO and above.
func setupHandler(path, levelStr string, console bool) (slog.Handler, *os.File, error) {
	level := parseLevel(levelStr)

	file, err := openAppend(path)
	if err != nil {
		return nil, nil, err
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	if !console {
		return fileHandler, file, nil
	}

	info := &slog.HandlerOptions{Level: max(level, slog.LevelInfo)}
	return &multiHandler{handlers: []slog.Handler{
		fileHandler,
		slog.NewTextHandler(os.Stdout, info),
		slog.NewTextHandler(LogCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}, file, nil
}

// multiHandler fans a record out to every handler that accepts its level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = fn(h)
	}
	return &multiHandler{handlers: next}
}

// rotatePaths renames each existing file to <path>.old, replacing any older copy.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		oldPath := p + ".old"
		_ = os.Remove(oldPath)
		_ = os.Rename(p, oldPath)
	}
}

// SetEventLogPath closes the current event log and opens path for appending.
// An empty path disables the event log.
func SetEventLogPath(path string) error {
	eventMu.Lock()
	defer eventMu.Unlock()

	if eventFile != nil {
		_ = eventFile.Close()
		eventFile = nil
	}
	if path == "" {
		return nil
	}
	f, err := openAppend(path)
	if err != nil {
		return err
	}
	eventFile = f
	return nil
}

// Event is a notable state change written to the event log.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // "clock", "feature", "trail"
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
}

// String formats the event as one event log line:
// [2006-01-02 15:04:05] [type] Title - Summary
func (e *Event) String() string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("[%s] [%s] %s", ts.Format("2006-01-02 15:04:05"), e.Type, e.Title)
	if e.Summary != "" {
		line += " - " + e.Summary
	}
	return line
}

// LogEvent appends event to the event log and to EventCapture.
// Without an open event log it does nothing.
func LogEvent(event *Event) {
	eventMu.Lock()
	defer eventMu.Unlock()

	if eventFile == nil {
		return
	}
	line := event.String()
	if _, err := eventFile.WriteString(line + "\n"); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
	_, _ = EventCapture.Write([]byte(line))
}
