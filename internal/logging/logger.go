// Package logging provides component-tagged zerolog output with an optional
// daily log file and a bounded in-memory history.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

func (l LogLevel) zerolog() zerolog.Level {
	switch LogLevel(strings.ToLower(string(l))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Entry is one remembered log line, as shown by the monitor.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
}

type Config struct {
	// LogDir holds daily log files. Empty disables file output.
	LogDir     string   `mapstructure:"dir"`
	Level      LogLevel `mapstructure:"level"`
	MaxHistory int      `mapstructure:"max_history"`
	// Console writes human-readable lines to stderr; JSON writes raw
	// events there instead.
	Console bool `mapstructure:"console"`
	JSON    bool `mapstructure:"json"`
}

func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		MaxHistory: 500,
		Console:    true,
	}
}

// Logger wraps zerolog. Frames go to stdout, so every log writer targets
// stderr or a file.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string

	mu      sync.RWMutex
	history []Entry
	maxHist int
	onLog   func(Entry)
}

func New(cfg Config) (*Logger, error) {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}

	var writers []io.Writer
	var file *os.File
	var logPath string
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath = filepath.Join(cfg.LogDir, fmt.Sprintf("visage_%s.log", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}
	switch {
	case cfg.JSON:
		writers = append(writers, os.Stderr)
	case cfg.Console:
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	l := &Logger{
		zlog: zerolog.New(out).Level(cfg.Level.zerolog()).With().
			Timestamp().
			Str("app", "visage").
			Logger(),
		file:    file,
		logPath: logPath,
		history: make([]Entry, 0, cfg.MaxHistory),
		maxHist: cfg.MaxHistory,
	}
	l.Debug("logging", "logger initialized", map[string]any{
		"file":  logPath,
		"level": string(cfg.Level),
	})
	return l, nil
}

// Nop returns a logger that writes nowhere but still keeps history.
func Nop() *Logger {
	return &Logger{zlog: zerolog.New(io.Discard).Level(zerolog.DebugLevel), maxHist: 100}
}

func (l *Logger) SetOnLog(fn func(Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLog = fn
}

func (l *Logger) remember(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, e)
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}
	if l.onLog != nil {
		go l.onLog(e)
	}
}

// GetHistory returns up to limit of the most recent entries, oldest first.
func (l *Logger) GetHistory(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	out := make([]Entry, limit)
	copy(out, l.history[len(l.history)-limit:])
	return out
}

func (l *Logger) Path() string {
	return l.logPath
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) Debug(component, msg string, data map[string]any) {
	l.log(zerolog.DebugLevel, component, msg, nil, data)
}

func (l *Logger) Info(component, msg string, data map[string]any) {
	l.log(zerolog.InfoLevel, component, msg, nil, data)
}

func (l *Logger) Warn(component, msg string, data map[string]any) {
	l.log(zerolog.WarnLevel, component, msg, nil, data)
}

func (l *Logger) Error(component, msg string, err error, data map[string]any) {
	l.log(zerolog.ErrorLevel, component, msg, err, data)
}

func (l *Logger) log(level zerolog.Level, component, msg string, err error, data map[string]any) {
	ev := l.zlog.WithLevel(level).Str("component", component)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Fields(data).Msg(msg)

	if level < l.zlog.GetLevel() {
		return
	}
	formatted := formatData(data)
	if err != nil {
		formatted = strings.TrimSpace(formatted + " error=" + err.Error())
	}
	l.remember(Entry{
		Timestamp: time.Now().Format("15:04:05.000"),
		Level:     level.String(),
		Component: component,
		Message:   msg,
		Data:      formatted,
	})
}

// formatData renders data as sorted key=value pairs.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

// Component returns a zerolog.Logger tagged with name, for packages that
// log through zerolog directly.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}
