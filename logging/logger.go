package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
)

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel accepts notset, debug, info, warning, error and critical.
// notset logs everything.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notset", "debug", "":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "critical":
		return LevelError, nil
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}

// Logger is a prefixed, leveled logger handed to each component.
// Printf and Println log at info level.
type Logger struct {
	logger *stdlog.Logger
	level  Level
	prefix string
}

func New(w io.Writer, level Level) *Logger {
	return &Logger{
		logger: stdlog.New(w, "", stdlog.LstdFlags),
		level:  level,
	}
}

// Discard drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// Open logs to path and, in the foreground, to stdout as well. The returned
// closer releases the log file.
func Open(path string, level Level, foreground bool) (*Logger, io.Closer, error) {
	if path == "" {
		return New(os.Stdout, level), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	var w io.Writer = f
	if foreground {
		w = io.MultiWriter(f, os.Stdout)
	}
	return New(w, level), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Child returns a logger sharing the output whose messages carry name
// appended to the parent's prefix.
func (l *Logger) Child(name string) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		prefix: l.prefix + "[" + name + "]",
	}
}

func (l *Logger) SetFlags(flag int) {
	l.logger.SetFlags(flag)
}

func (l *Logger) filteredArg(v ...interface{}) []interface{} {
	for idx, arg := range v {
		// infohashes are long and noisy in logs
		if s, ok := arg.(string); ok && len(s) == 40 && isHex(s) {
			v[idx] = fmt.Sprintf("[%s..]", s[:6])
		}
	}
	return v
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func (l *Logger) output(level Level, msg string) {
	if level < l.level {
		return
	}
	tag := ""
	if level != LevelInfo {
		tag = "[" + level.String() + "] "
	}
	if head := strings.TrimSpace(l.prefix + " " + tag); head != "" {
		msg = head + " " + msg
	}
	l.logger.Output(3, msg)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.output(LevelDebug, fmt.Sprintf(format, l.filteredArg(v...)...))
}

func (l *Logger) Printf(format string, v ...interface{}) {
	l.output(LevelInfo, fmt.Sprintf(format, l.filteredArg(v...)...))
}

func (l *Logger) Println(v ...interface{}) {
	l.output(LevelInfo, strings.TrimSuffix(fmt.Sprintln(l.filteredArg(v...)...), "\n"))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.output(LevelWarn, fmt.Sprintf(format, l.filteredArg(v...)...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(LevelError, fmt.Sprintf(format, l.filteredArg(v...)...))
}
