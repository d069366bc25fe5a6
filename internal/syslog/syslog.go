package syslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Global logger instance.
var L *Logger

func init() {
	zlogger := zerolog.New(newConsoleWriter(os.Stdout)).With().
		CallerWithSkipFrameCount(3).
		Timestamp().
		Logger()

	L = &Logger{zlog: &zlogger}
}

func newConsoleWriter(out io.Writer) io.Writer {
	return zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = out
		w.NoColor = true
		w.FormatCaller = func(i any) string {
			var c string
			if cc, ok := i.(string); ok {
				c = cc
			}
			if c == "" {
				return ""
			}

			parts := strings.Split(c, "/")
			if len(parts) >= 2 {
				return fmt.Sprintf("%s/%s", parts[len(parts)-2], parts[len(parts)-1])
			}
			return filepath.Base(c)
		}
	})
}

// SetFileLogger routes all output to a rotating log file in addition to
// stdout.
func (l *Logger) SetFileLogger(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	zlogger := zerolog.New(newConsoleWriter(io.MultiWriter(os.Stdout, fileWriter))).With().
		CallerWithSkipFrameCount(3).
		Timestamp().
		Logger()

	l.zlog = &zlogger
}

func (l *Logger) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = true
}

func (l *Logger) Enable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = false
}

// Error creates a new error-level LogEntry.
func (l *Logger) Error(err error) *LogEntry {
	return &LogEntry{
		Level:  "error",
		Err:    err,
		Fields: make(map[string]any),
		logger: l,
	}
}

// Warn creates a new warning-level LogEntry.
func (l *Logger) Warn() *LogEntry {
	return &LogEntry{
		Level:  "warn",
		Fields: make(map[string]any),
		logger: l,
	}
}

// Info creates a new info-level LogEntry.
func (l *Logger) Info() *LogEntry {
	return &LogEntry{
		Level:  "info",
		Fields: make(map[string]any),
		logger: l,
	}
}

// Debug creates a new debug-level LogEntry.
func (l *Logger) Debug() *LogEntry {
	return &LogEntry{
		Level:  "debug",
		Fields: make(map[string]any),
		logger: l,
	}
}

// WithMessage sets the log message.
func (e *LogEntry) WithMessage(msg string) *LogEntry {
	e.Message = msg
	return e
}

// WithJob tags the entry with a job ID.
func (e *LogEntry) WithJob(jobId string) *LogEntry {
	e.JobID = jobId
	return e
}

// WithBatch tags the entry with a batch ID.
func (e *LogEntry) WithBatch(batchId string) *LogEntry {
	e.BatchID = batchId
	return e
}

// WithField adds one key-value pair to the LogEntry.
func (e *LogEntry) WithField(key string, value any) *LogEntry {
	e.Fields[key] = value
	return e
}

// WithFields adds multiple key-value pairs to the LogEntry.
func (e *LogEntry) WithFields(fields map[string]any) *LogEntry {
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

func (e *LogEntry) Write() {
	e.logger.mu.RLock()
	defer e.logger.mu.RUnlock()

	if e.logger.disabled {
		return
	}

	if e.JobID != "" {
		e.Fields["jobId"] = e.JobID
	}
	if e.BatchID != "" {
		e.Fields["batchId"] = e.BatchID
	}

	switch e.Level {
	case "info":
		e.logger.zlog.Info().Fields(e.Fields).Msg(e.Message)
	case "debug":
		e.logger.zlog.Debug().Fields(e.Fields).Msg(e.Message)
	case "warn":
		e.logger.zlog.Warn().Fields(e.Fields).Msg(e.Message)
	case "error":
		e.logger.zlog.Error().Err(e.Err).Fields(e.Fields).Msg(e.Message)
	default:
		e.logger.zlog.Info().Fields(e.Fields).Msg(e.Message)
	}
}
