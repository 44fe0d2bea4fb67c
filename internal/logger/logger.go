// Package logger provides the structured logger shared by the CLI and its backends.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// rotating is the open log file, closed by Sync.
var (
	rotatingMu sync.Mutex
	rotating   io.Closer
)

// Logger is a logrus entry with the run's base fields.
type Logger struct {
	*logrus.Entry
}

// Config holds logger configuration.
type Config struct {
	Level        string    // debug, info, warn, error
	Format       string    // json, text
	Output       io.Writer // console destination, stderr when nil
	ServiceName  string
	ReportCaller bool

	// Optional rotating file output, written in addition to Output.
	File       string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultConfig keeps the console quiet: warnings and errors only, on stderr,
// so stdout stays reserved for progress lines.
func DefaultConfig() *Config {
	return &Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "llavacap",
		MaxSize:     50,
		MaxBackups:  3,
		MaxAge:      14,
		Compress:    true,
	}
}

// New builds a Logger.
// Parameters:
//   - cfg: logger configuration; nil uses DefaultConfig.
//
// Returns:
//   - *Logger: logger tagged with the service name.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	base := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	base.SetLevel(level)
	base.SetReportCaller(cfg.ReportCaller)
	base.SetFormatter(formatter(cfg.Format))
	base.SetOutput(outputs(cfg))

	return &Logger{Entry: base.WithField("service", cfg.ServiceName)}
}

func formatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
			CallerPrettyfier: shortCaller,
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  timestampFormat,
		CallerPrettyfier: shortCaller,
	}
}

// outputs returns the console writer, teed into a rotating file when one is configured.
func outputs(cfg *Config) io.Writer {
	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}
	if cfg.File == "" {
		return console
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	rotatingMu.Lock()
	if rotating != nil {
		_ = rotating.Close()
	}
	rotating = file
	rotatingMu.Unlock()

	return io.MultiWriter(console, file)
}

// Sync closes the rotating log file, if any. Call it before the process exits.
func Sync() error {
	rotatingMu.Lock()
	defer rotatingMu.Unlock()
	if rotating == nil {
		return nil
	}
	err := rotating.Close()
	rotating = nil
	return err
}

// WithFields returns a Logger with additional fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// WithField returns a Logger with one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithError returns a Logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}

// Writer returns a pipe that logs each line written to it at level.
// The caller must close it.
func (l *Logger) Writer(level logrus.Level) *io.PipeWriter {
	return l.Entry.WriterLevel(level)
}

// shortCaller reports "pkg.Func" and "file.go:line".
func shortCaller(frame *runtime.Frame) (string, string) {
	fn := frame.Function
	if i := strings.LastIndex(fn, "/"); i != -1 {
		fn = fn[i+1:]
	}
	return fn, filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}
