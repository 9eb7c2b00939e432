package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, encoding and destination of the program's own logs.
type Config struct {
	Level  string     `yaml:"level"`  // debug, info, warn, error
	Format string     `yaml:"format"` // auto, json, console
	Output string     `yaml:"output"` // stdout, stderr or a file path
	File   FileConfig `yaml:"file"`
}

// FileConfig controls lumberjack rotation when Output is a file path.
type FileConfig struct {
	MaxSizeMB  int  `yaml:"maxSizeMB"`
	MaxBackups int  `yaml:"maxBackups"`
	MaxAgeDays int  `yaml:"maxAgeDays"`
	Compress   bool `yaml:"compress"`
}

// New builds a zap-backed Logger. The returned func flushes buffered entries.
func New(cfg Config) (Logger, func() error, error) {
	ws, tty, err := buildWriteSyncer(cfg)
	if err != nil {
		return nil, nil, err
	}

	level, err := zapcore.ParseLevel(strings.ToLower(orDefault(cfg.Level, "info")))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	core := zapcore.NewCore(buildEncoder(cfg.Format, tty), ws, level)
	zl := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	return FromZap(zl), zl.Sync, nil
}

func buildEncoder(format string, tty bool) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	switch strings.ToLower(format) {
	case "json":
		return zapcore.NewJSONEncoder(encCfg)
	case "console":
		return zapcore.NewConsoleEncoder(encCfg)
	}
	if tty {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

// buildWriteSyncer also reports whether the destination is a terminal.
func buildWriteSyncer(cfg Config) (zapcore.WriteSyncer, bool, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), isTerminal(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), isTerminal(os.Stdout), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return nil, false, fmt.Errorf("creating log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    orDefaultInt(cfg.File.MaxSizeMB, 100),
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
		LocalTime:  true,
	}
	return zapcore.AddSync(lj), false, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
