package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

/*
LogConfiguration describes the logger. It can be loaded from yaml file, the
CLI allows to override individual fields with flags.
*/
type LogConfiguration struct {
	// one of DEBUG, INFO, WARN, ERROR; defaults to INFO
	Level string `yaml:"defaultLevel"`
	// one of: text, json, console, wallet, ecs; defaults to text
	Format string `yaml:"format"`
	// file path or one of the special values: stdout, stderr, discard
	OutputPath string `yaml:"outputPath"`
	// Go time format string or "none" to drop the timestamp
	TimeFormat string `yaml:"timeFormat"`
	ShowSource bool   `yaml:"showSource"`

	writer io.Writer
}

/*
New builds logger according to the configuration "cfg". Zero value of the
configuration is valid and results in INFO level text logger to stderr.
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	if err := cfg.initWriter(); err != nil {
		return nil, fmt.Errorf("initializing log writer: %w", err)
	}
	h, err := cfg.handler(cfg.writer)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

/*
WithWriter returns copy of the configuration which logs into "w" instead
of OutputPath.
*/
func (cfg LogConfiguration) WithWriter(w io.Writer) *LogConfiguration {
	cfg.writer = w
	return &cfg
}

func (cfg *LogConfiguration) initWriter() error {
	if cfg.writer != nil {
		return nil
	}
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		cfg.writer = os.Stderr
	case "stdout":
		cfg.writer = os.Stdout
	case "discard":
		cfg.writer = io.Discard
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0700); err != nil {
			return fmt.Errorf("creating directory for log file: %w", err)
		}
		f, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		cfg.writer = f
	}
	return nil
}

func (cfg *LogConfiguration) handler(out io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		AddSource: cfg.ShowSource,
		Level:     cfg.level(),
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opts.ReplaceAttr = timeFormatter(cfg.TimeFormat)
		return slog.NewTextHandler(out, opts), nil
	case "json":
		opts.ReplaceAttr = timeFormatter(cfg.TimeFormat)
		return slog.NewJSONHandler(out, opts), nil
	case "console":
		timeFmt := cfg.TimeFormat
		if timeFmt == "" {
			timeFmt = "15:04:05.0000"
		}
		opts.ReplaceAttr = chain(timeFormatter(timeFmt), dataAsJSON)
		return slog.NewTextHandler(out, opts), nil
	case "wallet":
		opts.AddSource = false
		opts.ReplaceAttr = walletAttrs
		return slog.NewTextHandler(out, opts), nil
	case "ecs":
		opts.ReplaceAttr = ecsAttrs
		return slog.NewJSONHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) level() slog.Level {
	var lvl slog.Level
	if cfg.Level == "" {
		return slog.LevelInfo
	}
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
