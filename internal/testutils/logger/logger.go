/*
Package logger provides loggers for tests. Log output is written into the
test log (t.Log) so it is only shown for failing tests or when running in
verbose mode.
*/
package logger

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/octopus-network/relay-client/logger"
)

/*
New returns DEBUG level logger which writes into test log.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, slog.LevelDebug)
}

/*
NewLvl returns logger of given level which writes into test log.
*/
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	cfg := logger.LogConfiguration{
		Level:      level.String(),
		Format:     "console",
		TimeFormat: "15:04:05.0000",
	}
	log, err := logger.New(cfg.WithWriter(&testLogWriter{t: t}))
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return log
}

/*
LoggerBuilder returns logger factory func suitable for the CLI, ignoring the
configuration and always returning the test logger.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) { return New(t), nil }
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type testLogWriter struct {
	m sync.Mutex
	t testing.TB
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.m.Lock()
	defer w.m.Unlock()
	// test might have finished while some goroutine still logs
	defer func() { _ = recover() }()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
