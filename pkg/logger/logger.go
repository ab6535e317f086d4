// Package logger provides structured JSON logging for the tracker server,
// built on zerolog but hidden behind a small interface so components never
// import zerolog directly and can be handed a no-op logger in tests.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls where and how log output is produced. It is loaded as
// part of the server's top-level Config (see pkg/config).
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// DefaultConfig returns the logging configuration used when none is given.
func DefaultConfig() Config {
	return Config{Level: "info", Output: "stdout"}
}

// ErrorKind classifies a logged failure for filtering and alerting. It is
// attached to a log event as a plain field and never drives control flow;
// control flow stays on the concrete sentinel error or the codec's own
// reported result.
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindParse         ErrorKind = "parse"
	KindHandshake     ErrorKind = "handshake"
	KindPing          ErrorKind = "ping"
	KindDevice        ErrorKind = "device"
	KindInterfaceEnum ErrorKind = "interface_enum"
)

// Logger is the interface every component in this repo depends on instead
// of zerolog directly.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) Logger
	WithFields(fields map[string]interface{}) Logger
}

type zerologLogger struct {
	z zerolog.Logger
}

// New builds a Logger from Config. A zero Config logs at info level to
// stdout with RFC3339 timestamps.
func New(cfg Config) Logger {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	switch {
	case cfg.Debug:
		level = zerolog.DebugLevel
	case cfg.Level != "":
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	timeFormat := time.RFC3339
	if cfg.TimeFormat != "" {
		timeFormat = cfg.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	z := zerolog.New(output).Level(level).With().Timestamp().Logger()

	return &zerologLogger{z: z}
}

// NewNop returns a Logger that discards everything, for use in tests that
// don't want to assert on log output.
func NewNop() Logger {
	return &zerologLogger{z: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

func (l *zerologLogger) Trace() *zerolog.Event { return l.z.Trace() }
func (l *zerologLogger) Debug() *zerolog.Event { return l.z.Debug() }
func (l *zerologLogger) Info() *zerolog.Event  { return l.z.Info() }
func (l *zerologLogger) Warn() *zerolog.Event  { return l.z.Warn() }
func (l *zerologLogger) Error() *zerolog.Event { return l.z.Error() }
func (l *zerologLogger) With() zerolog.Context { return l.z.With() }

func (l *zerologLogger) WithComponent(component string) Logger {
	return &zerologLogger{z: l.z.With().Str("component", component).Logger()}
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}

	return &zerologLogger{z: ctx.Logger()}
}
