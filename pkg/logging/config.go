package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "KRELAY_LOG_LEVEL"
	EnvLogPretty    = "KRELAY_LOG_PRETTY"
	EnvLogTimestamp = "KRELAY_LOG_TIMESTAMP"
	EnvLogNoColor   = "KRELAY_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Options controls the process-wide logger
type Options struct {
	Level     zerolog.Level
	Pretty    bool
	NoColor   bool
	Timestamp bool
	Output    io.Writer // defaults to stderr
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(DefaultOptions(ProfileRuntime))
}

func ConfigureTests() {
	Configure(DefaultOptions(ProfileTest))
}

// Configure installs the global logger. Only the first call has an effect;
// environment variables override opts.
func Configure(opts Options) {
	configureOnce.Do(func() {
		applyEnvOverrides(&opts)
		zerolog.SetGlobalLevel(opts.Level)
		log.Logger = New(opts)
	})
}

func DefaultOptions(profile Profile) Options {
	switch profile {
	case ProfileTest:
		return Options{Level: zerolog.DebugLevel, Pretty: true, NoColor: true}
	default:
		return Options{Level: zerolog.InfoLevel, Pretty: true, Timestamp: true}
	}
}

// New builds a logger from opts without touching global state
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.RFC3339,
		}
	}

	ctx := zerolog.New(out).Level(opts.Level).With()
	if opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogPretty)); ok {
		opts.Pretty = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		opts.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level. ok is false for empty or
// unrecognized names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
