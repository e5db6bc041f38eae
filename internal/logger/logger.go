package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "NONE"
	}
}

// ParseLevel maps debug|info|warn|error|none to a Level. Anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "none":
		return LevelNone
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
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

// Context carries the optional annotations of a single log call.
type Context struct {
	TestName   string
	PageURL    string
	Action     string
	Duration   time.Duration
	RetryCount int
	Err        error
}

// Logger writes levelled, contextual lines. The zero value is not usable; use
// New, FromEnv or Default.
type Logger struct {
	mu     sync.Mutex
	level  Level
	debug  bool
	env    string
	out    io.Writer
	errOut io.Writer
	sink   *zerolog.Logger
	now    func() time.Time
}

type Option func(*Logger)

func WithLevel(level Level) Option {
	return func(l *Logger) { l.level = level }
}

// WithDebug enables debug output. Debug lines also need LevelDebug.
func WithDebug(enabled bool) Option {
	return func(l *Logger) { l.debug = enabled }
}

func WithEnvironment(env string) Option {
	return func(l *Logger) { l.env = env }
}

// WithOutput sets the writers for debug/info and warn/error lines.
func WithOutput(out, errOut io.Writer) Option {
	return func(l *Logger) {
		l.out = out
		l.errOut = errOut
	}
}

// WithJSONSink mirrors every emitted line as a JSON event to w.
func WithJSONSink(w io.Writer) Option {
	return func(l *Logger) {
		z := zerolog.New(w).With().Timestamp().Logger()
		l.sink = &z
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func New(opts ...Option) *Logger {
	l := &Logger{
		level:  LevelInfo,
		env:    "local",
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// FromEnv resolves LOG_LEVEL, ENABLE_DEBUG_LOGS and TEST_ENV once and builds a
// Logger. Options are applied after the environment.
func FromEnv(opts ...Option) *Logger {
	env := os.Getenv("TEST_ENV")
	if env == "" {
		env = "local"
	}
	base := []Option{
		WithLevel(ParseLevel(os.Getenv("LOG_LEVEL"))),
		WithDebug(os.Getenv("ENABLE_DEBUG_LOGS") == "true"),
		WithEnvironment(env),
	}
	return New(append(base, opts...)...)
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide logger, built from the environment on
// first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = FromEnv()
	})
	return defaultLogger
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Environment() string {
	return l.env
}

// AttachJSONSink starts mirroring to w. Pass nil to stop.
func (l *Logger) AttachJSONSink(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil {
		l.sink = nil
		return
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	l.sink = &z
}

func (l *Logger) ShouldLog(level Level) bool {
	return ShouldLog(level, l.level, l.debug)
}

func (l *Logger) Debug(msg string, c ...Context) { l.log(LevelDebug, msg, c) }

func (l *Logger) Info(msg string, c ...Context) { l.log(LevelInfo, msg, c) }

func (l *Logger) Warn(msg string, c ...Context) { l.log(LevelWarn, msg, c) }

func (l *Logger) Error(msg string, c ...Context) { l.log(LevelError, msg, c) }

func (l *Logger) log(level Level, msg string, cs []Context) {
	if l == nil || !l.ShouldLog(level) {
		return
	}
	// A log call never fails its caller.
	defer func() { _ = recover() }()

	var c Context
	if len(cs) > 0 {
		c = cs[0]
	}

	line := Format(l.now(), level, l.env, msg, c)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.out
	if level >= LevelWarn {
		w = l.errOut
	}
	if w != nil {
		_, _ = io.WriteString(w, line+"\n")
	}
	if l.sink != nil {
		l.mirror(level, msg, c)
	}
}

func (l *Logger) mirror(level Level, msg string, c Context) {
	ev := l.sink.WithLevel(level.zerolog()).Str("env", l.env)
	if c.TestName != "" {
		ev = ev.Str("test", c.TestName)
	}
	if c.Action != "" {
		ev = ev.Str("action", c.Action)
	}
	if c.Duration > 0 {
		ev = ev.Int64("duration_ms", c.Duration.Milliseconds())
	}
	if c.RetryCount > 0 {
		ev = ev.Int("retry", c.RetryCount)
	}
	if c.PageURL != "" {
		ev = ev.Str("url", c.PageURL)
	}
	if c.Err != nil {
		ev = ev.Str("error", errText(c.Err))
	}
	ev.Msg(msg)
}
