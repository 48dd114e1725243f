package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	Service string
	Level   zerolog.Level
	Output  io.Writer
	Console bool
}

// Logger writes one JSON line per event: ts, level, action, err, fields and,
// for request-scoped loggers, req_id/ip/method/path.
type Logger struct {
	base zerolog.Logger
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "ts"

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	return &Logger{base: ctx.Logger().Level(opts.Level)}
}

// Nop discards everything; used where no logger is wired.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// With returns a child logger carrying the given top-level fields.
func (l *Logger) With(fields map[string]any) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{base: l.base.With().Fields(fields).Logger()}
}

// FromRequest attaches request metadata the way every handler log line needs it.
func (l *Logger) FromRequest(c *fiber.Ctx) *Logger {
	if l == nil {
		return Nop()
	}
	if c == nil {
		return l
	}
	ctx := l.base.With().
		Str("ip", c.IP()).
		Str("method", c.Method()).
		Str("path", c.Path())
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		ctx = ctx.Str("req_id", rid)
	}
	return &Logger{base: ctx.Logger()}
}

func (l *Logger) write(ev *zerolog.Event, action string, err error, fields map[string]any) {
	if ev == nil {
		return
	}
	ev = ev.Str("action", action)
	if err != nil {
		ev = ev.Str("err", err.Error())
	}
	if len(fields) > 0 {
		ev = ev.Interface("fields", fields)
	}
	ev.Send()
}

func (l *Logger) Debug(action string, fields map[string]any) {
	if l == nil {
		return
	}
	l.write(l.base.Debug(), action, nil, fields)
}

func (l *Logger) Info(action string, fields map[string]any) {
	if l == nil {
		return
	}
	l.write(l.base.Info(), action, nil, fields)
}

// Audit records business events (sales, stock changes) regardless of level.
func (l *Logger) Audit(action string, fields map[string]any) {
	if l == nil {
		return
	}
	l.write(l.base.Log().Str(zerolog.LevelFieldName, "audit"), action, nil, fields)
}

func (l *Logger) Security(action string, fields map[string]any) {
	if l == nil {
		return
	}
	l.write(l.base.Warn(), action, nil, fields)
}

func (l *Logger) Warn(action string, err error, fields map[string]any) {
	if l == nil {
		return
	}
	l.write(l.base.Warn(), action, err, fields)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	if l == nil {
		return
	}
	l.write(l.base.Error(), action, err, fields)
}

// AccessLog is the request log middleware (status + latency per request).
func AccessLog(l *Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		l.FromRequest(c).Info("http.access", map[string]any{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		return err
	}
}
