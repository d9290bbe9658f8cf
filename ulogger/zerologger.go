package ulogger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ZLoggerWrapper struct {
	zerolog.Logger
	service string
	w       io.Writer
}

func NewZeroLogger(service string, options ...Option) *ZLoggerWrapper {
	if service == "" {
		service = "crownd"
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	var w io.Writer = opts.writer
	if opts.pretty {
		w = zerolog.ConsoleWriter{Out: opts.writer, TimeFormat: time.RFC3339}
	}

	z := &ZLoggerWrapper{
		Logger: zerolog.New(w).With().
			Timestamp().
			Str("service", service).
			Logger(),
		service: service,
		w:       opts.writer,
	}

	z.SetLogLevel(opts.logLevel)

	return z
}

func (z *ZLoggerWrapper) LogLevel() int {
	return int(z.GetLevel())
}

func (z *ZLoggerWrapper) SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		z.Logger = z.Logger.Level(zerolog.DebugLevel)
	case "INFO":
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	case "WARN":
		z.Logger = z.Logger.Level(zerolog.WarnLevel)
	case "ERROR":
		z.Logger = z.Logger.Level(zerolog.ErrorLevel)
	default:
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	}
}

func (z *ZLoggerWrapper) Debugf(format string, args ...interface{}) {
	z.Debug().Msg(fmt.Sprintf(format, args...))
}

func (z *ZLoggerWrapper) Infof(format string, args ...interface{}) {
	z.Info().Msg(fmt.Sprintf(format, args...))
}

func (z *ZLoggerWrapper) Warnf(format string, args ...interface{}) {
	z.Warn().Msg(fmt.Sprintf(format, args...))
}

func (z *ZLoggerWrapper) Errorf(format string, args ...interface{}) {
	z.Error().Msg(fmt.Sprintf(format, args...))
}

func (z *ZLoggerWrapper) Fatalf(format string, args ...interface{}) {
	z.Fatal().Msg(fmt.Sprintf(format, args...))
}

func (z *ZLoggerWrapper) New(service string, options ...Option) Logger {
	return NewZeroLogger(service, options...)
}

func (z *ZLoggerWrapper) Duplicate(options ...Option) Logger {
	opts := DefaultOptions()
	opts.writer = z.w
	for _, o := range options {
		o(opts)
	}

	dup := &ZLoggerWrapper{
		Logger:  z.Logger,
		service: z.service,
		w:       opts.writer,
	}
	dup.SetLogLevel(opts.logLevel)

	return dup
}
