// Package logger wraps log15 with the leveled, key/value logging used
// throughout pp-dev.
package logger

import (
	"fmt"
	"os"

	"github.com/inconshreveable/log15"
)

// LogLevel mirrors the log15 levels. Lower values are more severe.
type LogLevel int

const (
	LvlCrit LogLevel = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

// The level names used in the log.<level>.output options.
var levelNames = map[LogLevel]string{
	LvlCrit:  "crit",
	LvlError: "error",
	LvlWarn:  "warn",
	LvlInfo:  "info",
	LvlDebug: "debug",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel converts a level name into a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	for lvl, n := range levelNames {
		if n == name {
			return lvl, nil
		}
	}
	return LvlInfo, fmt.Errorf("unknown log level %q", name)
}

type (
	// LogHandler is the sink records are written to.
	LogHandler = log15.Handler

	// MultiLogger is the logger handed to every component.
	MultiLogger interface {
		// New returns a child logger carrying the additional context.
		New(ctx ...interface{}) MultiLogger
		SetHandler(h LogHandler)

		Debug(msg string, ctx ...interface{})
		Debugf(msg string, params ...interface{})
		Info(msg string, ctx ...interface{})
		Infof(msg string, params ...interface{})
		Warn(msg string, ctx ...interface{})
		Warnf(msg string, params ...interface{})
		Error(msg string, ctx ...interface{})
		Errorf(msg string, params ...interface{})
		Crit(msg string, ctx ...interface{})
		Critf(msg string, params ...interface{})

		// Fatal logs at crit level and exits the process.
		Fatal(msg string, ctx ...interface{})
		Fatalf(msg string, params ...interface{})
		// Panic logs at crit level and panics with the message.
		Panic(msg string, ctx ...interface{})
		Panicf(msg string, params ...interface{})
	}

	rootLogger struct {
		log15.Logger
	}
)

// New returns a logger with the given context. Children created from it share
// its handler, so a later SetHandler on the root reaches them too.
func New(ctx ...interface{}) MultiLogger {
	return &rootLogger{log15.New(ctx...)}
}

func (l *rootLogger) New(ctx ...interface{}) MultiLogger {
	return &rootLogger{l.Logger.New(ctx...)}
}

func (l *rootLogger) SetHandler(h LogHandler) {
	l.Logger.SetHandler(h)
}

func (l *rootLogger) Debugf(msg string, params ...interface{}) {
	l.Logger.Debug(fmt.Sprintf(msg, params...))
}

func (l *rootLogger) Infof(msg string, params ...interface{}) {
	l.Logger.Info(fmt.Sprintf(msg, params...))
}

func (l *rootLogger) Warnf(msg string, params ...interface{}) {
	l.Logger.Warn(fmt.Sprintf(msg, params...))
}

func (l *rootLogger) Errorf(msg string, params ...interface{}) {
	l.Logger.Error(fmt.Sprintf(msg, params...))
}

func (l *rootLogger) Critf(msg string, params ...interface{}) {
	l.Logger.Crit(fmt.Sprintf(msg, params...))
}

func (l *rootLogger) Fatal(msg string, ctx ...interface{}) {
	l.Logger.Crit(msg, ctx...)
	os.Exit(1)
}

func (l *rootLogger) Fatalf(msg string, params ...interface{}) {
	l.Fatal(fmt.Sprintf(msg, params...))
}

func (l *rootLogger) Panic(msg string, ctx ...interface{}) {
	l.Logger.Crit(msg, ctx...)
	panic(msg)
}

func (l *rootLogger) Panicf(msg string, params ...interface{}) {
	l.Panic(fmt.Sprintf(msg, params...))
}

// Discard returns a logger that drops every record. Tests use it to keep
// output quiet.
func Discard() MultiLogger {
	l := New()
	l.SetHandler(log15.DiscardHandler())
	return l
}
