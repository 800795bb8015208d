package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/inconshreveable/log15"
	"github.com/mattn/go-colorable"
	"github.com/revel/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output names understood by the log.<level>.output options. Anything else is
// treated as a file path, relative to the base path when not absolute.
const (
	OutputOff    = "off"
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// InitializeFromConfig builds a handler from the log.* options in the
// context. Each level is routed independently, e.g.
//
//	log.debug.output = off
//	log.info.output  = stdout
//	log.error.output = logs/pp-dev.log
//
// File outputs rotate according to log.maxsize (MB), log.maxage (days),
// log.maxbackups and log.compress.
func InitializeFromConfig(basePath string, c *config.Context) LogHandler {
	writers := map[string]io.Writer{}
	var handlers []log15.Handler

	for _, lvl := range []LogLevel{LvlCrit, LvlError, LvlWarn, LvlInfo, LvlDebug} {
		output := c.StringDefault("log."+lvl.String()+".output", OutputOff)
		if output == "" || output == OutputOff {
			continue
		}

		w, ok := writers[output]
		if !ok {
			w = outputWriter(basePath, output, c)
			writers[output] = w
		}

		format := log15.TerminalFormat()
		if output != OutputStdout && output != OutputStderr {
			format = log15.LogfmtFormat()
		}

		level := log15.Lvl(lvl)
		handlers = append(handlers, log15.FilterHandler(func(r *log15.Record) bool {
			return r.Lvl == level
		}, log15.StreamHandler(w, format)))
	}

	if len(handlers) == 0 {
		return log15.DiscardHandler()
	}
	return log15.MultiHandler(handlers...)
}

func outputWriter(basePath, output string, c *config.Context) io.Writer {
	switch output {
	case OutputStdout:
		return colorable.NewColorableStdout()
	case OutputStderr:
		return colorable.NewColorableStderr()
	}

	if !filepath.IsAbs(output) {
		output = filepath.Join(basePath, output)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		// Fall back to stderr rather than losing records.
		return colorable.NewColorableStderr()
	}
	return &lumberjack.Logger{
		Filename:   output,
		MaxSize:    c.IntDefault("log.maxsize", 100),
		MaxAge:     c.IntDefault("log.maxage", 14),
		MaxBackups: c.IntDefault("log.maxbackups", 3),
		Compress:   c.BoolDefault("log.compress", false),
	}
}

// MultiHandler fans records out to every handler.
func MultiHandler(handlers ...LogHandler) LogHandler {
	return log15.MultiHandler(handlers...)
}
