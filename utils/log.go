package utils

import (
	"github.com/ppdev/cmd/logger"
	"github.com/revel/config"
)

// Logger is the process wide logger. Components derive their own with
// Logger.New("section", ...).
var Logger = logger.New()

// InitLogger routes the levels at or above logLevel to the terminal, errors
// and worse to stderr. When logFile is set every enabled level is also
// written there through the rotating file output.
func InitLogger(basePath string, logLevel logger.LogLevel, logFile ...string) {
	newContext := config.NewContext()
	if logLevel == logger.LvlDebug {
		newContext.SetOption("log.debug.output", "stdout")
	} else {
		newContext.SetOption("log.debug.output", "off")
	}
	if logLevel >= logger.LvlInfo {
		newContext.SetOption("log.info.output", "stdout")
	} else {
		newContext.SetOption("log.info.output", "off")
	}

	newContext.SetOption("log.warn.output", "stderr")
	newContext.SetOption("log.error.output", "stderr")
	newContext.SetOption("log.crit.output", "stderr")

	handler := logger.InitializeFromConfig(basePath, newContext)
	if len(logFile) > 0 && logFile[0] != "" {
		fileContext := config.NewContext()
		for lvl := logger.LvlCrit; lvl <= logLevel; lvl++ {
			fileContext.SetOption("log."+lvl.String()+".output", logFile[0])
		}
		handler = logger.MultiHandler(handler, logger.InitializeFromConfig(basePath, fileContext))
	}
	Logger.SetHandler(handler)
}

// LoggedError marks an error that has already been reported to the user, so
// the top level recover does not report it a second time.
type LoggedError struct{ error }

func NewLoggedError(err error) *LoggedError {
	return &LoggedError{err}
}

func (e *LoggedError) Unwrap() error {
	return e.error
}
