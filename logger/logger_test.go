package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppdev/cmd/logger"
	"github.com/revel/config"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	a := assert.New(t)
	lvl, err := logger.ParseLevel("warn")
	a.Nil(err)
	a.Equal(logger.LvlWarn, lvl)

	_, err = logger.ParseLevel("loud")
	a.NotNil(err)
	a.Equal("debug", logger.LvlDebug.String())
}

// Records routed to a file output end up in that file; levels that are off
// are dropped.
func TestInitializeFromConfigFileOutput(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()

	c := config.NewContext()
	c.SetOption("log.info.output", "logs/pp-dev.log")
	c.SetOption("log.error.output", "logs/pp-dev.log")
	c.SetOption("log.debug.output", "off")

	l := logger.New("section", "test")
	l.SetHandler(logger.InitializeFromConfig(dir, c))
	l.Info("proxy started", "port", 3000)
	l.Debug("should not appear")
	l.Errorf("upstream failed: %s", "timeout")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "pp-dev.log"))
	a.Nil(err)
	content := string(data)
	a.True(strings.Contains(content, "proxy started"))
	a.True(strings.Contains(content, "port=3000"))
	a.True(strings.Contains(content, "upstream failed: timeout"))
	a.False(strings.Contains(content, "should not appear"))
}

func TestChildLoggerFollowsParentHandler(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()

	parent := logger.New()
	child := parent.New("section", "child")

	c := config.NewContext()
	c.SetOption("log.warn.output", filepath.Join(dir, "warn.log"))
	parent.SetHandler(logger.InitializeFromConfig(dir, c))

	child.Warn("late handler", "k", "v")
	data, err := os.ReadFile(filepath.Join(dir, "warn.log"))
	a.Nil(err)
	a.True(strings.Contains(string(data), "section=child"))
}
