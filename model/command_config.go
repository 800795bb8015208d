package model

import (
	"os"
	"path/filepath"
)

// The commands understood by pp-dev.
const (
	RUN COMMAND = iota + 1
	CONFIG
	VERSION
)

type (
	// The pp-dev command type
	COMMAND int

	// The Command config for the line input
	CommandConfig struct {
		Index   COMMAND // The index
		Verbose bool    `short:"v" long:"debug" description:"If set the logger is set to verbose"`
		LogFile string  `long:"log-file" description:"Also write the log to this file (rotated)"`
		Ini     string  `long:"ini" description:"Read options from this ini file before the command line" no-ini:"true"`
		// The run command
		Run struct {
			ProjectPath string `short:"a" long:"project-path" description:"Path to the template project" default:"."`
			Host        string `long:"host" description:"The host name used in rewritten URLs and to listen on" default:"localhost"`
			Port        int    `short:"p" long:"port" description:"The port to listen" default:"3000"`
			Debounce    int    `long:"debounce" description:"Milliseconds to wait after the last config change before reloading" default:"500"`
			NoWatch     bool   `short:"n" long:"no-watch" description:"Do not watch config files for changes"`
			Production  bool   `long:"production" description:"Serve under the production base path (/p/{template})"`
		} `command:"run"`
		// The config command
		Config struct {
			ProjectPath string `short:"a" long:"project-path" description:"Path to the template project" default:"."`
		} `command:"config"`
		// The version command
		Version struct {
			Short bool `short:"s" long:"short" description:"Print only the version number"`
		} `command:"version"`
	}
)

// ProjectPath returns the absolute project directory for the active command.
func (c *CommandConfig) ProjectPath() string {
	p := "."
	switch c.Index {
	case RUN:
		p = c.Run.ProjectPath
	case CONFIG:
		p = c.Config.ProjectPath
	}
	if p == "" {
		p = "."
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	wd, _ := os.Getwd()
	return wd
}
