// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// The command line tool for developing templates against a remote backend.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/agtorre/gocolorize"
	"github.com/jessevdk/go-flags"
	"github.com/ppdev/cmd/logger"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/utils"
)

// Command structure cribbed from the genius organization of the "go" command.
type Command struct {
	RunWith                func(c *model.CommandConfig, out io.Writer) error
	UsageLine, Short, Long string
}

// Name returns command name from usage line
func (cmd *Command) Name() string {
	name := cmd.UsageLine
	i := strings.Index(name, " ")
	if i >= 0 {
		name = name[:i]
	}
	return name
}

// The commands, indexed by model.COMMAND.
var commands = []*Command{
	nil, // Safety net, prevent missing index from running
	cmdRun,
	cmdConfig,
	cmdVersion,
}

func main() {
	if runtime.GOOS == "windows" {
		gocolorize.SetPlain(true)
	}
	wd, _ := os.Getwd()
	utils.InitLogger(wd, logger.LvlError)

	c := &model.CommandConfig{}
	if err := parseArgs(c, os.Args[1:]); err != nil {
		println("Command line error:", err.Error())
		os.Exit(1)
	}

	// Switch based on the verbose flag
	level := logger.LvlInfo
	if c.Verbose {
		level = logger.LvlDebug
	}
	utils.InitLogger(wd, level, c.LogFile)

	cmd := commands[c.Index]
	if c.Index != model.VERSION {
		fmt.Fprint(os.Stdout, gocolorize.NewColor("blue").Paint(header))
	}
	utils.Logger.Debug("pp-dev executing", "command", cmd.Short)
	if err := cmd.RunWith(c, os.Stdout); err != nil {
		var logged *utils.LoggedError
		if !errors.As(err, &logged) {
			utils.Logger.Error("Command failed", "command", cmd.Name(), "error", err)
		}
		os.Exit(1)
	}
}

// parseArgs fills c from an optional ini file and then the command line, so
// the command line wins.
func parseArgs(c *model.CommandConfig, args []string) error {
	parser := flags.NewParser(c, flags.HelpFlag|flags.PassDoubleDash)
	if ini := iniFile(args); ini != "" {
		if err := flags.NewIniParser(parser).ParseFile(ini); err != nil {
			return fmt.Errorf("unable to load ini %s: %w", ini, err)
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if perr, ok := err.(*flags.Error); ok && perr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, perr.Message)
			os.Exit(0)
		}
		parser.WriteHelp(os.Stdout)
		return err
	}

	switch parser.Active.Name {
	case "run":
		c.Index = model.RUN
	case "config":
		c.Index = model.CONFIG
	case "version":
		c.Index = model.VERSION
	}
	return nil
}

// iniFile finds the --ini option ahead of the real parse.
func iniFile(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == "--ini" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "--ini="):
			return strings.TrimPrefix(arg, "--ini=")
		}
	}
	return ""
}

const header = `~
~ pp-dev! local template development proxy
~
`
