// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ppdev/cmd/conf"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/utils"
	"gopkg.in/yaml.v3"
)

var cmdConfig = &Command{
	UsageLine: "config [-a project-path]",
	Short:     "print the effective configuration",
	Long: `
Print the configuration pp-dev would run with, after defaults are applied,
together with the file it came from and any config file that was skipped.

For example:

    pp-dev config -a ./my-template
`,
}

func init() {
	cmdConfig.RunWith = configApp
}

func configApp(c *model.CommandConfig, out io.Writer) error {
	dir := c.ProjectPath()
	if !utils.DirExists(dir) {
		return fmt.Errorf("%w: %s", model.ErrNoProject, dir)
	}

	source := conf.NewSource(dir)
	cfg, result, err := source.Load(context.Background())
	if result != nil {
		printSource(out, dir, result)
	}
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func printSource(out io.Writer, dir string, r *conf.Result) {
	if r.Source == "" {
		fmt.Fprintln(out, "# source: defaults (no config file found)")
	} else {
		modified := utils.ModTime(filepath.Join(dir, r.Source)).Format(time.RFC3339)
		fmt.Fprintf(out, "# source: %s (%s, modified %s)\n", r.Source, r.Kind, modified)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "# skipped: %s\n", w.Error())
		for _, line := range w.ContextSource() {
			marker := " "
			if line.IsError {
				marker = ">"
			}
			fmt.Fprintf(out, "#   %s %3d | %s\n", marker, line.Line, line.Source)
		}
	}
}
