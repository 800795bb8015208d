// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/ppdev/cmd"
	"github.com/ppdev/cmd/model"
)

var cmdVersion = &Command{
	UsageLine: "version",
	Short:     "displays the pp-dev and Go version",
	Long: `
Displays the pp-dev and Go version.

For example:

    pp-dev version
`,
}

func init() {
	cmdVersion.RunWith = versionApp
}

// Displays the version of go and pp-dev
func versionApp(c *model.CommandConfig, out io.Writer) error {
	if c.Version.Short {
		_, err := fmt.Fprintln(out, cmd.Version)
		return err
	}
	_, err := fmt.Fprintf(out, "pp-dev %s (%s)\n\n   %s %s/%s\n\n",
		cmd.Version, cmd.BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
