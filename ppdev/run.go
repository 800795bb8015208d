// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ppdev/cmd/conf"
	"github.com/ppdev/cmd/harness"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/utils"
	"github.com/ppdev/cmd/watcher"
)

var cmdRun = &Command{
	UsageLine: "run [-a project-path] [-p port] [--host host]",
	Short:     "run the dev proxy for a template",
	Long: `
Run the dev proxy for the template project in the current directory.

Requests outside the template base path are redirected to it, built files
are served locally and everything else is relayed to backendBaseURL.
Config files are watched and the proxy reloads when they change.

For example:

    pp-dev run -a ./my-template -p 3000
`,
}

func init() {
	cmdRun.RunWith = runApp
}

func runApp(c *model.CommandConfig, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := c.ProjectPath()
	localHost := net.JoinHostPort(c.Run.Host, strconv.Itoa(c.Run.Port))
	source := conf.NewSource(dir)

	h, err := harness.NewHarness(ctx, source, harness.Options{LocalHost: localHost, Dev: !c.Run.Production})
	if err != nil {
		utils.Logger.Error("Unable to load the project configuration", "project", dir, "error", err)
		return utils.NewLoggedError(err)
	}

	app := harness.NewApp(localHost, h)
	if err = app.Start(); err != nil {
		return utils.NewBuildIfError(err, "Unable to start the dev server", "addr", localHost)
	}
	fmt.Fprintf(out, "Serving %s at http://%s%s\n", h.Config().TemplateName, localHost, h.Server().Base())

	watched := make(chan error, 1)
	if c.Run.NoWatch {
		close(watched)
	} else {
		debouncer := watcher.NewDebouncer(time.Duration(c.Run.Debounce)*time.Millisecond, h, h)
		w := watcher.NewWatcher(dir, conf.WatchNames(), debouncer)
		go func() {
			watched <- w.Listen(ctx)
		}()
	}

	err = app.Wait(ctx)
	stop()
	if werr := <-watched; werr != nil {
		utils.Logger.Error("Config watcher stopped", "error", werr)
	}
	return err
}
