// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package harness

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/ppdev/cmd/utils"
)

// App runs the HTTP listener for the dev server. The handler is fixed for
// the life of the listener; reloads happen behind it.
type App struct {
	Addr    string
	Handler http.Handler
	server  *http.Server
	done    chan error
}

// NewApp returns an app listening on addr.
func NewApp(addr string, handler http.Handler) *App {
	return &App{Addr: addr, Handler: handler}
}

// Start binds the listener and serves in the background. It returns once the
// server is accepting connections.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", a.Addr)
	}
	a.Addr = ln.Addr().String()
	a.server = &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 30 * time.Second,
	}
	a.done = make(chan error, 1)
	go func() {
		err := a.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.done <- err
	}()
	utils.Logger.Info("Dev server is listening", "addr", a.Addr)
	return nil
}

// Wait blocks until ctx is done or the server fails, then shuts it down.
func (a *App) Wait(ctx context.Context) error {
	select {
	case err := <-a.done:
		return err
	case <-ctx.Done():
	}
	return a.Kill()
}

// Kill shuts the server down, giving open requests a few seconds to finish.
func (a *App) Kill() error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	utils.Logger.Info("Stopping dev server", "addr", a.Addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-a.done
}
