// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// Package harness keeps the dev proxy running across configuration changes.
// A reload builds a complete new pipeline and swaps it in between requests;
// requests already running finish on the pipeline they started on.
package harness

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/ppdev/cmd/conf"
	"github.com/ppdev/cmd/logger"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/proxy"
	"github.com/ppdev/cmd/utils"
)

// Options are the process settings that survive reloads.
type Options struct {
	LocalHost string // host:port used in rewritten URLs.
	Dev       bool
	// Fetcher replaces the HTTP upstream, for tests.
	Fetcher proxy.Fetcher
}

// Harness is the http.Handler of the dev server.
type Harness struct {
	source *conf.Source
	opts   Options
	log    logger.MultiLogger

	mu      sync.RWMutex
	server  *proxy.Server
	config  *model.NormalizedConfig
	result  *conf.Result
	lastErr *utils.SourceError
}

// NewHarness loads the configuration and builds the first pipeline. Unlike
// a reload, a failure here is returned.
func NewHarness(ctx context.Context, source *conf.Source, opts Options) (*Harness, error) {
	h := &Harness{
		source: source,
		opts:   opts,
		log:    utils.Logger.New("section", "harness"),
	}
	if err := h.load(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Harness) load(ctx context.Context) error {
	cfg, result, err := h.source.Load(ctx)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		h.log.Warn("Config candidate skipped", "file", w.Path, "error", w.Error())
	}

	server := proxy.NewServer(proxy.Options{
		Config:     cfg,
		ProjectDir: h.source.Dir(),
		LocalHost:  h.opts.LocalHost,
		Dev:        h.opts.Dev,
		Fetcher:    h.opts.Fetcher,
		Info:       h.info,
		Log:        h.log.New("template", cfg.TemplateName),
	})

	h.mu.Lock()
	old := h.server
	h.server, h.config, h.result, h.lastErr = server, cfg, result, nil
	h.mu.Unlock()

	if old != nil && old.Cache() != nil {
		old.Cache().Purge()
	}
	h.log.Info("Configuration loaded", "source", sourceName(result), "template", cfg.TemplateName,
		"base", server.Base(), "backend", cfg.BackendBaseURL, "cache", cfg.EnableProxyCache)
	return nil
}

func sourceName(r *conf.Result) string {
	if r == nil || r.Source == "" {
		return "defaults"
	}
	return r.Source
}

// Refresh reloads the configuration. On failure the running pipeline stays
// in place and the error is returned.
func (h *Harness) Refresh() *utils.SourceError {
	err := h.load(context.Background())
	if err == nil {
		return nil
	}
	var se *utils.SourceError
	if !errors.As(err, &se) {
		se = utils.NewError("config", "Config Error", "", err.Error())
	}
	h.mu.Lock()
	h.lastErr = se
	h.mu.Unlock()
	h.log.Error("Reload failed, still serving the previous configuration", "error", err)
	return se
}

// Invalidate drops the cached configuration.
func (h *Harness) Invalidate() {
	h.source.Invalidate()
}

// Server returns the current pipeline.
func (h *Harness) Server() *proxy.Server {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.server
}

// Config returns the configuration of the current pipeline.
func (h *Harness) Config() *model.NormalizedConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// LastError returns the error of the latest failed reload, nil once a
// reload succeeds.
func (h *Harness) LastError() *utils.SourceError {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

func (h *Harness) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Server().ServeHTTP(w, r)
}

type info struct {
	Result    *conf.Result    `json:"resolved"`
	Cache     conf.CacheStats `json:"cache"`
	LastError string          `json:"lastError,omitempty"`
}

func (h *Harness) info() interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i := info{Result: h.result, Cache: h.source.Stats()}
	if h.lastErr != nil {
		i.LastError = h.lastErr.Error()
	}
	return i
}
