// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ppdev/cmd/logger"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/utils"
)

// StatusPath serves a JSON description of the running server.
const StatusPath = "/__pp-dev/status"

// PublicDir holds static files served next to the build output.
const PublicDir = "public"

// Options configure a Server.
type Options struct {
	Config     *model.NormalizedConfig
	ProjectDir string
	LocalHost  string // host:port used in rewritten URLs.
	Dev        bool
	// Fetcher overrides the HTTP fetcher built from the backend URL.
	Fetcher Fetcher
	// Info is added to the status document under "config".
	Info func() interface{}
	Log  logger.MultiLogger
}

// Server is the assembled request pipeline for one configuration:
// redirect, local template files, cache, upstream.
type Server struct {
	cfg     *model.NormalizedConfig
	base    string
	cache   *Cache
	info    func() interface{}
	log     logger.MultiLogger
	handler http.Handler
}

// NewServer assembles the pipeline.
func NewServer(o Options) *Server {
	s := &Server{
		cfg:  o.Config,
		base: BasePath(o.Config.TemplateName, o.Config.TemplateLess, o.Config.V7Features, o.Dev),
		info: o.Info,
		log:  o.Log,
	}
	if s.log == nil {
		s.log = proxyLog.New("template", o.Config.TemplateName)
	}

	var rule Rule
	fetcher := o.Fetcher
	backend := o.Config.BackendURL()
	if backend != nil {
		rule = HostURLRule(backend.Host, o.LocalHost)
		if fetcher == nil {
			fetcher = NewHTTPFetcher(backend, o.Config.DisableSSLValidation, o.Config.PersonalAccessToken)
		}
	}

	var upstream http.Handler
	if fetcher == nil {
		upstream = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no backendBaseURL configured", http.StatusBadGateway)
		})
	} else {
		fetch := FetcherFunc(func(ctx context.Context, r *http.Request) (*Response, error) {
			resp, err := fetcher.Fetch(ctx, r)
			if err != nil || backend == nil {
				return resp, err
			}
			return rewriteLocation(backend.Host, o.LocalHost, rule.Apply(r, resp)), nil
		})
		if o.Config.EnableProxyCache {
			s.cache = NewCache(fetch, o.Config.CacheTTL(), WithCacheLogger(s.log.New("component", "cache")))
			upstream = s.cache
		} else {
			upstream = FetchHandler(fetch)
		}
	}

	roots := []string{
		filepath.Join(o.ProjectDir, o.Config.OutDir),
		filepath.Join(o.ProjectDir, PublicDir),
	}
	local := &localFiles{base: s.base, roots: roots, next: upstream, rewrite: RewriteResponse(rule)}
	s.handler = NewRedirector(s.base).Handler(local)
	return s
}

// Base returns the base path, with a trailing slash.
func (s *Server) Base() string {
	return s.base
}

// Cache returns the proxy cache, nil when caching is disabled.
func (s *Server) Cache() *Cache {
	return s.cache
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == StatusPath {
		s.serveStatus(w)
		return
	}
	s.handler.ServeHTTP(w, r)
}

// Status is the document served at StatusPath.
type Status struct {
	Template string                  `json:"template"`
	Base     string                  `json:"base"`
	Backend  string                  `json:"backend,omitempty"`
	Cache    *CacheStats             `json:"cache,omitempty"`
	Config   interface{}             `json:"config,omitempty"`
	Settings *model.NormalizedConfig `json:"settings"`
}

// Status describes the server.
func (s *Server) Status() Status {
	st := Status{
		Template: s.cfg.TemplateName,
		Base:     s.base,
		Backend:  s.cfg.BackendBaseURL,
		Settings: s.cfg,
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		st.Cache = &stats
	}
	if s.info != nil {
		st.Config = s.info()
	}
	return st
}

func (s *Server) serveStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Status()); err != nil {
		s.log.Error("Failed to encode status", "error", err)
	}
}

// localFiles serves files from the build output below the base path and
// hands everything else to next.
type localFiles struct {
	base    string
	roots   []string
	next    http.Handler
	rewrite func(http.Handler) http.Handler
}

func (l *localFiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		l.next.ServeHTTP(w, r)
		return
	}
	file := l.find(r.URL.Path)
	if file == "" {
		l.next.ServeHTTP(w, r)
		return
	}
	l.rewrite(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveFile(w, r, file)
	})).ServeHTTP(w, r)
}

func (l *localFiles) find(p string) string {
	base := strings.TrimSuffix(l.base, "/")
	if p != base && !strings.HasPrefix(p, base+"/") {
		return ""
	}
	rel := strings.TrimPrefix(p, base)
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}
	rel = path.Clean("/" + rel)
	for _, root := range l.roots {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if utils.Exists(full) {
			return full
		}
	}
	return ""
}

func serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := os.Open(name)
	if err != nil {
		http.Error(w, "cannot open "+filepath.Base(name), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		http.Error(w, "cannot stat "+filepath.Base(name), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
