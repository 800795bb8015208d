// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package proxy

import (
	"net/http"
	"strings"
)

// BasePath returns the path the template is served under, with a trailing
// slash. Development servers use /pl/ for v7 templates and /pt/ otherwise;
// template-less apps and production use /p/.
func BasePath(templateName string, templateLess, v7Features, dev bool) string {
	prefix := "/p/"
	if dev && !templateLess {
		if v7Features {
			prefix = "/pl/"
		} else {
			prefix = "/pt/"
		}
	}
	return prefix + templateName + "/"
}

// DefaultPassThrough lists the path prefixes that are never redirected:
// dev tooling, and the backend routes the proxy relays. A prefix ending in
// a slash matches everything below it, any other matches itself and its
// sub-paths.
var DefaultPassThrough = []string{
	"/@vite/",
	"/@fs/",
	"/@id/",
	"/node_modules/",
	"/__pp-dev/",
	"/api/",
	"/data/",
	"/auth/",
	"/css/",
	"/js/",
	"/images/",
	"/img/",
	"/fonts/",
	"/favicon.ico",
	"/login",
	"/logout",
}

// Redirector sends every request outside Base to Base.
type Redirector struct {
	Base        string
	PassThrough []string
}

// NewRedirector returns a redirector for base with the default
// pass-through list.
func NewRedirector(base string) Redirector {
	return Redirector{Base: base, PassThrough: DefaultPassThrough}
}

// Location returns the base with a trailing slash.
func (rd Redirector) Location() string {
	if strings.HasSuffix(rd.Base, "/") {
		return rd.Base
	}
	return rd.Base + "/"
}

// Inside reports whether p is the base itself or below it. /p/t-2 is not
// inside /p/t.
func (rd Redirector) Inside(p string) bool {
	base := strings.TrimSuffix(rd.Location(), "/")
	return p == base || strings.HasPrefix(p, base+"/")
}

// PassesThrough reports whether p is exempt from redirection.
func (rd Redirector) PassesThrough(p string) bool {
	for _, prefix := range rd.PassThrough {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(p, prefix) {
				return true
			}
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// Handler wraps next.
func (rd Redirector) Handler(next http.Handler) http.Handler {
	location := rd.Location()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rd.Inside(r.URL.Path) || rd.PassesThrough(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		proxyLog.Debug("Redirecting to base", "path", r.URL.Path, "location", location)
		Redirect(w, location, http.StatusFound)
	})
}

// Redirect writes a redirect to location. A zero code means 302.
func Redirect(w http.ResponseWriter, location string, code int) {
	if code == 0 {
		code = http.StatusFound
	}
	w.Header().Set("Location", location)
	w.WriteHeader(code)
}
