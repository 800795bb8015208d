// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// Fetcher performs one upstream request. Implementations must honor ctx and
// must not read r.Context().
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*Response, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, r *http.Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	return f(ctx, r)
}

// Hop-by-hop headers, removed when relaying in either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = textproto.TrimString(sf); httpguts.ValidHeaderFieldName(sf) {
				h.Del(sf)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// HTTPFetcher relays requests to the backend with an http.Client.
// It never retries and never follows redirects.
type HTTPFetcher struct {
	Backend *url.URL
	Client  *http.Client
	Token   string // Sent as a bearer token when the request has no Authorization.
}

// NewHTTPFetcher returns a fetcher for backend. With insecure set the backend
// certificate is not verified.
func NewHTTPFetcher(backend *url.URL, insecure bool, token string) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &HTTPFetcher{
		Backend: backend,
		Token:   token,
		Client: &http.Client{
			Transport: transport,
			Timeout:   2 * time.Minute,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Target returns the backend URL for r.
func (f *HTTPFetcher) Target(r *http.Request) *url.URL {
	target := *f.Backend
	target.Path = joinPath(f.Backend.Path, r.URL.Path)
	// Keep escapes such as %2F the client sent.
	target.RawPath = joinPath(f.Backend.EscapedPath(), r.URL.EscapedPath())
	target.RawQuery = r.URL.RawQuery
	target.Fragment = ""
	return &target
}

func joinPath(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case b == "":
		return a
	}
	return strings.TrimSuffix(a, "/") + "/" + strings.TrimPrefix(b, "/")
}

func (f *HTTPFetcher) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	target := f.Target(r)
	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}
	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "build upstream request for %s", r.URL.Path)
	}
	out.ContentLength = r.ContentLength
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	keepTrailers := httpguts.HeaderValuesContainsToken(r.Header["Te"], "trailers")
	removeHopHeaders(out.Header)
	if keepTrailers {
		out.Header.Set("Te", "trailers")
	}
	// The transport negotiates gzip itself and hands back a decoded body.
	out.Header.Del("Accept-Encoding")
	out.Host = f.Backend.Host
	if r.Host != "" {
		out.Header.Set("X-Forwarded-Host", r.Host)
	}
	out.Header.Set("X-Forwarded-Proto", "http")
	if f.Token != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+f.Token)
	}

	start := time.Now()
	res, err := f.Client.Do(out)
	if err != nil {
		return nil, errors.Wrapf(err, "upstream %s %s", r.Method, target.Path)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read upstream %s %s", r.Method, target.Path)
	}
	header := res.Header.Clone()
	removeHopHeaders(header)
	if res.Uncompressed {
		header.Del("Content-Encoding")
		header.Del("Content-Length")
	}
	proxyLog.Debug("Upstream", "method", r.Method, "path", target.Path,
		"status", res.StatusCode, "bytes", len(data), "elapsed", time.Since(start))
	return &Response{StatusCode: res.StatusCode, Header: header, Body: data}, nil
}

// FetchHandler serves every request straight from f. Transport failures
// become 502 Bad Gateway.
func FetchHandler(f Fetcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := f.Fetch(r.Context(), r)
		if err != nil {
			badGateway(w, r, err)
			return
		}
		resp.Write(w, r)
	})
}

func badGateway(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		return
	}
	proxyLog.Error("Upstream request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusBadGateway)
}
