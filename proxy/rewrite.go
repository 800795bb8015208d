// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package proxy

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ResponseMeta is what a rule sees of a response before its body exists.
type ResponseMeta struct {
	StatusCode int
	Header     http.Header
}

// MediaType returns the lower cased media type without parameters.
func (m ResponseMeta) MediaType() string {
	ct := m.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt
}

// MatchFunc decides whether a response is rewritten. url is the request URI
// including the query.
type MatchFunc func(url string, r *http.Request, meta ResponseMeta) bool

// TransformFunc rewrites a decoded body.
type TransformFunc func(body []byte) ([]byte, error)

// Rule pairs a matcher with a transform. At most one rule applies to a
// response.
type Rule struct {
	Match     MatchFunc
	Transform TransformFunc
}

func (rule Rule) eligible(r *http.Request, meta ResponseMeta) bool {
	if rule.Match == nil || rule.Transform == nil || r.Method == http.MethodHead {
		return false
	}
	if !decodable(meta.Header.Get("Content-Encoding")) {
		return false
	}
	return rule.Match(r.URL.RequestURI(), r, meta)
}

// Apply returns resp rewritten by the rule, or resp itself when the rule does
// not match. A failing transform leaves the body as it was.
func (rule Rule) Apply(r *http.Request, resp *Response) *Response {
	if !rule.eligible(r, ResponseMeta{StatusCode: resp.StatusCode, Header: resp.Header}) {
		return resp
	}
	return rule.rewrite(r, resp)
}

func (rule Rule) rewrite(r *http.Request, resp *Response) *Response {
	encoding := contentEncoding(resp.Header)
	body, err := decode(encoding, resp.Body)
	if err != nil {
		proxyLog.Warn("Cannot decode body, passing it through", "path", r.URL.Path, "encoding", encoding, "error", err)
		return resp
	}

	out, err := rule.transform(body)
	if err != nil {
		proxyLog.Warn("Rewrite failed, passing body through", "path", r.URL.Path, "error", err)
		if encoding == "" {
			return resp
		}
		out = body
	}

	header := resp.Header.Clone()
	header.Del("Content-Encoding")
	header.Del("ETag")
	header.Set("Content-Length", strconv.Itoa(len(out)))
	return &Response{StatusCode: resp.StatusCode, Header: header, Body: out}
}

// transform runs the rule's transform, turning a panic into an error.
func (rule Rule) transform(body []byte) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, errors.Errorf("transform panicked: %v", p)
		}
	}()
	return rule.Transform(body)
}

func contentEncoding(h http.Header) string {
	enc := strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding")))
	if enc == "identity" {
		return ""
	}
	return enc
}

func decodable(encoding string) bool {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity", "gzip", "x-gzip", "deflate":
		return true
	}
	return false
}

func decode(encoding string, body []byte) ([]byte, error) {
	var rd io.ReadCloser
	var err error
	switch encoding {
	case "":
		return body, nil
	case "gzip", "x-gzip":
		rd, err = gzip.NewReader(bytes.NewReader(body))
	case "deflate":
		// Most servers send zlib framing, some send a raw stream.
		rd, err = zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			rd, err = flate.NewReader(bytes.NewReader(body)), nil
		}
	default:
		return nil, errors.Errorf("unsupported content encoding %q", encoding)
	}
	if err != nil {
		return nil, errors.Wrap(err, encoding)
	}
	defer rd.Close()
	out, err := io.ReadAll(rd)
	return out, errors.Wrap(err, encoding)
}

// RewriteResponse applies rule to whatever next writes. Eligibility is
// decided when the status is written; ineligible responses are streamed
// through untouched.
func RewriteResponse(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &rewriteWriter{ResponseWriter: w, r: r, rule: rule}
			next.ServeHTTP(rw, r)
			rw.finish()
		})
	}
}

type rewriteWriter struct {
	http.ResponseWriter
	r         *http.Request
	rule      Rule
	decided   bool
	buffering bool
	status    int
	buf       bytes.Buffer
}

func (w *rewriteWriter) WriteHeader(code int) {
	if w.decided {
		return
	}
	w.decided = true
	w.status = code
	if w.rule.eligible(w.r, ResponseMeta{StatusCode: code, Header: w.Header()}) {
		w.buffering = true
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *rewriteWriter) Write(p []byte) (int, error) {
	if !w.decided {
		w.WriteHeader(http.StatusOK)
	}
	if w.buffering {
		return w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *rewriteWriter) Flush() {
	if w.buffering {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *rewriteWriter) finish() {
	if !w.buffering {
		return
	}
	out := w.rule.rewrite(w.r, &Response{StatusCode: w.status, Header: w.Header().Clone(), Body: w.buf.Bytes()})
	h := w.ResponseWriter.Header()
	for k := range h {
		delete(h, k)
	}
	out.Write(w.ResponseWriter, w.r)
}
