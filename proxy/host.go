// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package proxy

import (
	"bytes"
	"net/http"
	"path"
	"strings"
)

// ReplaceHost rewrites every http:// and https:// URL on backendHost to
// http://localHost. The input is returned as is when nothing matches.
func ReplaceHost(backendHost, localHost string, body []byte) []byte {
	if len(body) == 0 || backendHost == "" || !bytes.Contains(body, []byte(backendHost)) {
		return body
	}
	local := "http://" + localHost
	r := strings.NewReplacer("https://"+backendHost, local, "http://"+backendHost, local)
	return []byte(r.Replace(string(body)))
}

var textualTypes = map[string]bool{
	"text/html":              true,
	"text/css":               true,
	"text/javascript":        true,
	"application/javascript": true,
	"application/json":       true,
}

var textualExtensions = map[string]bool{
	".html": true,
	".htm":  true,
	".css":  true,
	".js":   true,
	".mjs":  true,
	".json": true,
}

// Textual reports whether a response carries one of the rewritable text
// formats. The request path extension decides when no type is set.
func Textual(r *http.Request, meta ResponseMeta) bool {
	if mt := meta.MediaType(); mt != "" {
		return textualTypes[mt]
	}
	return textualExtensions[strings.ToLower(path.Ext(r.URL.Path))]
}

// HostURLRule rewrites backend URLs in successful textual responses.
func HostURLRule(backendHost, localHost string) Rule {
	return Rule{
		Match: func(_ string, r *http.Request, meta ResponseMeta) bool {
			ok := meta.StatusCode >= 200 && meta.StatusCode < 300 && meta.StatusCode != http.StatusPartialContent
			return ok && Textual(r, meta)
		},
		Transform: func(body []byte) ([]byte, error) {
			return ReplaceHost(backendHost, localHost, body), nil
		},
	}
}

// rewriteLocation points redirects at the backend back to the local server.
func rewriteLocation(backendHost, localHost string, resp *Response) *Response {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return resp
	}
	replaced := string(ReplaceHost(backendHost, localHost, []byte(loc)))
	if replaced == loc {
		return resp
	}
	out := *resp
	out.Header = resp.Header.Clone()
	out.Header.Set("Location", replaced)
	return &out
}
