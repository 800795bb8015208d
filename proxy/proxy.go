// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// Package proxy fronts the remote backend during local development.
//
// It has a following responsibilities:
// 1. Redirect requests outside the template base path to the base path.
// 2. Serve the locally built template and relay everything else upstream.
// 3. Memoize idempotent upstream responses for a short TTL.
// 4. Rewrite absolute backend URLs in textual bodies to the local address.
package proxy

import (
	"net/http"

	"github.com/ppdev/cmd/utils"
)

var proxyLog = utils.Logger.New("section", "proxy")

// Response is a fully buffered HTTP response. Responses handed out by the
// cache are shared between callers and must not be modified.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (resp *Response) OK() bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Write sends the response to w. The body is omitted for HEAD requests.
func (resp *Response) Write(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	for k, vv := range resp.Header {
		h[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead || len(resp.Body) == 0 {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		proxyLog.Debug("Write response failed", "path", r.URL.Path, "error", err)
	}
}
