package proxy_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppdev/cmd/proxy"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "OK")
})

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestBasePath(t *testing.T) {
	a := assert.New(t)
	a.Equal("/pl/t/", proxy.BasePath("t", false, true, true))
	a.Equal("/pt/t/", proxy.BasePath("t", false, false, true))
	a.Equal("/p/t/", proxy.BasePath("t", true, true, true))
	a.Equal("/p/t/", proxy.BasePath("t", true, false, true))
	a.Equal("/p/t/", proxy.BasePath("t", false, true, false))
	a.Equal("/p/t/", proxy.BasePath("t", false, false, false))
}

func TestRedirectOutsideBase(t *testing.T) {
	a := assert.New(t)
	for _, base := range []string{"/p/my-template/", "/p/my-template"} {
		h := proxy.NewRedirector(base).Handler(okHandler)

		w := serve(h, "/")
		a.Equal(http.StatusFound, w.Code)
		a.Equal("/p/my-template/", w.Header().Get("Location"))

		w = serve(h, "/p/my-template-2")
		a.Equal(http.StatusFound, w.Code, "a longer name is not inside the base")
		a.Equal("/p/my-template/", w.Header().Get("Location"))

		w = serve(h, "/p/other/page")
		a.Equal(http.StatusFound, w.Code)
	}
}

func TestRedirectInsideBase(t *testing.T) {
	a := assert.New(t)
	h := proxy.NewRedirector("/p/my-template").Handler(okHandler)
	for _, p := range []string{"/p/my-template", "/p/my-template/", "/p/my-template/anything", "/p/my-template/a/b.js"} {
		w := serve(h, p)
		a.Equal(http.StatusOK, w.Code, p)
		a.Equal("OK", w.Body.String(), p)
	}
}

func TestRedirectV7Base(t *testing.T) {
	a := assert.New(t)
	h := proxy.NewRedirector("/pl/my-template/").Handler(okHandler)
	a.Equal("/pl/my-template/", serve(h, "/").Header().Get("Location"))
	a.Equal(http.StatusOK, serve(h, "/pl/my-template/").Code)
	a.Equal(http.StatusFound, serve(h, "/p/my-template/").Code)
}

func TestRedirectPassThrough(t *testing.T) {
	a := assert.New(t)
	h := proxy.NewRedirector("/p/template/").Handler(okHandler)
	for _, p := range []string{"/@vite/client", "/api/data", "/__pp-dev/status", "/favicon.ico", "/login", "/css/site.css"} {
		a.Equal(http.StatusOK, serve(h, p).Code, p)
	}
	// Pass-through prefixes without a trailing slash still match whole segments.
	a.Equal(http.StatusFound, serve(h, "/loginpage").Code)
}

func TestRedirectStrictWithoutPassThrough(t *testing.T) {
	a := assert.New(t)
	h := proxy.Redirector{Base: "/p/template"}.Handler(okHandler)
	a.Equal(http.StatusFound, serve(h, "/api/data").Code)
}

func TestRedirectHelper(t *testing.T) {
	a := assert.New(t)

	w := httptest.NewRecorder()
	proxy.Redirect(w, "/new-path", 0)
	a.Equal(http.StatusFound, w.Code)
	a.Equal("/new-path", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	proxy.Redirect(w, "https://example.com/path", http.StatusMovedPermanently)
	a.Equal(http.StatusMovedPermanently, w.Code)
	a.Equal("https://example.com/path", w.Header().Get("Location"))
}
