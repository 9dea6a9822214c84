package worker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/learning-journal/journal-cache/internal/cache"
)

const testOrigin = "http://journal.local"

var errOffline = errors.New("dial tcp: connection refused")

// fakeNetwork 模拟源站：按路径返回预设响应，可切换离线并统计调用次数。
type fakeNetwork struct {
	mu      sync.Mutex
	offline bool
	pages   map[string]cache.Response
	calls   map[string]int
}

func newFakeNetwork() *fakeNetwork {
	n := &fakeNetwork{
		pages: make(map[string]cache.Response),
		calls: make(map[string]int),
	}
	n.set("/", "text/html", "<h1>home</h1>")
	n.set("/offline.html", "text/html", "<h1>offline</h1>")
	n.set("/manifest.json", "application/json", `{"name":"Learning Journal"}`)
	n.set("/favicon.png", "image/png", "png")
	n.set("/icons/icon-192.png", "image/png", "icon")
	n.set("/reflections", "text/html", "<h1>reflections</h1>")
	n.set("/api/reflections", "application/json", `[{"id":"1"}]`)
	n.set("/assets/app.js", "text/javascript", "console.log(1)")
	n.set("/notes.txt", "text/plain", "notes")
	return n
}

func (n *fakeNetwork) set(path, contentType, body string) {
	n.setResponse(path, http.StatusOK, contentType, body)
}

func (n *fakeNetwork) setResponse(path string, status int, contentType, body string) {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	n.mu.Lock()
	n.pages[path] = cache.Response{Status: status, Header: header, Body: []byte(body)}
	n.mu.Unlock()
}

func (n *fakeNetwork) remove(path string) {
	n.mu.Lock()
	delete(n.pages, path)
	n.mu.Unlock()
}

func (n *fakeNetwork) setOffline(offline bool) {
	n.mu.Lock()
	n.offline = offline
	n.mu.Unlock()
}

func (n *fakeNetwork) count(method, path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method+" "+path]
}

func (n *fakeNetwork) Fetch(ctx context.Context, req *Request) (cache.Response, error) {
	if err := ctx.Err(); err != nil {
		return cache.Response{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	path := req.URL.RequestURI()
	n.calls[req.Method+" "+path]++
	if n.offline {
		return cache.Response{}, errOffline
	}
	if req.Method != http.MethodGet {
		return cache.Response{Status: http.StatusCreated, Header: http.Header{}, Body: req.Body}, nil
	}
	resp, ok := n.pages[path]
	if !ok {
		return cache.Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte("missing")}, nil
	}
	return resp.Clone(), nil
}

func testOptions(t *testing.T, version string, reg cache.Registry, network Network) Options {
	t.Helper()
	origin, err := url.Parse(testOrigin)
	require.NoError(t, err)
	return Options{
		Version:     version,
		Origin:      origin,
		Registry:    reg,
		Network:     network,
		SkipWaiting: true,
	}
}

func newInstalledController(t *testing.T, reg cache.Registry, network Network) *Controller {
	t.Helper()
	ctrl, err := NewController(testOptions(t, "v2", reg, network))
	require.NoError(t, err)
	require.NoError(t, ctrl.OnInstall(context.Background()))
	require.NoError(t, ctrl.OnActivate(context.Background()))
	return ctrl
}

func get(t *testing.T, path string) *Request {
	t.Helper()
	req, err := NewRequest(http.MethodGet, testOrigin+path)
	require.NoError(t, err)
	return req
}

func navigate(t *testing.T, path string) *Request {
	t.Helper()
	req := get(t, path)
	req.Mode = "navigate"
	req.Destination = "document"
	return req
}
