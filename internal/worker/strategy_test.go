package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learning-journal/journal-cache/internal/cache"
)

func TestAPINetworkFirst(t *testing.T) {
	ctx := context.Background()
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)

	result, err := ctrl.OnFetch(ctx, get(t, "/api/reflections"))
	require.NoError(t, err)
	assert.Equal(t, StrategyAPI, result.Strategy)
	assert.Equal(t, SourceNetwork, result.Source)
	assert.Equal(t, "v2", result.Version)
	assert.Equal(t, `[{"id":"1"}]`, string(result.Response.Body))

	network.set("/api/reflections", "application/json", `[{"id":"1"},{"id":"2"}]`)
	result, err = ctrl.OnFetch(ctx, get(t, "/api/reflections"))
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, result.Source)
	assert.Equal(t, `[{"id":"1"},{"id":"2"}]`, string(result.Response.Body))

	network.setOffline(true)
	result, err = ctrl.OnFetch(ctx, get(t, "/api/reflections"))
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, `[{"id":"1"},{"id":"2"}]`, string(result.Response.Body))
}

func TestAPIOfflineWithoutCacheReturnsOfflineJSON(t *testing.T) {
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)
	network.setOffline(true)

	result, err := ctrl.OnFetch(context.Background(), get(t, "/api/projects"))
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, http.StatusServiceUnavailable, result.Response.Status)
	assert.Equal(t, "application/json", result.Response.Header.Get("Content-Type"))
	assert.Equal(t, `{"error":"Offline","offline":true,"data":[]}`, string(result.Response.Body))
}

func TestAPINonOKResponsesAreNotCached(t *testing.T) {
	ctx := context.Background()
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)
	network.setResponse("/api/projects", http.StatusInternalServerError, "application/json", `{"error":"boom"}`)

	result, err := ctrl.OnFetch(ctx, get(t, "/api/projects"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, result.Response.Status)
	assert.Equal(t, SourceNetwork, result.Source)

	network.setOffline(true)
	result, err = ctrl.OnFetch(ctx, get(t, "/api/projects"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, result.Response.Status)
}

func TestNavigationFallbackChain(t *testing.T) {
	ctx := context.Background()

	t.Run("exact page", func(t *testing.T) {
		network := newFakeNetwork()
		ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)
		_, err := ctrl.OnFetch(ctx, navigate(t, "/reflections"))
		require.NoError(t, err)

		network.setOffline(true)
		result, err := ctrl.OnFetch(ctx, navigate(t, "/reflections"))
		require.NoError(t, err)
		assert.Equal(t, StrategyNavigation, result.Strategy)
		assert.Equal(t, SourceCache, result.Source)
		assert.Equal(t, "<h1>reflections</h1>", string(result.Response.Body))
	})

	t.Run("site root", func(t *testing.T) {
		network := newFakeNetwork()
		ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)
		network.setOffline(true)

		result, err := ctrl.OnFetch(ctx, navigate(t, "/projects"))
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, result.Source)
		assert.Equal(t, "<h1>home</h1>", string(result.Response.Body))
	})

	t.Run("offline page", func(t *testing.T) {
		network := newFakeNetwork()
		opts := testOptions(t, "v2", cache.NewMemoryRegistry(), network)
		opts.StaticAssets = []string{"/offline.html"}
		ctrl, err := NewController(opts)
		require.NoError(t, err)
		require.NoError(t, ctrl.OnInstall(ctx))
		network.setOffline(true)

		result, err := ctrl.OnFetch(ctx, navigate(t, "/projects"))
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, result.Source)
		assert.Equal(t, "<h1>offline</h1>", string(result.Response.Body))
	})

	t.Run("nothing cached", func(t *testing.T) {
		network := newFakeNetwork()
		opts := testOptions(t, "v2", cache.NewMemoryRegistry(), network)
		opts.StaticAssets = []string{"/manifest.json"}
		ctrl, err := NewController(opts)
		require.NoError(t, err)
		require.NoError(t, ctrl.OnInstall(ctx))
		network.setOffline(true)

		result, err := ctrl.OnFetch(ctx, navigate(t, "/projects"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, result.Response.Status)
		assert.Contains(t, result.Response.Header.Get("Content-Type"), "text/html")
	})
}

func TestStaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)

	result, err := ctrl.OnFetch(ctx, get(t, "/assets/app.js"))
	require.NoError(t, err)
	assert.Equal(t, StrategyStatic, result.Strategy)
	assert.Equal(t, SourceNetwork, result.Source)
	assert.Equal(t, 1, network.count(http.MethodGet, "/assets/app.js"))

	network.set("/assets/app.js", "text/javascript", "console.log(2)")
	result, err = ctrl.OnFetch(ctx, get(t, "/assets/app.js"))
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, "console.log(1)", string(result.Response.Body))

	ctrl.Wait()
	assert.Equal(t, 2, network.count(http.MethodGet, "/assets/app.js"))

	result, err = ctrl.OnFetch(ctx, get(t, "/assets/app.js"))
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, "console.log(2)", string(result.Response.Body))
	ctrl.Wait()
}

func TestStaleWhileRevalidateDoesNotWaitForNetwork(t *testing.T) {
	ctx := context.Background()
	origin := newFakeNetwork()
	release := make(chan struct{})
	var gated atomic.Bool
	network := NetworkFunc(func(ctx context.Context, req *Request) (cache.Response, error) {
		if gated.Load() && req.URL.Path == "/assets/app.js" {
			<-release
			header := http.Header{}
			header.Set("Content-Type", "text/javascript")
			return cache.Response{Status: http.StatusOK, Header: header, Body: []byte("new")}, nil
		}
		return origin.Fetch(ctx, req)
	})

	reg := cache.NewMemoryRegistry()
	ctrl := newInstalledController(t, reg, network)
	_, err := ctrl.OnFetch(ctx, get(t, "/assets/app.js"))
	require.NoError(t, err)
	ctrl.Wait()

	gated.Store(true)
	req := get(t, "/assets/app.js")
	done := make(chan Result, 1)
	go func() {
		result, err := ctrl.OnFetch(ctx, req)
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, SourceCache, result.Source)
		assert.Equal(t, "console.log(1)", string(result.Response.Body))
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("cached static response waited on the network")
	}

	close(release)
	ctrl.Wait()

	store, err := reg.Open(ctx, ctrl.CacheName())
	require.NoError(t, err)
	stored, err := store.Get(ctx, cache.KeyFor(http.MethodGet, testOrigin+"/assets/app.js"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(stored.Body))
}

func TestStaleWhileRevalidateSurvivesCancelledRequest(t *testing.T) {
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)
	_, err := ctrl.OnFetch(context.Background(), get(t, "/assets/app.js"))
	require.NoError(t, err)

	network.set("/assets/app.js", "text/javascript", "console.log(3)")
	ctx, cancel := context.WithCancel(context.Background())
	result, err := ctrl.OnFetch(ctx, get(t, "/assets/app.js"))
	cancel()
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(result.Response.Body))

	ctrl.Wait()
	result, err = ctrl.OnFetch(context.Background(), get(t, "/assets/app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(3)", string(result.Response.Body))
	ctrl.Wait()
}

func TestStaticMissOfflineReturnsEmptyNotFound(t *testing.T) {
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)
	network.setOffline(true)

	result, err := ctrl.OnFetch(context.Background(), get(t, "/assets/app.css"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.Response.Status)
	assert.Empty(t, result.Response.Body)
}

func TestDefaultStrategy(t *testing.T) {
	ctx := context.Background()
	network := newFakeNetwork()
	ctrl := newInstalledController(t, cache.NewMemoryRegistry(), network)

	result, err := ctrl.OnFetch(ctx, get(t, "/notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, StrategyDefault, result.Strategy)
	assert.Equal(t, SourceNetwork, result.Source)

	network.setOffline(true)
	result, err = ctrl.OnFetch(ctx, get(t, "/notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, "notes", string(result.Response.Body))

	result, err = ctrl.OnFetch(ctx, get(t, "/unknown.txt"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.Response.Status)
	assert.Empty(t, result.Response.Body)
}

func TestPassThroughIsNeverCached(t *testing.T) {
	ctx := context.Background()
	reg := cache.NewMemoryRegistry()
	network := newFakeNetwork()
	ctrl := newInstalledController(t, reg, network)

	post, err := NewRequest(http.MethodPost, testOrigin+"/api/reflections")
	require.NoError(t, err)
	post.Body = []byte(`{"title":"x"}`)

	result, err := ctrl.OnFetch(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, StrategyPassThrough, result.Strategy)
	assert.Equal(t, SourceBypass, result.Source)
	assert.Equal(t, http.StatusCreated, result.Response.Status)
	assert.Equal(t, 1, network.count(http.MethodPost, "/api/reflections"))

	store, err := reg.Open(ctx, ctrl.CacheName())
	require.NoError(t, err)
	_, err = store.Get(ctx, post.Key())
	assert.ErrorIs(t, err, cache.ErrNotFound)

	network.setOffline(true)
	_, err = ctrl.OnFetch(ctx, post)
	assert.ErrorIs(t, err, errOffline)

	cross, err := NewRequest(http.MethodGet, "https://cdn.example.com/lib.js")
	require.NoError(t, err)
	_, err = ctrl.OnFetch(ctx, cross)
	assert.ErrorIs(t, err, errOffline)
}
