package worker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/logging"
)

// staticDestinations 是按 stale-while-revalidate 处理的子资源类型。
var staticDestinations = map[string]struct{}{
	"script": {},
	"style":  {},
	"font":   {},
	"image":  {},
}

// Classify 按“首个匹配生效”的顺序决定请求的缓存策略。
func (c *Controller) Classify(req *Request) Strategy {
	if req == nil || req.URL == nil || req.Method != http.MethodGet {
		return StrategyPassThrough
	}
	if !sameOrigin(req.URL, c.opts.Origin) {
		return StrategyPassThrough
	}
	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	switch {
	case strings.HasPrefix(path, c.opts.APIPrefix):
		return StrategyAPI
	case req.IsNavigation():
		return StrategyNavigation
	case isStaticDestination(req.Destination), strings.HasPrefix(path, c.opts.AssetPrefix):
		return StrategyStatic
	default:
		return StrategyDefault
	}
}

func isStaticDestination(dest string) bool {
	_, ok := staticDestinations[strings.ToLower(strings.TrimSpace(dest))]
	return ok
}

// OnFetch 处理一次请求。被拦截的 GET 请求总会得到响应且 error 恒为 nil；
// 直通请求（非 GET、跨域）原样转发，传输错误会返回给调用方。
func (c *Controller) OnFetch(ctx context.Context, req *Request) (Result, error) {
	strategy := c.Classify(req)
	var result Result
	switch strategy {
	case StrategyPassThrough:
		resp, err := c.opts.Network.Fetch(ctx, req)
		return Result{Response: resp, Strategy: strategy, Source: SourceBypass, Version: c.Version()}, err
	case StrategyAPI:
		result = c.networkFirstAPI(ctx, req)
	case StrategyNavigation:
		result = c.networkFirstNavigation(ctx, req)
	case StrategyStatic:
		result = c.staleWhileRevalidate(ctx, req)
	default:
		result = c.networkWithCacheFallback(ctx, req)
	}
	result.Strategy = strategy
	result.Version = c.Version()
	return result, nil
}

// networkFirstAPI：成功则写缓存并返回实时响应；失败时回退到同一请求的缓存，
// 再不行就返回离线 JSON。
func (c *Controller) networkFirstAPI(ctx context.Context, req *Request) Result {
	resp, err := c.opts.Network.Fetch(ctx, req)
	if err == nil {
		c.put(ctx, req, resp)
		return Result{Response: resp, Source: SourceNetwork}
	}
	c.logNetworkFailure(req, StrategyAPI, err)

	if cached, ok := c.lookup(ctx, req.Key()); ok {
		return Result{Response: cached, Source: SourceCache}
	}
	return Result{Response: OfflineAPIResponse(), Source: SourceFallback}
}

// networkFirstNavigation 的回退顺序：同一请求的缓存 -> 站点根 -> 离线页。
func (c *Controller) networkFirstNavigation(ctx context.Context, req *Request) Result {
	resp, err := c.opts.Network.Fetch(ctx, req)
	if err == nil {
		c.put(ctx, req, resp)
		return Result{Response: resp, Source: SourceNetwork}
	}
	c.logNetworkFailure(req, StrategyNavigation, err)

	if cached, ok := c.lookup(ctx, req.Key()); ok {
		return Result{Response: cached, Source: SourceCache}
	}
	if cached, ok := c.lookup(ctx, c.sameOriginRequest(c.opts.SiteRoot).Key()); ok {
		return Result{Response: cached, Source: SourceFallback}
	}
	if cached, ok := c.lookup(ctx, c.sameOriginRequest(c.opts.OfflinePage).Key()); ok {
		return Result{Response: cached, Source: SourceFallback}
	}
	return Result{Response: offlineDocumentResponse(), Source: SourceFallback}
}

// staleWhileRevalidate 命中缓存时立即返回，并在后台刷新；未命中时走网络。
func (c *Controller) staleWhileRevalidate(ctx context.Context, req *Request) Result {
	if cached, ok := c.lookup(ctx, req.Key()); ok {
		c.revalidate(ctx, req)
		return Result{Response: cached, Source: SourceCache}
	}

	resp, err := c.opts.Network.Fetch(ctx, req)
	if err != nil {
		c.logNetworkFailure(req, StrategyStatic, err)
		return Result{Response: NotFoundResponse(), Source: SourceFallback}
	}
	c.put(ctx, req, resp)
	return Result{Response: resp, Source: SourceNetwork}
}

// revalidate 的结果不会被等待，失败静默忽略。
func (c *Controller) revalidate(ctx context.Context, req *Request) {
	bgReq := req.Clone()
	bgCtx := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		resp, err := c.opts.Network.Fetch(bgCtx, bgReq)
		if err != nil {
			c.logger.WithFields(c.fetchFields(bgReq, StrategyStatic)).
				WithError(err).Debug("revalidate_failed")
			return
		}
		c.put(bgCtx, bgReq, resp)
	}()
}

func (c *Controller) networkWithCacheFallback(ctx context.Context, req *Request) Result {
	resp, err := c.opts.Network.Fetch(ctx, req)
	if err == nil {
		c.put(ctx, req, resp)
		return Result{Response: resp, Source: SourceNetwork}
	}
	c.logNetworkFailure(req, StrategyDefault, err)

	if cached, ok := c.lookup(ctx, req.Key()); ok {
		return Result{Response: cached, Source: SourceCache}
	}
	return Result{Response: NotFoundResponse(), Source: SourceFallback}
}

func (c *Controller) lookup(ctx context.Context, key cache.Key) (cache.Response, bool) {
	store := c.currentStore()
	if store == nil {
		return cache.Response{}, false
	}
	resp, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.logger.WithFields(logging.LifecycleFields("fetch", c.CacheName(), c.Version())).
				WithError(err).Warn("cache_get_failed")
		}
		return cache.Response{}, false
	}
	return resp, true
}

// put 写入缓存为尽力而为：只保存 200 响应，失败只记录日志。
func (c *Controller) put(ctx context.Context, req *Request, resp cache.Response) {
	writer := cache.NewWriter(c.currentStore())
	if !writer.Enabled() {
		return
	}
	if _, err := writer.PutOK(ctx, req.Key(), resp); err != nil {
		c.logger.WithFields(c.fetchFields(req, c.Classify(req))).
			WithError(err).Warn("cache_put_failed")
	}
}

func (c *Controller) logNetworkFailure(req *Request, strategy Strategy, err error) {
	c.logger.WithFields(c.fetchFields(req, strategy)).WithError(err).Info("network_failed")
}

func (c *Controller) fetchFields(req *Request, strategy Strategy) logrus.Fields {
	fields := logging.LifecycleFields("fetch", c.CacheName(), c.Version())
	fields["strategy"] = string(strategy)
	if req != nil && req.URL != nil {
		fields["url"] = req.URL.String()
	}
	return fields
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return originOf(a) == originOf(b)
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case port == "" && scheme == "http":
		port = "80"
	case port == "" && scheme == "https":
		port = "443"
	}
	return scheme + "://" + host + ":" + port
}
