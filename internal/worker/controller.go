package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/logging"
)

// 默认值与原 Learning Journal 部署保持一致。
const (
	DefaultPrefix      = "learning-journal-"
	DefaultVersion     = "v2"
	DefaultAPIPrefix   = "/api/"
	DefaultAssetPrefix = "/assets/"
	DefaultSiteRoot    = "/"
	DefaultOfflinePage = "/offline.html"
)

// DefaultStaticAssets 是安装阶段必须全部缓存成功的资源列表。
var DefaultStaticAssets = []string{
	"/",
	"/offline.html",
	"/manifest.json",
	"/favicon.png",
	"/icons/icon-192.png",
}

var (
	// ErrInstallFailed 表示静态资源预缓存失败，新版本不会就绪。
	ErrInstallFailed = errors.New("install failed")
	// ErrInvalidState 表示生命周期方法在错误的阶段被调用。
	ErrInvalidState = errors.New("invalid lifecycle state")
)

// State 是控制器的生命周期阶段。
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Options 描述一个控制器版本的全部依赖与策略参数。
type Options struct {
	Version      string
	Prefix       string
	Origin       *url.URL
	StaticAssets []string
	SiteRoot     string
	OfflinePage  string
	APIPrefix    string
	AssetPrefix  string
	// SkipWaiting 为 true 时安装完成即请求跳过等待期。
	SkipWaiting bool

	Registry cache.Registry
	Network  Network
	Logger   *logrus.Logger
}

// Controller 是单个版本的缓存控制器。
type Controller struct {
	opts   Options
	logger *logrus.Logger

	mu          sync.Mutex
	state       State
	skipWaiting bool
	store       cache.Store

	// 后台刷新（stale-while-revalidate）的 goroutine 由控制器持有。
	bg sync.WaitGroup
}

// NewController 校验并补全 Options。
func NewController(opts Options) (*Controller, error) {
	if opts.Registry == nil {
		return nil, errors.New("cache registry is required")
	}
	if opts.Network == nil {
		return nil, errors.New("network is required")
	}
	if opts.Origin == nil || !opts.Origin.IsAbs() {
		return nil, errors.New("absolute origin is required")
	}
	if strings.TrimSpace(opts.Version) == "" {
		return nil, errors.New("version is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.StaticAssets == nil {
		opts.StaticAssets = append([]string(nil), DefaultStaticAssets...)
	}
	if opts.SiteRoot == "" {
		opts.SiteRoot = DefaultSiteRoot
	}
	if opts.OfflinePage == "" {
		opts.OfflinePage = DefaultOfflinePage
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = DefaultAPIPrefix
	}
	if opts.AssetPrefix == "" {
		opts.AssetPrefix = DefaultAssetPrefix
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscardLogger()
	}

	origin := *opts.Origin
	origin.Path = ""
	origin.RawPath = ""
	origin.RawQuery = ""
	origin.Fragment = ""
	opts.Origin = &origin

	if err := validateCacheName(opts.Prefix + opts.Version); err != nil {
		return nil, err
	}

	return &Controller{
		opts:   opts,
		logger: opts.Logger,
		state:  StateParsed,
	}, nil
}

func validateCacheName(name string) error {
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("cache name %q: %w", name, cache.ErrInvalidName)
	}
	return nil
}

// Version 返回控制器的版本标签。
func (c *Controller) Version() string {
	return c.opts.Version
}

// CacheName 返回当前版本使用的缓存仓名称（前缀 + 版本）。
func (c *Controller) CacheName() string {
	return c.opts.Prefix + c.opts.Version
}

// State 返回当前生命周期阶段。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SkipWaitingRequested 表示控制器已请求跳过等待期。
func (c *Controller) SkipWaitingRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipWaiting
}

// Wait 阻塞直到所有后台刷新结束。
func (c *Controller) Wait() {
	c.bg.Wait()
}

// OnInstall 打开当前版本的缓存仓并预缓存全部静态资源。任何一个资源获取失败
// （传输错误或非 200）都会使安装失败，且不写入任何条目。
// 对同一版本重复安装是幂等的。
func (c *Controller) OnInstall(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state
	if prev != StateParsed && prev != StateInstalled {
		c.mu.Unlock()
		return fmt.Errorf("%w: install from %s", ErrInvalidState, prev)
	}
	c.state = StateInstalling
	c.mu.Unlock()

	fields := logging.LifecycleFields("install", c.CacheName(), c.Version())
	store, err := c.precache(ctx)
	if err != nil {
		c.setState(prev)
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Error("install_failed")
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	c.mu.Lock()
	c.store = store
	c.state = StateInstalled
	if c.opts.SkipWaiting {
		c.skipWaiting = true
	}
	c.mu.Unlock()

	fields["assets"] = len(c.opts.StaticAssets)
	fields["skip_waiting"] = c.opts.SkipWaiting
	c.logger.WithFields(fields).Info("install_complete")
	return nil
}

func (c *Controller) precache(ctx context.Context) (cache.Store, error) {
	store, err := c.opts.Registry.Open(ctx, c.CacheName())
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	requests := make([]*Request, len(c.opts.StaticAssets))
	for i, asset := range c.opts.StaticAssets {
		requests[i] = c.sameOriginRequest(asset)
	}

	responses := make([]cache.Response, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			resp, err := c.opts.Network.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", req.URL.Path, err)
			}
			if !resp.OK() {
				return fmt.Errorf("fetch %s: unexpected status %d", req.URL.Path, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	writer := cache.NewWriter(store)
	for i, req := range requests {
		if err := writer.Put(ctx, req.Key(), responses[i]); err != nil {
			return nil, fmt.Errorf("store %s: %w", req.URL.Path, err)
		}
	}
	return store, nil
}

// OnActivate 删除所有与前缀匹配但不是当前版本的缓存仓。
func (c *Controller) OnActivate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInstalled {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: activate from %s", ErrInvalidState, state)
	}
	c.state = StateActivating
	c.mu.Unlock()

	fields := logging.LifecycleFields("activate", c.CacheName(), c.Version())
	deleted, err := c.deleteStaleCaches(ctx)
	if err != nil {
		c.setState(StateInstalled)
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Error("activate_failed")
		return err
	}

	c.setState(StateActivated)
	fields["deleted"] = deleted
	c.logger.WithFields(fields).Info("activate_complete")
	return nil
}

func (c *Controller) deleteStaleCaches(ctx context.Context) ([]string, error) {
	names, err := c.opts.Registry.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	current := c.CacheName()
	var deleted []string
	for _, name := range names {
		if !strings.HasPrefix(name, c.opts.Prefix) || name == current {
			continue
		}
		ok, err := c.opts.Registry.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("delete cache %s: %w", name, err)
		}
		if ok {
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}

// OnMessage 处理宿主应用的控制消息，目前仅支持 SKIP_WAITING，其他类型忽略。
func (c *Controller) OnMessage(msg Message) {
	fields := logging.LifecycleFields("message", c.CacheName(), c.Version())
	fields["type"] = msg.Type
	if msg.Type != MessageSkipWaiting {
		c.logger.WithFields(fields).Debug("message_ignored")
		return
	}
	c.mu.Lock()
	c.skipWaiting = true
	c.mu.Unlock()
	c.logger.WithFields(fields).Info("skip_waiting_requested")
}

// retire 标记控制器已被新版本取代。
func (c *Controller) retire() {
	c.setState(StateRedundant)
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) currentStore() cache.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

func (c *Controller) sameOriginRequest(path string) *Request {
	ref := &url.URL{Path: path}
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		ref = &url.URL{Path: path[:idx], RawQuery: path[idx+1:]}
	}
	return &Request{
		Method: http.MethodGet,
		URL:    c.opts.Origin.ResolveReference(ref),
		Header: http.Header{},
	}
}
