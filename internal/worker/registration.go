package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/logging"
)

var (
	// ErrNoController 表示尚无可接收消息的控制器。
	ErrNoController = errors.New("no controller registered")
	// ErrAlreadyActive 表示同一版本已处于激活状态。
	ErrAlreadyActive = errors.New("version already active")
)

// RegistrationOptions 是所有版本共享的依赖。
type RegistrationOptions struct {
	Registry cache.Registry
	Network  Network
	Logger   *logrus.Logger
}

// Registration 管理同一作用域内的激活版本与等待版本，
// 对应浏览器中一个 service worker 注册。
type Registration struct {
	registry cache.Registry
	network  Network
	logger   *logrus.Logger
	clients  *ClientSet

	// updateMu 串行化 Register 与版本切换。
	updateMu sync.Mutex

	mu      sync.RWMutex
	active  *Controller
	waiting *Controller
	all     []*Controller
}

// NewRegistration 创建空注册。
func NewRegistration(opts RegistrationOptions) (*Registration, error) {
	if opts.Registry == nil {
		return nil, errors.New("cache registry is required")
	}
	if opts.Network == nil {
		return nil, errors.New("network is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscardLogger()
	}
	return &Registration{
		registry: opts.Registry,
		network:  opts.Network,
		logger:   opts.Logger,
		clients:  NewClientSet(),
	}, nil
}

// Register 安装一个新版本。首次注册或新版本请求了 skip-waiting 时立即激活，
// 否则进入等待状态，直到收到 SKIP_WAITING 或旧版本不再控制任何客户端。
func (r *Registration) Register(ctx context.Context, opts Options) (*Controller, error) {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	r.mu.RLock()
	active, waiting := r.active, r.waiting
	r.mu.RUnlock()

	if active != nil && active.Version() == opts.Version {
		return active, fmt.Errorf("%w: %s", ErrAlreadyActive, opts.Version)
	}
	if waiting != nil && waiting.Version() == opts.Version {
		if err := waiting.OnInstall(ctx); err != nil {
			return nil, err
		}
		return waiting, r.maybePromote(ctx)
	}

	if opts.Registry == nil {
		opts.Registry = r.registry
	}
	if opts.Network == nil {
		opts.Network = r.network
	}
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	ctrl, err := NewController(opts)
	if err != nil {
		return nil, err
	}
	if err := ctrl.OnInstall(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	replaced := r.waiting
	r.waiting = ctrl
	r.all = append(r.all, ctrl)
	r.mu.Unlock()
	if replaced != nil {
		replaced.retire()
	}

	return ctrl, r.maybePromote(ctx)
}

// maybePromote 在调用方持有 updateMu 时检查等待版本是否可以激活。
func (r *Registration) maybePromote(ctx context.Context) error {
	r.mu.RLock()
	active, waiting := r.active, r.waiting
	r.mu.RUnlock()
	if waiting == nil {
		return nil
	}
	if active == nil || waiting.SkipWaitingRequested() {
		return r.promote(ctx, waiting)
	}
	return nil
}

// promote 激活等待版本。激活期间旧版本继续处理请求。
func (r *Registration) promote(ctx context.Context, next *Controller) error {
	if err := next.OnActivate(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	previous := r.active
	r.active = next
	if r.waiting == next {
		r.waiting = nil
	}
	r.mu.Unlock()

	if previous != nil {
		previous.retire()
	}
	claimed := r.clients.Claim(next.Version())

	fields := logging.LifecycleFields("claim", next.CacheName(), next.Version())
	fields["clients"] = claimed
	if previous != nil {
		fields["previous"] = previous.Version()
	}
	r.logger.WithFields(fields).Info("controller_activated")
	return nil
}

// PostMessage 把消息投递给等待版本（不存在时投递给激活版本）。
// 等待版本收到 SKIP_WAITING 后立即激活。
func (r *Registration) PostMessage(ctx context.Context, msg Message) error {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	r.mu.RLock()
	target := r.waiting
	if target == nil {
		target = r.active
	}
	r.mu.RUnlock()
	if target == nil {
		return ErrNoController
	}

	target.OnMessage(msg)
	return r.maybePromote(ctx)
}

// ReleaseClient 表示客户端已关闭。旧版本不再控制任何客户端时，等待版本随之激活。
func (r *Registration) ReleaseClient(ctx context.Context, clientID string) (bool, error) {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	if !r.clients.Release(clientID) {
		return false, nil
	}

	r.mu.RLock()
	active, waiting := r.active, r.waiting
	r.mu.RUnlock()
	if active == nil || waiting == nil || r.clients.Count(active.Version()) > 0 {
		return true, nil
	}
	return true, r.promote(ctx, waiting)
}

// Fetch 使用客户端当前的控制版本处理请求；未受控客户端直接访问网络。
// clientID 为空时视为由激活版本控制。
func (r *Registration) Fetch(ctx context.Context, clientID string, req *Request) (Result, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	if active == nil {
		if clientID != "" {
			r.clients.Touch(clientID, "")
		}
		return r.bypass(ctx, req)
	}
	if clientID != "" {
		if version := r.clients.Touch(clientID, active.Version()); version == "" {
			return r.bypass(ctx, req)
		}
	}
	return active.OnFetch(ctx, req)
}

func (r *Registration) bypass(ctx context.Context, req *Request) (Result, error) {
	resp, err := r.network.Fetch(ctx, req)
	return Result{Response: resp, Strategy: StrategyPassThrough, Source: SourceBypass}, err
}

// Active 返回当前激活版本，可能为 nil。
func (r *Registration) Active() *Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Waiting 返回等待中的版本，可能为 nil。
func (r *Registration) Waiting() *Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

// ControllerStatus 是单个版本的诊断信息。
type ControllerStatus struct {
	Version     string `json:"version"`
	CacheName   string `json:"cache"`
	State       State  `json:"state"`
	SkipWaiting bool   `json:"skipWaiting"`
}

// Status 是注册的诊断快照。
type Status struct {
	Active  *ControllerStatus `json:"active"`
	Waiting *ControllerStatus `json:"waiting"`
	Caches  []string          `json:"caches"`
	Clients map[string]string `json:"clients"`
}

// Status 汇总当前版本、缓存仓与客户端。
func (r *Registration) Status(ctx context.Context) (Status, error) {
	r.mu.RLock()
	active, waiting := r.active, r.waiting
	r.mu.RUnlock()

	names, err := r.registry.Names(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("list caches: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return Status{
		Active:  describe(active),
		Waiting: describe(waiting),
		Caches:  names,
		Clients: r.clients.Snapshot(),
	}, nil
}

func describe(c *Controller) *ControllerStatus {
	if c == nil {
		return nil
	}
	return &ControllerStatus{
		Version:     c.Version(),
		CacheName:   c.CacheName(),
		State:       c.State(),
		SkipWaiting: c.SkipWaitingRequested(),
	}
}

// Close 等待所有版本的后台刷新结束。
func (r *Registration) Close() {
	r.mu.RLock()
	controllers := append([]*Controller(nil), r.all...)
	r.mu.RUnlock()
	for _, c := range controllers {
		c.Wait()
	}
}
