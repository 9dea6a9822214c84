package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/learning-journal/journal-cache/internal/config"
)

// Scope 聚合代理作用域的派生属性（解析后的源站 URL、缓存名、监听端口），
// 供路由/代理层直接复用，避免重复解析配置。
type Scope struct {
	// Origin 是缓存控制器的作用域，只包含 scheme 与 host。
	Origin *url.URL
	// CacheName 是当前版本的缓存仓名称，便于日志输出。
	CacheName  string
	ListenPort int
}

// NewScope 根据配置构建作用域。调用方应在启动阶段创建一次并复用。
func NewScope(cfg *config.Config) (*Scope, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	origin, err := cfg.Worker.OriginURL()
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	if !origin.IsAbs() || origin.Host == "" {
		return nil, fmt.Errorf("origin must be absolute: %s", cfg.Worker.Origin)
	}
	origin.Path = ""
	origin.RawPath = ""
	origin.RawQuery = ""
	origin.Fragment = ""
	return &Scope{
		Origin:     origin,
		CacheName:  cfg.Worker.CacheName(),
		ListenPort: cfg.Global.ListenPort,
	}, nil
}

// Resolve 将请求目标转换为绝对 URL：absolute-form 保留自身的源，
// origin-form 相对于作用域源站解析。
func (s *Scope) Resolve(requestURI string) (*url.URL, error) {
	raw := strings.TrimSpace(requestURI)
	if raw == "" {
		raw = "/"
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid request target: %w", err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("request target missing host: %s", raw)
		}
		return parsed, nil
	}
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("unsupported request target: %s", raw)
	}
	ref, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid request target: %w", err)
	}
	return s.Origin.ResolveReference(ref), nil
}
