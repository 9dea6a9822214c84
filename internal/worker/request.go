package worker

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/learning-journal/journal-cache/internal/cache"
)

// Request 描述一次被拦截的请求。Destination/Mode 对应浏览器的
// Sec-Fetch-Dest 与 Sec-Fetch-Mode 请求头。
type Request struct {
	Method      string
	URL         *url.URL
	Header      http.Header
	Body        []byte
	Destination string
	Mode        string
}

// NewRequest 构造一个无请求头的请求，URL 必须为绝对地址。
func NewRequest(method, rawURL string) (*Request, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("request url must be absolute: %s", rawURL)
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    parsed,
		Header: http.Header{},
	}, nil
}

// Key 返回缓存键，忽略 URL fragment。
func (r *Request) Key() cache.Key {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	return cache.KeyFor(r.Method, u.String())
}

// IsNavigation 判断请求是否为整页导航。
func (r *Request) IsNavigation() bool {
	return strings.EqualFold(r.Mode, "navigate") || strings.EqualFold(r.Destination, "document")
}

// Clone 深拷贝请求，供后台刷新在原请求结束后继续使用。
func (r *Request) Clone() *Request {
	out := *r
	if r.URL != nil {
		u := *r.URL
		out.URL = &u
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// Message 是宿主应用发送给控制器的控制消息。
type Message struct {
	Type string `json:"type"`
}

// MessageSkipWaiting 要求等待中的新版本立即接管。
const MessageSkipWaiting = "SKIP_WAITING"

// Strategy 标识请求被分派到的缓存策略。
type Strategy string

const (
	StrategyAPI         Strategy = "api"
	StrategyNavigation  Strategy = "navigation"
	StrategyStatic      Strategy = "static"
	StrategyDefault     Strategy = "default"
	StrategyPassThrough Strategy = "passthrough"
)

// Source 标识响应的来源。
type Source string

const (
	SourceNetwork  Source = "network"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceBypass   Source = "bypass"
)

// Result 是 OnFetch 的返回值：响应本身以及命中的策略与来源，便于日志与响应头输出。
type Result struct {
	Response cache.Response
	Strategy Strategy
	Source   Source
	Version  string
}
