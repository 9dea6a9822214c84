package cache

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Registry 管理一组按名称区分的缓存仓，对应浏览器环境下的全局 caches 对象。
type Registry interface {
	// Open 返回指定名称的缓存仓，不存在时自动创建。
	Open(ctx context.Context, name string) (Store, error)

	// Names 返回当前存在的全部缓存仓名称（按字典序）。
	Names(ctx context.Context) ([]string, error)

	// Has 判断缓存仓是否存在，不会隐式创建。
	Has(ctx context.Context, name string) (bool, error)

	// Delete 删除整个缓存仓及其条目，返回删除前是否存在。
	Delete(ctx context.Context, name string) (bool, error)
}

// Store 是单个缓存仓的读写接口。同一 Key 的并发写入遵循 last-write-wins。
type Store interface {
	Name() string

	// Get 返回缓存的响应副本，未命中时返回 ErrNotFound。
	Get(ctx context.Context, key Key) (Response, error)

	// Put 写入（或覆盖）一条响应，实现需自行拷贝，调用方可继续使用 resp。
	Put(ctx context.Context, key Key, resp Response) error

	// Keys 列出缓存仓内的全部条目键。
	Keys(ctx context.Context) ([]Key, error)
}

// Key 唯一定位一个缓存条目：请求方法 + 完整 URL。
type Key struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// KeyFor 构造规范化的 Key，方法名统一为大写。
func KeyFor(method, rawURL string) Key {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return Key{Method: method, URL: rawURL}
}

func (k Key) String() string {
	return k.Method + " " + k.URL
}

// Response 是响应的不可变快照，正文已完整缓冲，可被多次读取。
type Response struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"-"`
}

// Clone 深拷贝 Header 与 Body，保证写入缓存的副本与返回给调用方的副本互不影响。
func (r Response) Clone() Response {
	out := Response{Status: r.Status}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

// OK 表示响应可以作为“成功”写入缓存。
func (r Response) OK() bool {
	return r.Status == http.StatusOK
}

var (
	// ErrNotFound 表示缓存条目不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidName 表示缓存仓名称为空或包含路径分隔符。
	ErrInvalidName = errors.New("invalid cache name")
)

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}
