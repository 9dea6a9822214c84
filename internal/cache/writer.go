package cache

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrStoreUnavailable 表示未注入缓存仓实例。
	ErrStoreUnavailable = errors.New("cache store unavailable")
	// ErrNotCacheable 表示请求方法不允许写入缓存（仅 GET 可缓存）。
	ErrNotCacheable = errors.New("request not cacheable")
)

// Writer 封装“先克隆再写入”的约定：写入缓存的副本与返回给调用方的响应互不共享内存。
type Writer struct {
	store Store
}

// NewWriter 构造面向单个缓存仓的写入器。
func NewWriter(store Store) Writer {
	return Writer{store: store}
}

// Enabled 返回当前是否具备缓存写入能力。
func (w Writer) Enabled() bool {
	return w.store != nil
}

// Put 克隆 resp 后写入缓存，非 GET 请求直接拒绝。
func (w Writer) Put(ctx context.Context, key Key, resp Response) error {
	if w.store == nil {
		return ErrStoreUnavailable
	}
	if key.Method != http.MethodGet {
		return ErrNotCacheable
	}
	return w.store.Put(ctx, key, resp.Clone())
}

// PutOK 仅在响应状态为 200 时写入，返回是否发生写入。
func (w Writer) PutOK(ctx context.Context, key Key, resp Response) (bool, error) {
	if !resp.OK() {
		return false, nil
	}
	if err := w.Put(ctx, key, resp); err != nil {
		return false, err
	}
	return true, nil
}
