package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/version"
)

// Network 是控制器访问网络的能力。实现需要完整读取响应正文；
// 传输层失败（连接拒绝、超时等）以 error 返回，非 200 状态码照常返回响应。
type Network interface {
	Fetch(ctx context.Context, req *Request) (cache.Response, error)
}

// NetworkFunc adapts a function to the Network interface.
type NetworkFunc func(ctx context.Context, req *Request) (cache.Response, error)

// Fetch makes NetworkFunc satisfy Network.
func (f NetworkFunc) Fetch(ctx context.Context, req *Request) (cache.Response, error) {
	return f(ctx, req)
}

// HTTPNetwork 基于共享 http.Client 实现 Network。
type HTTPNetwork struct {
	client *http.Client
}

// NewHTTPNetwork 构造 HTTPNetwork，client 为空时使用 http.DefaultClient。
func NewHTTPNetwork(client *http.Client) *HTTPNetwork {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPNetwork{client: client}
}

func (n *HTTPNetwork) Fetch(ctx context.Context, req *Request) (cache.Response, error) {
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return cache.Response{}, err
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return cache.Response{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return cache.Response{}, fmt.Errorf("read response body: %w", err)
	}
	return cache.Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   payload,
	}, nil
}
