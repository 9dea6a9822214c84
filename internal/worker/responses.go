package worker

import (
	"net/http"

	"github.com/learning-journal/journal-cache/internal/cache"
)

const offlineAPIBody = `{"error":"Offline","offline":true,"data":[]}`

const offlineDocumentBody = `<!doctype html><html><head><meta charset="utf-8"><title>Offline</title></head>` +
	`<body><h1>You are offline</h1><p>This page is not available offline yet.</p></body></html>`

// OfflineAPIResponse 是 API 请求在离线且无缓存时的固定响应。
func OfflineAPIResponse() cache.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return cache.Response{
		Status: http.StatusServiceUnavailable,
		Header: header,
		Body:   []byte(offlineAPIBody),
	}
}

// NotFoundResponse 是静态资源与通用请求未命中时的空 404。
func NotFoundResponse() cache.Response {
	return cache.Response{
		Status: http.StatusNotFound,
		Header: http.Header{},
		Body:   []byte{},
	}
}

// offlineDocumentResponse 只在离线页本身也未缓存时使用。
func offlineDocumentResponse() cache.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	return cache.Response{
		Status: http.StatusServiceUnavailable,
		Header: header,
		Body:   []byte(offlineDocumentBody),
	}
}
