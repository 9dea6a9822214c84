package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/learning-journal/journal-cache/internal/logging"
	"github.com/learning-journal/journal-cache/internal/server"
	"github.com/learning-journal/journal-cache/internal/worker"
)

// 代理写回给浏览器的诊断头。
const (
	HeaderClientID     = "X-Journal-Client"
	HeaderCacheSource  = "X-Journal-Cache-Source"
	HeaderStrategy     = "X-Journal-Strategy"
	HeaderCacheVersion = "X-Journal-Cache-Version"
)

// Fetcher 是代理依赖的控制器能力，测试中可替换。
type Fetcher interface {
	Fetch(ctx context.Context, clientID string, req *worker.Request) (worker.Result, error)
}

// Handler 把每个 HTTP 请求转换为一次控制器 fetch，并将结果写回 Fiber 响应。
type Handler struct {
	fetcher Fetcher
	logger  *logrus.Logger
}

// NewHandler constructs a proxy handler backed by the registration.
func NewHandler(fetcher Fetcher, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Handler{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Handle 构造控制器请求、执行 fetch 并输出结构化日志。拦截的 GET 总会得到响应；
// 直通请求的传输错误以 502 返回。
func (h *Handler) Handle(c fiber.Ctx, scope *server.Scope) error {
	started := time.Now()
	requestID := server.RequestID(c)

	target, err := scope.Resolve(string(c.Request().Header.RequestURI()))
	if err != nil {
		h.logResult(c, requestID, "", worker.Result{}, fiber.StatusBadRequest, started, err)
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request_target")
	}
	req := buildRequest(c, target)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	clientID := strings.TrimSpace(c.Get(HeaderClientID))
	result, err := h.fetcher.Fetch(ctx, clientID, req)
	if err != nil {
		h.logResult(c, requestID, target.String(), result, fiber.StatusBadGateway, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}

	h.logResult(c, requestID, target.String(), result, result.Response.Status, started, nil)
	return writeResult(c, result, requestID)
}

func buildRequest(c fiber.Ctx, target *url.URL) *worker.Request {
	header := http.Header{}
	server.CopyHeaders(header, fiberHeadersAsHTTP(c))
	header.Del("Accept-Encoding")
	header.Del("Host")
	header.Del(HeaderClientID)
	header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := header.Get("X-Forwarded-For"); prior != "" {
			header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			header.Set("X-Forwarded-For", ip)
		}
	}
	header.Set("X-Forwarded-Proto", c.Protocol())

	var body []byte
	if raw := c.Body(); len(raw) > 0 {
		body = append([]byte(nil), raw...)
	}

	return &worker.Request{
		Method:      strings.ToUpper(c.Method()),
		URL:         target,
		Header:      header,
		Body:        body,
		Destination: strings.ToLower(strings.TrimSpace(c.Get("Sec-Fetch-Dest"))),
		Mode:        strings.ToLower(strings.TrimSpace(c.Get("Sec-Fetch-Mode"))),
	}
}

func writeResult(c fiber.Ctx, result worker.Result, requestID string) error {
	resp := result.Response
	copyResponseHeaders(c, resp.Header)
	c.Set(HeaderCacheSource, string(result.Source))
	c.Set(HeaderStrategy, string(result.Strategy))
	if result.Version != "" {
		c.Set(HeaderCacheVersion, result.Version)
	}
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}

	status := resp.Status
	if status == 0 {
		status = fiber.StatusOK
	}
	c.Status(status)
	if c.Method() == fiber.MethodHead {
		return nil
	}
	return c.Send(resp.Body)
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	c fiber.Ctx,
	requestID string,
	target string,
	result worker.Result,
	status int,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(
		requestID,
		string(result.Strategy),
		string(result.Source),
		result.Version,
		status,
	)
	fields["method"] = c.Method()
	fields["url"] = target
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if clientID := c.Get(HeaderClientID); clientID != "" {
		fields["client"] = clientID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// copyResponseHeaders 跳过 hop-by-hop 字段与 Content-Length（由 Fiber 按正文重新计算）。
func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for i, value := range values {
			if i == 0 {
				c.Set(key, value)
				continue
			}
			c.Response().Header.Add(key, value)
		}
	}
}
