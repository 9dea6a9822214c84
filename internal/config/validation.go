package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var supportedBackends = map[string]struct{}{
	StorageMemory: {},
	StorageDisk:   {},
	StorageSQLite: {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if _, ok := supportedBackends[g.StorageBackend]; !ok {
		return newFieldError("Global.StorageBackend", "仅支持 memory|disk|sqlite")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if c.Origin.ListenPort <= 0 || c.Origin.ListenPort > 65535 {
		return newFieldError("Origin.ListenPort", "必须在 1-65535")
	}

	return c.Worker.validate()
}

func (w WorkerConfig) validate() error {
	if reason := validateOrigin(w.Origin); reason != "" {
		return newFieldError(workerField("Origin"), reason)
	}
	if strings.TrimSpace(w.CachePrefix) == "" {
		return newFieldError(workerField("CachePrefix"), "不能为空")
	}
	if w.CacheVersion == "" {
		return newFieldError(workerField("CacheVersion"), "不能为空")
	}
	if strings.ContainsAny(w.CachePrefix+w.CacheVersion, `/\`) {
		return newFieldError(workerField("CacheVersion"), "缓存名不允许包含路径分隔符")
	}
	for _, field := range []struct{ name, value string }{
		{"APIPrefix", w.APIPrefix},
		{"AssetPrefix", w.AssetPrefix},
		{"SiteRoot", w.SiteRoot},
		{"OfflinePage", w.OfflinePage},
	} {
		if !strings.HasPrefix(field.value, "/") {
			return newFieldError(workerField(field.name), "必须是以 / 开头的路径")
		}
	}
	for _, asset := range w.StaticAssets {
		if !strings.HasPrefix(asset, "/") {
			return newFieldError(workerField("StaticAssets"), fmt.Sprintf("必须是以 / 开头的路径: %s", asset))
		}
	}
	if !slices.Contains(w.StaticAssets, w.SiteRoot) {
		return newFieldError(workerField("StaticAssets"), "必须包含 SiteRoot")
	}
	if !slices.Contains(w.StaticAssets, w.OfflinePage) {
		return newFieldError(workerField("StaticAssets"), "必须包含 OfflinePage")
	}
	return nil
}

// validateOrigin 返回空字符串表示通过，否则返回失败原因。
func validateOrigin(raw string) string {
	if raw == "" {
		return "缺少源站地址"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("无法解析源站: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Sprintf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Sprintf("源站缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Sprintf("源站不允许包含路径: %s", raw)
	}
	return ""
}
