package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// 缓存后端取值。
const (
	StorageMemory = "memory"
	StorageDisk   = "disk"
	StorageSQLite = "sqlite"
)

// GlobalConfig 描述进程级运行参数：监听端口、日志与缓存存储。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StorageBackend  string   `mapstructure:"StorageBackend"`
	StoragePath     string   `mapstructure:"StoragePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// WorkerConfig 决定缓存控制器的版本、作用域与策略参数。
type WorkerConfig struct {
	Origin       string   `mapstructure:"Origin"`
	CachePrefix  string   `mapstructure:"CachePrefix"`
	CacheVersion string   `mapstructure:"CacheVersion"`
	SkipWaiting  bool     `mapstructure:"SkipWaiting"`
	APIPrefix    string   `mapstructure:"APIPrefix"`
	AssetPrefix  string   `mapstructure:"AssetPrefix"`
	SiteRoot     string   `mapstructure:"SiteRoot"`
	OfflinePage  string   `mapstructure:"OfflinePage"`
	StaticAssets []string `mapstructure:"StaticAssets"`
}

// OriginConfig 仅在 -origin 模式下使用。
type OriginConfig struct {
	ListenPort int `mapstructure:"ListenPort"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Worker WorkerConfig `mapstructure:"Worker"`
	Origin OriginConfig `mapstructure:"Origin"`
}

// OriginURL 解析 Worker.Origin（假定 Validate 已经通过）。
func (w WorkerConfig) OriginURL() (*url.URL, error) {
	return url.Parse(strings.TrimSpace(w.Origin))
}

// CacheName 返回当前版本的缓存仓名称。
func (w WorkerConfig) CacheName() string {
	return w.CachePrefix + w.CacheVersion
}
