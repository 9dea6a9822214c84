package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fixturePath 返回 testdata 下的配置样例路径。
func fixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// writeConfig 把 TOML 文本写入临时目录并返回路径。
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// validConfig 构造一份能通过 Validate 的配置，测试在此基础上逐项破坏。
func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			StorageBackend:  StorageDisk,
			StoragePath:     "./data",
			UpstreamTimeout: Duration(time.Second),
		},
		Worker: WorkerConfig{
			Origin:       "http://localhost:5001",
			CachePrefix:  "learning-journal-",
			CacheVersion: "v2",
			SkipWaiting:  true,
			APIPrefix:    "/api/",
			AssetPrefix:  "/assets/",
			SiteRoot:     "/",
			OfflinePage:  "/offline.html",
			StaticAssets: append([]string(nil), defaultStaticAssets...),
		},
		Origin: OriginConfig{ListenPort: 5001},
	}
}
