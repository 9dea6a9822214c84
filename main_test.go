package main

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/learning-journal/journal-cache/internal/cache"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("JOURNAL_CACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsDefaultPath(t *testing.T) {
	t.Setenv("JOURNAL_CACHE_CONFIG", "")

	opts, err := parseCLIFlags([]string{"-list-caches"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" || !opts.listCaches {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestParseCLIFlagsRejectsConflictingModes(t *testing.T) {
	if _, err := parseCLIFlags([]string{"-origin", "-list-caches"}); err == nil {
		t.Fatalf("-origin 与 -list-caches 同时出现应报错")
	}
	if _, err := parseCLIFlags([]string{"-unknown"}); err == nil {
		t.Fatalf("未知参数应报错")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含错误说明，得到 %q", stdErrBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "journal-cache") {
		t.Fatalf("version 输出应包含 journal-cache 标识")
	}
}

func TestRunListCaches(t *testing.T) {
	storage := t.TempDir()
	seedDiskCaches(t, storage)

	configPath := writeConfigFile(t, `
ListenPort = 5000
StorageBackend = "disk"
StoragePath = "`+storage+`"

[Worker]
Origin = "http://127.0.0.1:5001"
CacheVersion = "v2"
`)

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, listCaches: true})
	if code != 0 {
		t.Fatalf("list-caches 应成功，得到 %d: %s", code, stdErrBuffer().String())
	}

	out := stdOutBuffer().String()
	for _, want := range []string{"learning-journal-v1", "learning-journal-v2", "CACHE"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Fatalf("输出缺少 %s:\n%s", want, out)
		}
	}
	lines := strings.Split(out, "\n")
	var current string
	for _, line := range lines {
		if strings.Contains(line, "learning-journal-v2") {
			current = line
		}
	}
	if !strings.Contains(current, "*") || !strings.Contains(current, "2") {
		t.Fatalf("当前版本行应标记 * 并显示 2 条目，得到 %q", current)
	}
}

func seedDiskCaches(t *testing.T, storage string) {
	t.Helper()
	ctx := context.Background()
	reg, closer, err := cache.OpenRegistry(cache.BackendDisk, storage)
	if err != nil {
		t.Fatalf("打开缓存失败: %v", err)
	}
	defer closer.Close()

	entries := map[string][]string{
		"learning-journal-v1": {"http://127.0.0.1:5001/"},
		"learning-journal-v2": {"http://127.0.0.1:5001/", "http://127.0.0.1:5001/offline.html"},
	}
	for name, urls := range entries {
		store, err := reg.Open(ctx, name)
		if err != nil {
			t.Fatalf("打开 %s 失败: %v", name, err)
		}
		for _, u := range urls {
			resp := cache.Response{Status: http.StatusOK, Header: http.Header{}, Body: []byte("ok")}
			if err := store.Put(ctx, cache.KeyFor(http.MethodGet, u), resp); err != nil {
				t.Fatalf("写入 %s 失败: %v", u, err)
			}
		}
	}
}
