package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/config"
	"github.com/learning-journal/journal-cache/internal/journal"
	"github.com/learning-journal/journal-cache/internal/logging"
	"github.com/learning-journal/journal-cache/internal/proxy"
	"github.com/learning-journal/journal-cache/internal/server"
	"github.com/learning-journal/journal-cache/internal/server/routes"
	"github.com/learning-journal/journal-cache/internal/version"
	"github.com/learning-journal/journal-cache/internal/worker"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	originMode  bool
	listCaches  bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.Worker.Origin
		fields["cache"] = cfg.Worker.CacheName()
		fields["storage_backend"] = cfg.Global.StorageBackend
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if opts.originMode {
		if err := startOriginServer(cfg, logger); err != nil {
			fmt.Fprintf(stdErr, "源站启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	// 启动顺序：配置 → 缓存注册表 → 控制器注册 → Fiber server，
	// 保证所有请求共享同一个注册表与控制器实例。
	registry, closer, err := cache.OpenRegistry(cfg.Global.StorageBackend, cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存存储失败: %v\n", err)
		return 1
	}
	defer closer.Close()

	if opts.listCaches {
		if err := printCacheTable(context.Background(), registry, cfg.Worker.CacheName()); err != nil {
			fmt.Fprintf(stdErr, "读取缓存失败: %v\n", err)
			return 1
		}
		return 0
	}

	base, err := workerOptions(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "解析源站失败: %v\n", err)
		return 1
	}

	registration, err := worker.NewRegistration(worker.RegistrationOptions{
		Registry: registry,
		Network:  worker.NewHTTPNetwork(server.NewUpstreamClient(cfg)),
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化控制器失败: %v\n", err)
		return 1
	}
	defer registration.Close()

	initial := base
	initial.Version = cfg.Worker.CacheVersion
	if _, err := registration.Register(context.Background(), initial); err != nil {
		// 源站不可用时仍然启动，请求直通网络，稍后可通过 /-/sw/register 重试。
		fields := logging.LifecycleFields("install", cfg.Worker.CacheName(), cfg.Worker.CacheVersion)
		fields["error"] = err.Error()
		logger.WithFields(fields).Warn("initial_register_failed")
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["origin"] = cfg.Worker.Origin
	fields["cache"] = cfg.Worker.CacheName()
	fields["storage_backend"] = cfg.Global.StorageBackend
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, registration, base, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("journal-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		originMode bool
		listCaches bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 JOURNAL_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&originMode, "origin", false, "以 journal 源站模式运行")
	fs.BoolVar(&listCaches, "list-caches", false, "列出缓存仓后退出")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if originMode && listCaches {
		return cliOptions{}, errors.New("-origin 与 -list-caches 不能同时使用")
	}

	path := os.Getenv("JOURNAL_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		originMode:  originMode,
		listCaches:  listCaches,
	}, nil
}

// workerOptions 把配置转换为控制器参数，Version 由调用方填写。
func workerOptions(cfg *config.Config) (worker.Options, error) {
	origin, err := cfg.Worker.OriginURL()
	if err != nil {
		return worker.Options{}, err
	}
	return worker.Options{
		Prefix:       cfg.Worker.CachePrefix,
		Origin:       origin,
		StaticAssets: append([]string(nil), cfg.Worker.StaticAssets...),
		SiteRoot:     cfg.Worker.SiteRoot,
		OfflinePage:  cfg.Worker.OfflinePage,
		APIPrefix:    cfg.Worker.APIPrefix,
		AssetPrefix:  cfg.Worker.AssetPrefix,
		SkipWaiting:  cfg.Worker.SkipWaiting,
	}, nil
}

func startHTTPServer(cfg *config.Config, registration *worker.Registration, base worker.Options, logger *logrus.Logger) error {
	scope, err := server.NewScope(cfg)
	if err != nil {
		return err
	}
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Scope:      scope,
		Proxy:      proxy.NewHandler(registration, logger),
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterWorkerRoutes(app, registration, base, logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
		"origin": scope.Origin.String(),
	}).Info("Fiber 服务启动")

	return listenUntilSignal(app, port, logger)
}

func startOriginServer(cfg *config.Config, logger *logrus.Logger) error {
	port := cfg.Origin.ListenPort
	app := journal.NewApp(journal.NewSeededStorage(), logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
		"mode":   "origin",
	}).Info("源站服务启动")

	return listenUntilSignal(app, port, logger)
}

// listenUntilSignal 在收到 SIGINT/SIGTERM 时优雅关闭 Fiber。
func listenUntilSignal(app *fiber.App, port int, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	return app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
}
