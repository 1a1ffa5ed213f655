package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"otoproxy/internal/shared/config"
	"otoproxy/internal/shared/logger"
	"otoproxy/internal/shared/types"
	runner "otoproxy/proxypool"
	"otoproxy/proxypool/checker"
	"otoproxy/proxypool/scraper"
	"otoproxy/proxypool/storage"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "otoproxy.ini")

	// 1. 加载 .ini 行为配置
	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 加载代理源列表
	sourcesPath := cfg.ScrapeConf.SourcesFile
	if sourcesPath == "" {
		sourcesPath = filepath.Join(*configDir, "sources.txt")
	}
	urls, err := config.LoadSources(sourcesPath)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed to load sources file '%s'", sourcesPath)
	}

	// 3. 组装流水线并执行一次运行
	store, err := storage.NewFileStore(cfg.OutputConf.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open output storage")
	}

	scrapers := scraper.FromSourceURLs(urls, cfg.ScrapeConf.TimeoutSeconds)
	chk := checker.New(
		time.Duration(cfg.CheckConf.TimeoutMs)*time.Millisecond,
		cfg.CheckConf.Concurrency,
		cfg.CheckConf.Target,
	)

	// 外部中断只取消进行中的探测，已持久化的文件不受影响。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := runner.New(store, scrapers, chk)
	if _, err := run.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}
