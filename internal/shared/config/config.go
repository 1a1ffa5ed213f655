package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"otoproxy/internal/shared/types"
)

// 配置默认值，与验证引擎的延迟预算保持一致。
const (
	DefaultCheckTimeoutMs = 1500
	DefaultConcurrency    = 500
	DefaultCheckTarget    = "www.google.com:80"
	DefaultScrapeTimeout  = 10
)

// LoadIni 加载 otoproxy.ini 行为配置文件并应用默认值。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	applyDefaults(cfg)
	overrideFromEnvInt(&cfg.CheckConf.TimeoutMs, "CHECK_TIMEOUT_MS")
	overrideFromEnvInt(&cfg.CheckConf.Concurrency, "CHECK_CONCURRENCY")
	return nil
}

func applyDefaults(cfg *types.Config) {
	if cfg.CheckConf.TimeoutMs <= 0 {
		cfg.CheckConf.TimeoutMs = DefaultCheckTimeoutMs
	}
	if cfg.CheckConf.Concurrency <= 0 {
		cfg.CheckConf.Concurrency = DefaultConcurrency
	}
	if cfg.CheckConf.Target == "" {
		cfg.CheckConf.Target = DefaultCheckTarget
	}
	if cfg.ScrapeConf.TimeoutSeconds <= 0 {
		cfg.ScrapeConf.TimeoutSeconds = DefaultScrapeTimeout
	}
	if cfg.OutputConf.Dir == "" {
		cfg.OutputConf.Dir = "proxy"
	}
}

// LoadSources 加载代理源URL列表文件，每行一个URL。
// 空行与 # 注释行被跳过；非 http(s) 行同样被忽略。
func LoadSources(fileName string) ([]string, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "http") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
