package types

// ScrapeConf 包含代理源抓取相关的配置
type ScrapeConf struct {
	SourcesFile    string `ini:"sources_file"`
	TimeoutSeconds int    `ini:"timeout_seconds"`
}

// CheckConf 包含验证引擎的配置
type CheckConf struct {
	TimeoutMs   int    `ini:"timeout_ms"`
	Concurrency int    `ini:"concurrency"`
	Target      string `ini:"target"`
}

// OutputConf 指定输出文件与黑名单所在目录
type OutputConf struct {
	Dir string `ini:"dir"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是otoproxy的统一配置结构体
type Config struct {
	ScrapeConf `ini:"scrape"`
	CheckConf  `ini:"check"`
	OutputConf `ini:"output"`
	LogConf    `ini:"log"`
}
