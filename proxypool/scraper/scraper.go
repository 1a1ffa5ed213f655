package scraper

import (
	"context"
	"strings"

	"otoproxy/proxypool/model"
)

// Scraper 接口定义了从代理源抓取候选代理的行为。
type Scraper interface {
	// Scrape 执行抓取操作，并返回解析出的候选列表。
	// 实现者应只负责抓取和初步解析，不进行验证。
	Scrape(ctx context.Context) ([]model.Candidate, error)

	// Name 返回抓取器的名称，用于日志记录。
	Name() string
}

// FromSourceURLs 为每个配置的源URL构建一个抓取器。
// 协议提示从URL文本推断：包含 "socks4"/"socks5" 的源被视为
// 对应协议的列表，其余默认为 http。
func FromSourceURLs(urls []string, timeoutSeconds int) []Scraper {
	scrapers := make([]Scraper, 0, len(urls))
	for _, u := range urls {
		scrapers = append(scrapers, NewURLScraper(u, HintFromURL(u), timeoutSeconds))
	}
	return scrapers
}

// HintFromURL 根据源URL猜测其列表的协议。
func HintFromURL(rawurl string) model.Protocol {
	lower := strings.ToLower(rawurl)
	switch {
	case strings.Contains(lower, "socks4"):
		return model.ProtocolSocks4
	case strings.Contains(lower, "socks5"):
		return model.ProtocolSocks5
	default:
		return model.ProtocolHTTP
	}
}
