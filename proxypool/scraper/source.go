package scraper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"otoproxy/internal/shared/logger"
	"otoproxy/proxypool/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// 单个源响应体的读取上限，防止异常源拖垮整次运行。
const maxBodyBytes = 8 << 20

// URLScraper 从单个URL抓取候选列表。
// 纯文本响应逐行解析；HTML响应则遍历表格行提取 ip/port 列。
type URLScraper struct {
	client *http.Client
	url    string
	hint   model.Protocol
}

// NewURLScraper 创建一个新的实例。
func NewURLScraper(rawurl string, hint model.Protocol, timeoutSeconds int) *URLScraper {
	return &URLScraper{
		client: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		url:  rawurl,
		hint: hint,
	}
}

func (s *URLScraper) Name() string {
	if u, err := url.Parse(s.url); err == nil && u.Host != "" {
		return u.Host
	}
	return s.url
}

func (s *URLScraper) Scrape(ctx context.Context) ([]model.Candidate, error) {
	l := logger.WithComponent("ProxyPool/Scraper")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received non-2xx status code (%d) from %s", resp.StatusCode, s.Name())
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)

	var candidates []model.Candidate
	var dropped int
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		candidates, dropped, err = s.parseHTML(body)
	} else {
		candidates, dropped, err = s.parseText(body)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", s.Name(), err)
	}

	l.Debug().
		Str("source", s.Name()).
		Int("count", len(candidates)).
		Int("dropped", dropped).
		Msg("Scrape finished.")
	return candidates, nil
}

// parseText 逐行扫描 "ip:port" 形式的纯文本列表。
func (s *URLScraper) parseText(r io.Reader) ([]model.Candidate, int, error) {
	var candidates []model.Candidate
	dropped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := model.ParseLine(line, s.hint)
		if err != nil {
			dropped++
			continue
		}
		candidates = append(candidates, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, dropped, err
	}
	return candidates, dropped, nil
}

// parseHTML 遍历HTML表格，前两列分别视为 ip 和 port。
func (s *URLScraper) parseHTML(r io.Reader) ([]model.Candidate, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, err
	}

	var candidates []model.Candidate
	dropped := 0
	doc.Find("tr").Each(func(_ int, sel *goquery.Selection) {
		cols := sel.Find("td")
		if cols.Length() < 2 {
			return
		}
		ip := strings.TrimSpace(cols.Eq(0).Text())
		portStr := strings.TrimSpace(cols.Eq(1).Text())
		if ip == "" || portStr == "" {
			return
		}
		c, err := model.ParseLine(ip+":"+portStr, s.hint)
		if err != nil {
			dropped++
			return
		}
		candidates = append(candidates, c)
	})
	return candidates, dropped, nil
}
