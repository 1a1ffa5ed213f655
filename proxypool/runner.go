// Package runner orchestrates a single scrape -> dedupe -> check -> persist
// cycle over the configured proxy sources.
package runner

import (
	"context"
	"fmt"
	"sync"

	"otoproxy/internal/shared/logger"
	"otoproxy/proxypool/checker"
	"otoproxy/proxypool/filter"
	"otoproxy/proxypool/model"
	"otoproxy/proxypool/scraper"
	"otoproxy/proxypool/storage"
)

// Stats 汇总一次运行各阶段的计数。
type Stats struct {
	Sources      int
	SourceErrors int
	Fetched      int
	Duplicates   int
	Blacklisted  int
	Unique       int
	Passed       int
	Failed       int
}

// Runner 按顺序驱动流水线各阶段。
// 持久化状态（黑名单与输出集）在整批验证完成后才被改写，
// 运行中途被取消不会触碰磁盘上的既有文件。
type Runner struct {
	store    *storage.FileStore
	scrapers []scraper.Scraper
	checker  *checker.Checker
}

// New 创建运行协调器。
func New(store *storage.FileStore, scrapers []scraper.Scraper, chk *checker.Checker) *Runner {
	return &Runner{
		store:    store,
		scrapers: scrapers,
		checker:  chk,
	}
}

// Run 执行一次完整的流水线并返回汇总统计。
// 单个源或单个候选的失败不会中止运行；只有持久化状态
// 不可读/不可写，或整次运行被取消时才返回错误。
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	l := logger.WithComponent("ProxyPool/Runner")
	var stats Stats
	stats.Sources = len(r.scrapers)

	// 开始前加载全部持久化状态：此时失败可以在未产生任何
	// 网络流量、未改写任何文件的情况下中止。
	blacklist, err := r.store.LoadSet(storage.BlacklistFile)
	if err != nil {
		return stats, fmt.Errorf("blacklist storage unreadable: %w", err)
	}
	sets := map[model.Protocol]map[string]struct{}{}
	for proto, name := range outputFiles {
		set, err := r.store.LoadSet(name)
		if err != nil {
			return stats, fmt.Errorf("output storage unreadable (%s): %w", name, err)
		}
		sets[proto] = set
	}
	l.Info().Int("blacklist", len(blacklist)).Int("sources", stats.Sources).Msg("Starting run.")

	// 1. 抓取：各源并发执行，单源失败只记录警告。
	raw := r.scrapeAll(ctx, &stats)
	stats.Fetched = len(raw)

	// 2. 去重 + 黑名单过滤。
	unique, fstats := filter.Dedupe(raw, blacklist)
	stats.Duplicates = fstats.Duplicates
	stats.Blacklisted = fstats.Blacklisted
	stats.Unique = len(unique)
	l.Info().
		Int("fetched", stats.Fetched).
		Int("duplicates", stats.Duplicates).
		Int("blacklisted", stats.Blacklisted).
		Int("unique", stats.Unique).
		Msg("Deduplication finished.")

	// 3. 验证。
	passed, failed, err := r.checker.Check(ctx, unique)
	if err != nil {
		return stats, fmt.Errorf("verification aborted: %w", err)
	}
	stats.Passed = len(passed)
	stats.Failed = len(failed)

	// 运行被取消时丢弃未提交的内存结果，磁盘上的文件保持原样。
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("run cancelled: %w", err)
	}

	// 4. 分类并持久化。
	if err := r.classifyAndPersist(sets, blacklist, passed, failed); err != nil {
		return stats, err
	}

	l.Info().
		Int("sources", stats.Sources).
		Int("source_errors", stats.SourceErrors).
		Int("fetched", stats.Fetched).
		Int("duplicates", stats.Duplicates).
		Int("blacklisted", stats.Blacklisted).
		Int("passed", stats.Passed).
		Int("failed", stats.Failed).
		Msg("Run finished.")
	return stats, nil
}

// scrapeAll 并发抓取所有源并合并结果。
func (r *Runner) scrapeAll(ctx context.Context, stats *Stats) []model.Candidate {
	l := logger.WithComponent("ProxyPool/Runner")

	var wg sync.WaitGroup
	var mu sync.Mutex
	// 按源的配置顺序收集，保证重复键的“首个提示优先”是确定性的。
	results := make([][]model.Candidate, len(r.scrapers))

	for i, s := range r.scrapers {
		wg.Add(1)
		go func(i int, sc scraper.Scraper) {
			defer wg.Done()
			candidates, err := sc.Scrape(ctx)
			if err != nil {
				l.Warn().Err(err).Str("source", sc.Name()).Msg("Scraper failed.")
				mu.Lock()
				stats.SourceErrors++
				mu.Unlock()
				return
			}
			results[i] = candidates
		}(i, s)
	}
	wg.Wait()

	var raw []model.Candidate
	for _, candidates := range results {
		raw = append(raw, candidates...)
	}
	return raw
}
