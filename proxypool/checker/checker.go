package checker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"otoproxy/internal/shared/logger"
	"otoproxy/proxypool/model"
)

// 进度日志的间隔（已处理候选数）。
const progressEvery = 100

// Checker 对候选代理执行有界并发的存活验证。
// 每个候选在独立的goroutine中探测全部协议，单个探测由
// context截止时间强制取消，不依赖远端的配合。
type Checker struct {
	timeout     time.Duration
	concurrency int
	target      string
}

// New 创建验证引擎。concurrency<=0 时退回到一个保守的默认值。
func New(timeout time.Duration, concurrency int, target string) *Checker {
	if concurrency <= 0 {
		concurrency = 5
	}
	if target == "" {
		target = "www.google.com:80"
	}
	return &Checker{
		timeout:     timeout,
		concurrency: concurrency,
		target:      target,
	}
}

// Check 验证全部候选并返回 (通过集, 失败集)。
// 两个集合不相交且合并后覆盖全部输入：没有候选被静默丢弃。
// 单个候选的失败是预期情况，永远不会作为错误返回；
// 只有整次运行被取消时才返回非nil错误，此时结果不可用。
func (c *Checker) Check(ctx context.Context, candidates []model.Candidate) ([]model.CheckResult, []model.Candidate, error) {
	l := logger.WithComponent("ProxyPool/Checker")
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	l.Info().
		Int("count", len(candidates)).
		Int("concurrency", c.concurrency).
		Dur("timeout", c.timeout).
		Msg("Starting verification batch...")

	var wg sync.WaitGroup
	resultsChan := make(chan model.CheckResult, len(candidates))
	semaphore := make(chan struct{}, c.concurrency)
	var processed int64

	total := len(candidates)
	for _, cand := range candidates {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, nil, ctx.Err()
		}
		wg.Add(1)

		go func(cand model.Candidate) {
			defer wg.Done()
			defer func() { <-semaphore }()

			res := c.checkOne(ctx, cand)
			resultsChan <- res

			if n := atomic.AddInt64(&processed, 1); n%progressEvery == 0 {
				l.Info().Msgf("Processed %d/%d candidates", n, total)
			}
		}(cand)
	}

	wg.Wait()
	close(resultsChan)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	passed := make([]model.CheckResult, 0, len(candidates))
	var failed []model.Candidate
	for res := range resultsChan {
		if len(res.Protocols) > 0 {
			passed = append(passed, res)
		} else {
			failed = append(failed, res.Candidate)
		}
	}

	l.Info().
		Int("passed", len(passed)).
		Int("failed", len(failed)).
		Msg("Verification batch finished.")
	return passed, failed, nil
}

// checkOne 依次探测每个协议，提示的协议排在最前。
// 每个探测有独立的截止时间；成功要求握手完成且耗时不超预算。
func (c *Checker) checkOne(ctx context.Context, cand model.Candidate) model.CheckResult {
	res := model.CheckResult{Candidate: cand}

	for _, proto := range probeOrder(cand.Hint) {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		err := c.probe(probeCtx, proto, cand.Key())
		latency := time.Since(start)
		cancel()

		if err != nil || latency > c.timeout {
			continue
		}
		res.Protocols = append(res.Protocols, proto)
		if res.Latency == 0 {
			res.Latency = latency
		}
	}
	return res
}

// probeOrder 返回以提示协议开头的探测顺序。
func probeOrder(hint model.Protocol) []model.Protocol {
	order := make([]model.Protocol, 0, len(model.Protocols))
	for _, p := range model.Protocols {
		if p == hint {
			order = append([]model.Protocol{p}, order...)
		} else {
			order = append(order, p)
		}
	}
	return order
}
