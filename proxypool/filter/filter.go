package filter

import "otoproxy/proxypool/model"

// Stats 记录一次去重过程中丢弃的候选数量。
type Stats struct {
	Duplicates  int
	Blacklisted int
}

// Dedupe 将多源候选合并为唯一集合：按 (host, port) 去重
// （重复键以首个协议提示为准），并剔除黑名单中的键。
// 纯内存单趟归并，不做任何I/O。保留首次出现的顺序。
func Dedupe(candidates []model.Candidate, blacklist map[string]struct{}) ([]model.Candidate, Stats) {
	var stats Stats
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]model.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.Key()
		if _, ok := blacklist[key]; ok {
			stats.Blacklisted++
			continue
		}
		if _, ok := seen[key]; ok {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	return unique, stats
}
