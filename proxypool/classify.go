package runner

import (
	"fmt"

	"otoproxy/proxypool/model"
	"otoproxy/proxypool/storage"
)

// outputFiles 将确认的协议映射到对应的输出文件。
var outputFiles = map[model.Protocol]string{
	model.ProtocolHTTP:   storage.HTTPFile,
	model.ProtocolSocks4: storage.Socks4File,
	model.ProtocolSocks5: storage.Socks5File,
}

// classifyAndPersist 把验证结果并入既有的持久化集合并落盘。
//
// 失败的候选并入黑名单，同时从所有输出集中移除；通过的候选按
// 确认的协议加入对应集合（确认多个协议的加入每个匹配的集合）。
// "all" 集在写入时重建为三个协议集的并集，分区不变式因此是
// 结构性成立的，而不是事后修补的。
func (r *Runner) classifyAndPersist(
	sets map[model.Protocol]map[string]struct{},
	blacklist map[string]struct{},
	passed []model.CheckResult,
	failed []model.Candidate,
) error {
	for _, cand := range failed {
		blacklist[cand.Key()] = struct{}{}
	}

	for _, res := range passed {
		key := res.Candidate.Key()
		for _, proto := range res.Protocols {
			sets[proto][key] = struct{}{}
		}
	}

	// 黑名单与输出集互斥：一旦进入黑名单，键从所有输出集消失。
	for key := range blacklist {
		for _, set := range sets {
			delete(set, key)
		}
	}

	all := make(map[string]struct{})
	for _, set := range sets {
		for key := range set {
			all[key] = struct{}{}
		}
	}

	for proto, name := range outputFiles {
		if err := r.store.SaveSet(name, sets[proto]); err != nil {
			return fmt.Errorf("output storage unwritable (%s): %w", name, err)
		}
	}
	if err := r.store.SaveSet(storage.AllFile, all); err != nil {
		return fmt.Errorf("output storage unwritable (%s): %w", storage.AllFile, err)
	}
	if err := r.store.SaveSet(storage.BlacklistFile, blacklist); err != nil {
		return fmt.Errorf("blacklist storage unwritable: %w", err)
	}
	return nil
}
