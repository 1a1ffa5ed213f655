package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"otoproxy/internal/shared/logger"
)

// 输出文件与黑名单的固定文件名。
const (
	AllFile       = "all-proxies.txt"
	HTTPFile      = "http-proxies.txt"
	Socks4File    = "socks4-proxies.txt"
	Socks5File    = "socks5-proxies.txt"
	BlacklistFile = "blacklist.txt"
)

// FileStore 将 "host:port" 记录集持久化为纯文本文件，每行一条。
// 写入是整文件覆盖语义：内容排序后先写临时文件再原子替换，
// 中途崩溃不会破坏上一次运行留下的有效内容。
type FileStore struct {
	dir string
}

// NewFileStore 创建一个以 dir 为根目录的存储。目录不存在时创建。
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the absolute location of a named record set.
func (fs *FileStore) Path(name string) string {
	return filepath.Join(fs.dir, name)
}

// LoadSet 从文件加载一个记录集。文件不存在视为空集。
func (fs *FileStore) LoadSet(name string) (map[string]struct{}, error) {
	l := logger.WithComponent("ProxyPool/Storage")

	file, err := os.Open(fs.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			l.Debug().Str("file", name).Msg("Record file not found, starting with an empty set.")
			return make(map[string]struct{}), nil
		}
		return nil, err
	}
	defer file.Close()

	set := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, ":") {
			continue
		}
		set[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.Debug().Str("file", name).Int("count", len(set)).Msg("Loaded record set.")
	return set, nil
}

// SaveSet 将记录集排序后原子写入文件。
func (fs *FileStore) SaveSet(name string, set map[string]struct{}) error {
	l := logger.WithComponent("ProxyPool/Storage")

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sortKeys(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("\n")
	}

	path := fs.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	l.Debug().Str("file", name).Int("count", len(keys)).Msg("Saved record set.")
	return nil
}

// sortKeys 按 (host, port) 排序，host字典序优先，端口按数值比较。
func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		hi, pi := splitKey(keys[i])
		hj, pj := splitKey(keys[j])
		if hi != hj {
			return hi < hj
		}
		return pi < pj
	})
}

func splitKey(key string) (string, int) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return key, 0
	}
	port, _ := strconv.Atoi(key[idx+1:])
	return key[:idx], port
}
