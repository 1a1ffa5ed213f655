package model

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Protocol 表示一个代理协议。空值表示协议未知/未验证。
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolSocks4 Protocol = "socks4"
	ProtocolSocks5 Protocol = "socks5"
)

// Protocols lists every protocol the checker knows how to probe.
var Protocols = []Protocol{ProtocolHTTP, ProtocolSocks4, ProtocolSocks5}

// Candidate 是一个未经验证的代理候选。
// 身份由 (Host, Port) 决定；Hint 只是代理源声称的协议，
// 在成功握手验证之前不具有权威性。
type Candidate struct {
	Host string
	Port int

	// Hint 是来源网站声称的协议，作为验证引擎的探测顺序提示。
	Hint Protocol
}

// Key returns the canonical "host:port" identity of the candidate.
func (c Candidate) Key() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Candidate) String() string {
	return c.Key()
}

// CheckResult 记录一个候选的验证结果。
// Protocols 为空表示验证失败。
type CheckResult struct {
	Candidate Candidate

	// Protocols 是实际握手成功的协议集合，可能多于一个。
	Protocols []Protocol

	// Latency 是首个成功握手的耗时。
	Latency time.Duration
}

// hostPortPattern 从一行自由文本中提取 ip:port。
var hostPortPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,3}){3}):(\d{1,5})`)

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

// ParseLine 从一行原始文本解析出候选代理。
// 优先匹配行内任意位置的 IPv4:port；其次接受规范的 hostname:port。
// 无法解析时返回错误，调用方应丢弃并计数该行。
func ParseLine(line string, hint Protocol) (Candidate, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Candidate{}, fmt.Errorf("empty line")
	}

	if m := hostPortPattern.FindStringSubmatch(line); m != nil {
		ip := m[1]
		if net.ParseIP(ip) == nil {
			return Candidate{}, fmt.Errorf("invalid ip %q", ip)
		}
		port, err := parsePort(m[2])
		if err != nil {
			return Candidate{}, err
		}
		return Candidate{Host: ip, Port: port, Hint: hint}, nil
	}

	// hostname:port 形式（允许前缀协议头，如 "socks5://example.com:1080"）
	if idx := strings.Index(line, "://"); idx >= 0 {
		line = line[idx+3:]
	}
	host, portStr, err := net.SplitHostPort(line)
	if err != nil {
		return Candidate{}, fmt.Errorf("unparseable candidate line")
	}
	if !hostnamePattern.MatchString(host) {
		return Candidate{}, fmt.Errorf("invalid host %q", host)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Host: host, Port: port, Hint: hint}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
