package checker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"otoproxy/proxypool/model"
)

func (c *Checker) probe(ctx context.Context, proto model.Protocol, addr string) error {
	switch proto {
	case model.ProtocolHTTP:
		return c.probeHTTP(ctx, addr)
	case model.ProtocolSocks4:
		return c.probeSocks4(ctx, addr)
	case model.ProtocolSocks5:
		return c.probeSocks5(ctx, addr)
	default:
		return fmt.Errorf("unknown protocol %q", proto)
	}
}

// probeHTTP 通过代理向验证目标发送HEAD请求。
// 禁用连接复用，保证探测结束后立即释放文件描述符。
func (c *Checker) probeHTTP(ctx context.Context, addr string) error {
	proxyURL, err := url.Parse("http://" + addr)
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	transport := &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		DisableKeepAlives:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "http://"+c.target, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("received non-successful status code: %d", resp.StatusCode)
	}
	return nil
}

// probeSocks4 通过 SOCKS4 握手连接验证目标。
// h12.io/socks 的拨号器不感知context，因此在独立goroutine中执行，
// 由context截止时间兜底取消，连接在取消后仍会被关闭。
func (c *Checker) probeSocks4(ctx context.Context, addr string) error {
	dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", addr, c.timeout))

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := dial("tcp", c.target)
		ch <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		r.conn.Close()
		return nil
	}
}

// probeSocks5 通过 SOCKS5 握手连接验证目标。
func (c *Checker) probeSocks5(ctx context.Context, addr string) error {
	dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: c.timeout})
	if err != nil {
		return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	conn, err := dialer.(proxy.ContextDialer).DialContext(ctx, "tcp", c.target)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
