package runner

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"otoproxy/proxypool/checker"
	"otoproxy/proxypool/model"
	"otoproxy/proxypool/scraper"
	"otoproxy/proxypool/storage"
)

// startSocks5Proxy runs a minimal SOCKS5 endpoint that accepts any CONNECT.
func startSocks5Proxy(t *testing.T) model.Candidate {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				greeting := make([]byte, 2)
				if _, err := io.ReadFull(br, greeting); err != nil || greeting[0] != 0x05 {
					return
				}
				io.ReadFull(br, make([]byte, int(greeting[1])))
				c.Write([]byte{0x05, 0x00})
				hdr := make([]byte, 4)
				if _, err := io.ReadFull(br, hdr); err != nil {
					return
				}
				switch hdr[3] {
				case 0x01:
					io.ReadFull(br, make([]byte, 6))
				case 0x03:
					l := make([]byte, 1)
					io.ReadFull(br, l)
					io.ReadFull(br, make([]byte, int(l[0])+2))
				case 0x04:
					io.ReadFull(br, make([]byte, 18))
				}
				c.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			}(conn)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return model.Candidate{Host: host, Port: port}
}

func deadCandidate(t *testing.T) model.Candidate {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close()
	return model.Candidate{Host: host, Port: port}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func newTestRunner(t *testing.T, dir string, sourceURL string) *Runner {
	t.Helper()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() returned an error: %v", err)
	}
	scrapers := []scraper.Scraper{scraper.NewURLScraper(sourceURL, model.ProtocolSocks5, 5)}
	chk := checker.New(300*time.Millisecond, 10, "127.0.0.1:1")
	return New(store, scrapers, chk)
}

func TestRun_EndToEnd(t *testing.T) {
	good := startSocks5Proxy(t)
	dead := deadCandidate(t)

	// The dead candidate appears twice to exercise deduplication.
	body := good.Key() + "\n" + dead.Key() + "\n" + dead.Key() + "\n"
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer source.Close()

	dir := t.TempDir()
	r := newTestRunner(t, dir, source.URL)

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	if stats.Fetched != 3 || stats.Duplicates != 1 || stats.Unique != 2 {
		t.Errorf("Unexpected scrape stats: %+v", stats)
	}
	if stats.Passed != 1 || stats.Failed != 1 {
		t.Errorf("Expected 1 passed / 1 failed, got %d/%d", stats.Passed, stats.Failed)
	}

	socks5Content := readFile(t, filepath.Join(dir, storage.Socks5File))
	if !strings.Contains(socks5Content, good.Key()) {
		t.Errorf("Expected %q in %s, got %q", good.Key(), storage.Socks5File, socks5Content)
	}
	allContent := readFile(t, filepath.Join(dir, storage.AllFile))
	if allContent != socks5Content {
		t.Errorf("With only socks5 confirmations, %s must equal %s", storage.AllFile, storage.Socks5File)
	}
	blacklistContent := readFile(t, filepath.Join(dir, storage.BlacklistFile))
	if !strings.Contains(blacklistContent, dead.Key()) {
		t.Errorf("Expected %q in blacklist, got %q", dead.Key(), blacklistContent)
	}
	if strings.Contains(blacklistContent, good.Key()) {
		t.Errorf("Verified candidate %q must not be blacklisted", good.Key())
	}

	// Partition invariant: no key in both an output set and the blacklist.
	for _, name := range []string{storage.AllFile, storage.HTTPFile, storage.Socks4File, storage.Socks5File} {
		for _, line := range strings.Fields(readFile(t, filepath.Join(dir, name))) {
			if strings.Contains(blacklistContent, line+"\n") {
				t.Errorf("Key %q appears in both %s and the blacklist", line, name)
			}
		}
	}
}

func TestRun_SecondRunIsIdempotentAndSkipsBlacklisted(t *testing.T) {
	good := startSocks5Proxy(t)
	dead := deadCandidate(t)

	body := good.Key() + "\n" + dead.Key() + "\n"
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer source.Close()

	dir := t.TempDir()

	if _, err := newTestRunner(t, dir, source.URL).Run(context.Background()); err != nil {
		t.Fatalf("First Run() returned an error: %v", err)
	}

	files := []string{storage.AllFile, storage.HTTPFile, storage.Socks4File, storage.Socks5File, storage.BlacklistFile}
	before := make(map[string]string, len(files))
	for _, name := range files {
		before[name] = readFile(t, filepath.Join(dir, name))
	}

	stats, err := newTestRunner(t, dir, source.URL).Run(context.Background())
	if err != nil {
		t.Fatalf("Second Run() returned an error: %v", err)
	}

	// The blacklisted candidate never reaches verification again.
	if stats.Blacklisted != 1 {
		t.Errorf("Expected 1 blacklisted skip on second run, got %d", stats.Blacklisted)
	}
	if stats.Failed != 0 {
		t.Errorf("Expected 0 failures on second run, got %d", stats.Failed)
	}

	for _, name := range files {
		after := readFile(t, filepath.Join(dir, name))
		if after != before[name] {
			t.Errorf("File %s changed across identical runs:\nbefore: %q\nafter:  %q", name, before[name], after)
		}
	}
}

func TestRun_SourceFailureIsNotFatal(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer source.Close()

	dir := t.TempDir()
	stats, err := newTestRunner(t, dir, source.URL).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() must tolerate per-source failures, got error: %v", err)
	}
	if stats.SourceErrors != 1 {
		t.Errorf("Expected 1 source error, got %d", stats.SourceErrors)
	}
	// A run with zero candidates still persists (empty) authoritative sets.
	if readFile(t, filepath.Join(dir, storage.AllFile)) != "" {
		t.Errorf("Expected empty %s", storage.AllFile)
	}
}

func TestRun_FatalWhenBlacklistUnreadable(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the blacklist file makes it unreadable.
	if err := os.Mkdir(filepath.Join(dir, storage.BlacklistFile), 0755); err != nil {
		t.Fatalf("Failed to create blocking directory: %v", err)
	}

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1.2.3.4:8080\n"))
	}))
	defer source.Close()

	if _, err := newTestRunner(t, dir, source.URL).Run(context.Background()); err == nil {
		t.Errorf("Expected a fatal error for unreadable blacklist storage, got none")
	}
}

func TestRun_CancelledRunLeavesFilesUntouched(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1.2.3.4:8080\n"))
	}))
	defer source.Close()

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestRunner(t, dir, source.URL).Run(ctx); err == nil {
		t.Fatalf("Expected an error for a cancelled run, got none")
	}
	for _, name := range []string{storage.AllFile, storage.BlacklistFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("Cancelled run must not write %s", name)
		}
	}
}
