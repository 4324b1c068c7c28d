package crawler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/selimozcann/cspderive/internal/logx"
)

type stubDriver struct {
	mu    sync.Mutex
	loads []string
	quits int
}

func (s *stubDriver) Load(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, url)
	return nil
}

func (s *stubDriver) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quits++
	return nil
}

func runCrawl(t *testing.T, cfg Config) (*stubDriver, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "crawl.log")
	log, err := logx.New(logPath)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer log.Close()

	driver := &stubDriver{}
	c := New(cfg, log)
	c.Driver = driver
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return driver, string(data)
}

func TestZeroTimeoutEmitsPolicyWithoutVisiting(t *testing.T) {
	driver, logged := runCrawl(t, Config{
		ProxyPort:    38741,
		TargetDomain: "example.com",
		Browser:      "chrome",
		Timeout:      0,
	})
	if len(driver.loads) != 0 {
		t.Fatalf("no URL may be visited under a zero timeout: %v", driver.loads)
	}
	if driver.quits != 1 {
		t.Fatalf("the browser must be quit exactly once, got %d", driver.quits)
	}
	if !strings.Contains(logged, "Policy for example.com:") {
		t.Fatalf("missing policy banner in log: %q", logged)
	}
	if !strings.Contains(logged, "default-src 'none'") {
		t.Fatalf("the strict policy must be emitted: %q", logged)
	}
	if !strings.Contains(logged, "report-uri http://localhost:") {
		t.Fatalf("the policy must carry the report endpoint: %q", logged)
	}
}

func TestCrawlVisitsSeededPaths(t *testing.T) {
	driver, logged := runCrawl(t, Config{
		ProxyPort:    38742,
		TargetDomain: "example.com",
		StartURIs:    []string{"/start", "/other"},
		Browser:      "chrome",
		Timeout:      time.Minute,
	})
	if len(driver.loads) != 2 {
		t.Fatalf("expected two visits, got %v", driver.loads)
	}
	if driver.loads[0] != "http://localhost:38742/start" || driver.loads[1] != "http://localhost:38742/other" {
		t.Fatalf("visits out of order: %v", driver.loads)
	}
	if !strings.Contains(logged, "Visiting http://localhost:38742/start") {
		t.Fatalf("visits must be logged: %q", logged)
	}
	if driver.quits != 1 {
		t.Fatalf("the browser must be quit exactly once, got %d", driver.quits)
	}
}
