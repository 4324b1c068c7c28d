package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// Driver is the crawl's view of a browser: load a page, then get out.
type Driver interface {
	Load(ctx context.Context, url string) error
	Quit() error
}

// ErrUnknownBrowser is returned for names other than chrome or firefox.
var ErrUnknownBrowser = errors.New("unknown browser")

var candidates = map[string][]string{
	"chrome":  {"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"},
	"firefox": {"firefox", "firefox-esr"},
}

// Headless drives a headless browser one page at a time: each Load execs
// a fresh browser process pointed at the URL and waits for it to exit,
// which is when the page has settled and its violation reports are out.
type Headless struct {
	name string
	path string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// New locates the named browser binary on PATH.
func New(name string) (*Headless, error) {
	names, ok := candidates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBrowser, name)
	}
	for _, bin := range names {
		if path, err := exec.LookPath(bin); err == nil {
			return &Headless{name: name, path: path}, nil
		}
	}
	return nil, fmt.Errorf("no %s binary found on PATH", name)
}

func (h *Headless) args(url string) []string {
	if h.name == "firefox" {
		return []string{"--headless", "--screenshot=/dev/null", url}
	}
	return []string{
		"--headless=new",
		"--disable-gpu",
		"--no-first-run",
		"--ignore-certificate-errors",
		"--virtual-time-budget=10000",
		url,
	}
}

// Load fetches url and blocks until the page settles.
func (h *Headless) Load(ctx context.Context, url string) error {
	cmd := exec.CommandContext(ctx, h.path, h.args(url)...)
	h.mu.Lock()
	h.cmd = cmd
	h.mu.Unlock()
	err := cmd.Run()
	h.mu.Lock()
	h.cmd = nil
	h.mu.Unlock()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

// Quit terminates any in-flight browser process.
func (h *Headless) Quit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
