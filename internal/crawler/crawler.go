package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/selimozcann/cspderive/internal/browser"
	"github.com/selimozcann/cspderive/internal/frontier"
	"github.com/selimozcann/cspderive/internal/logx"
	"github.com/selimozcann/cspderive/internal/policy"
	"github.com/selimozcann/cspderive/internal/proxy"
	"github.com/selimozcann/cspderive/internal/report"
)

// settleDelay is the grace given to each embedded server after start.
const settleDelay = time.Second

// stopGrace bounds graceful server shutdown before force-close.
const stopGrace = time.Second

// Config holds settings for one crawl.
type Config struct {
	ProxyPort    int
	TargetDomain string

	// StartURIs seeds the frontier; defaults to the root path.
	StartURIs []string

	Browser   string
	LoadDelay time.Duration
	Timeout   time.Duration
	RateLimit int

	// ReportingAPI additionally advertises a Report-To group and puts a
	// report-to directive in the policy.
	ReportingAPI bool
}

// Coordinator owns the crawl lifecycle: frontier, servers, browser.
type Coordinator struct {
	cfg Config
	log *logx.Logger

	// Driver may be pre-set; otherwise a headless browser is located
	// when Run starts.
	Driver browser.Driver

	engine *policy.Engine
}

// New returns a coordinator for cfg.
func New(cfg Config, log *logx.Logger) *Coordinator {
	if len(cfg.StartURIs) == 0 {
		cfg.StartURIs = []string{"/"}
	}
	return &Coordinator{cfg: cfg, log: log}
}

// Engine exposes the policy engine of the last Run, for reporting.
func (c *Coordinator) Engine() *policy.Engine { return c.engine }

// Run executes one crawl: start the report endpoint and the proxy, walk
// the frontier under the global timeout, then emit the accumulated
// policy and tear everything down.
func (c *Coordinator) Run(ctx context.Context) error {
	ep, err := report.Listen(c.log)
	if err != nil {
		return err
	}

	var groupName, groupHeader string
	if c.cfg.ReportingAPI {
		group := report.NewGroup(ep.APIURI())
		header, err := group.HeaderValue()
		if err != nil {
			return fmt.Errorf("encode report-to group: %w", err)
		}
		groupName, groupHeader = report.GroupName, header
	}

	c.engine = policy.NewEngine(policy.Config{
		ProxyPort:         c.cfg.ProxyPort,
		ReportToGroup:     groupName,
		ReportURIEndpoint: ep.ReportURI(),
	}, c.log)

	ep.Serve(c.engine)
	time.Sleep(settleDelay)

	fr := frontier.New(c.cfg.StartURIs)
	px := proxy.New(proxy.Config{
		Port:         c.cfg.ProxyPort,
		TargetDomain: c.cfg.TargetDomain,
		ReportTo:     groupHeader,
		RateLimit:    c.cfg.RateLimit,
	}, c.engine, fr, c.engine, c.log)
	if err := px.Start(); err != nil {
		fr.Close()
		_ = ep.Close()
		return err
	}
	time.Sleep(settleDelay)

	driver := c.Driver
	if driver == nil {
		driver, err = browser.New(c.cfg.Browser)
		if err != nil {
			fr.Close()
			c.stopServers(px, ep)
			return err
		}
	}

	crawlCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	c.crawl(crawlCtx, fr, driver)

	c.log.Printf("Policy for %s:", c.cfg.TargetDomain)
	if err := driver.Quit(); err != nil {
		c.log.Printf("quit browser: %v", err)
	}
	fr.Close()
	c.log.Printf("%s", c.engine.Header())
	c.stopServers(px, ep)
	return nil
}

func (c *Coordinator) crawl(ctx context.Context, fr *frontier.Frontier, driver browser.Driver) {
	visit := color.New(color.FgCyan)
	for {
		path, ok := fr.Next(ctx)
		if !ok {
			return
		}
		url := fmt.Sprintf("http://localhost:%d%s", c.cfg.ProxyPort, path)
		c.log.Printf("Visiting %s", url)
		_, _ = visit.Printf("-> %s\n", url)
		if err := driver.Load(ctx, url); err != nil {
			c.log.Printf("browser failed, aborting crawl: %v", err)
			return
		}
		if !sleepCtx(ctx, c.cfg.LoadDelay) {
			return
		}
	}
}

// sleepCtx waits for d, reporting false when ctx expires first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// stopServers drains both servers briefly, then force-closes stragglers.
func (c *Coordinator) stopServers(px *proxy.Proxy, ep *report.Endpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := px.Shutdown(ctx); err != nil {
		_ = px.Close()
	}
	if err := ep.Shutdown(ctx); err != nil {
		_ = ep.Close()
	}
}
