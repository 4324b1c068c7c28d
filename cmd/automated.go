package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/selimozcann/cspderive/internal/banner"
	"github.com/selimozcann/cspderive/internal/crawler"
	"github.com/selimozcann/cspderive/internal/logx"
	"github.com/selimozcann/cspderive/internal/output"
)

var autoOpts struct {
	port         int
	domains      []string
	starts       []string
	browser      string
	delay        int
	timeout      int
	logFile      string
	rateLimit    int
	reportingAPI bool
	htmlFile     string
	jsonlFile    string
}

var automatedCmd = &cobra.Command{
	Use:   "automated-browser",
	Short: "Crawl each target domain with a headless browser and derive its policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		if autoOpts.browser != "chrome" && autoOpts.browser != "firefox" {
			return fmt.Errorf("--browser must be chrome or firefox (got %q)", autoOpts.browser)
		}
		if autoOpts.delay < 0 {
			return fmt.Errorf("--delay must be >= 0 (got %d)", autoOpts.delay)
		}
		if autoOpts.timeout < 0 {
			return fmt.Errorf("--timeout must be >= 0 (got %d)", autoOpts.timeout)
		}
		log, err := logx.New(autoOpts.logFile)
		if err != nil {
			return err
		}
		defer log.Close()

		banner.PrintBanner()
		for _, domain := range autoOpts.domains {
			c := crawler.New(crawler.Config{
				ProxyPort:    autoOpts.port,
				TargetDomain: domain,
				StartURIs:    autoOpts.starts,
				Browser:      autoOpts.browser,
				LoadDelay:    time.Duration(autoOpts.delay) * time.Second,
				Timeout:      time.Duration(autoOpts.timeout) * time.Minute,
				RateLimit:    autoOpts.rateLimit,
				ReportingAPI: autoOpts.reportingAPI,
			}, log)
			if err := c.Run(context.Background()); err != nil {
				return fmt.Errorf("crawl %s: %w", domain, err)
			}
			if err := writeReports(c, domain, len(autoOpts.domains) > 1); err != nil {
				return err
			}
		}
		return nil
	},
}

// writeReports emits the optional HTML and JSONL artifacts for one
// finished crawl. With several domains the file names get a per-domain
// suffix.
func writeReports(c *crawler.Coordinator, domain string, multi bool) error {
	engine := c.Engine()
	if autoOpts.htmlFile != "" {
		page := output.BuildPage(domain, engine.Directives(), engine.Header(), engine.History())
		f, err := os.Create(reportPath(autoOpts.htmlFile, domain, multi))
		if err != nil {
			return fmt.Errorf("create HTML report: %w", err)
		}
		defer f.Close()
		if err := output.RenderHTML(f, page); err != nil {
			return fmt.Errorf("write HTML report: %w", err)
		}
	}
	if autoOpts.jsonlFile != "" {
		records := make([]output.Record, 0)
		for _, a := range engine.History() {
			records = append(records, output.BuildRecord(a))
		}
		f, err := os.Create(reportPath(autoOpts.jsonlFile, domain, multi))
		if err != nil {
			return fmt.Errorf("create JSONL report: %w", err)
		}
		defer f.Close()
		if err := output.NewJSONLWriter(f).WriteAll(records); err != nil {
			return fmt.Errorf("write JSONL report: %w", err)
		}
	}
	return nil
}

func reportPath(path, domain string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	safe := strings.NewReplacer(":", "_", "/", "_").Replace(domain)
	return strings.TrimSuffix(path, ext) + "-" + safe + ext
}

func init() {
	automatedCmd.Flags().IntVar(&autoOpts.port, "proxy-port", 0, "local port to serve the rewritten site on")
	automatedCmd.Flags().StringArrayVar(&autoOpts.domains, "target-domain", nil, "domain to crawl (repeatable)")
	automatedCmd.Flags().StringArrayVar(&autoOpts.starts, "alternate-start", []string{"/"}, "starting path (repeatable)")
	automatedCmd.Flags().StringVar(&autoOpts.browser, "browser", "chrome", "browser to drive: chrome or firefox")
	automatedCmd.Flags().IntVar(&autoOpts.delay, "delay", 2, "seconds to wait after each page load")
	automatedCmd.Flags().IntVar(&autoOpts.timeout, "timeout", 10, "crawl timeout in minutes")
	automatedCmd.Flags().StringVar(&autoOpts.logFile, "log", "", "log file (existing file is kept as -old.txt)")
	automatedCmd.Flags().IntVar(&autoOpts.rateLimit, "rate-limit", 0, "upstream requests per second, 0 = unlimited")
	automatedCmd.Flags().BoolVar(&autoOpts.reportingAPI, "reporting-api", false, "advertise a Report-To group and report-to directive")
	automatedCmd.Flags().StringVar(&autoOpts.htmlFile, "html", "", "HTML report output file")
	automatedCmd.Flags().StringVar(&autoOpts.jsonlFile, "jsonl", "", "JSONL relaxation log output file")
	_ = automatedCmd.MarkFlagRequired("proxy-port")
	_ = automatedCmd.MarkFlagRequired("target-domain")
	rootCmd.AddCommand(automatedCmd)
}
