package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/selimozcann/cspderive/internal/logx"
	"github.com/selimozcann/cspderive/internal/policy"
	"github.com/selimozcann/cspderive/internal/proxy"
	"github.com/selimozcann/cspderive/internal/report"
)

var epOpts struct {
	port      int
	domain    string
	rateLimit int
}

var endpointProxyCmd = &cobra.Command{
	Use:   "endpoint-and-proxy",
	Short: "Run the proxy plus the violation-report endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logx.New("")
		if err != nil {
			return err
		}
		ep, err := report.Listen(log)
		if err != nil {
			return err
		}
		engine := policy.NewEngine(policy.Config{
			ProxyPort:         epOpts.port,
			ReportURIEndpoint: ep.ReportURI(),
		}, log)
		ep.Serve(engine)
		px := proxy.New(proxy.Config{
			Port:         epOpts.port,
			TargetDomain: epOpts.domain,
			RateLimit:    epOpts.rateLimit,
		}, engine, nil, engine, log)
		if err := px.Start(); err != nil {
			_ = ep.Close()
			return err
		}
		log.Printf("proxying http://localhost:%d -> https://%s, reports at %s", epOpts.port, epOpts.domain, ep.ReportURI())
		waitForInterrupt()
		log.Printf("Policy for %s:", epOpts.domain)
		log.Printf("%s", engine.Header())
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := px.Shutdown(ctx); err != nil {
			_ = px.Close()
		}
		if err := ep.Shutdown(ctx); err != nil {
			_ = ep.Close()
		}
		return nil
	},
}

func init() {
	endpointProxyCmd.Flags().IntVar(&epOpts.port, "proxy-port", 0, "local port to serve the rewritten site on")
	endpointProxyCmd.Flags().StringVar(&epOpts.domain, "target-domain", "", "domain to proxy")
	endpointProxyCmd.Flags().IntVar(&epOpts.rateLimit, "rate-limit", 0, "upstream requests per second, 0 = unlimited")
	_ = endpointProxyCmd.MarkFlagRequired("proxy-port")
	_ = endpointProxyCmd.MarkFlagRequired("target-domain")
	rootCmd.AddCommand(endpointProxyCmd)
}
