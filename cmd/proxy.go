package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/selimozcann/cspderive/internal/logx"
	"github.com/selimozcann/cspderive/internal/policy"
	"github.com/selimozcann/cspderive/internal/proxy"
)

var proxyOpts struct {
	port      int
	domain    string
	rateLimit int
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the rewriting proxy only, with a static strict policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logx.New("")
		if err != nil {
			return err
		}
		engine := policy.NewEngine(policy.Config{ProxyPort: proxyOpts.port}, log)
		px := proxy.New(proxy.Config{
			Port:         proxyOpts.port,
			TargetDomain: proxyOpts.domain,
			RateLimit:    proxyOpts.rateLimit,
		}, engine, nil, nil, log)
		if err := px.Start(); err != nil {
			return err
		}
		log.Printf("proxying http://localhost:%d -> https://%s", proxyOpts.port, proxyOpts.domain)
		waitForInterrupt()
		return px.Close()
	},
}

func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}

func init() {
	proxyCmd.Flags().IntVar(&proxyOpts.port, "proxy-port", 0, "local port to serve the rewritten site on")
	proxyCmd.Flags().StringVar(&proxyOpts.domain, "target-domain", "", "domain to proxy")
	proxyCmd.Flags().IntVar(&proxyOpts.rateLimit, "rate-limit", 0, "upstream requests per second, 0 = unlimited")
	_ = proxyCmd.MarkFlagRequired("proxy-port")
	_ = proxyCmd.MarkFlagRequired("target-domain")
	rootCmd.AddCommand(proxyCmd)
}
