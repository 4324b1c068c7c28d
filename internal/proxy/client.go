package proxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig holds settings for the upstream HTTP client.
type ClientConfig struct {
	Timeout time.Duration

	// RateLimit caps upstream requests per second; 0 is unlimited.
	RateLimit int
}

// limitRoundTripper wraps a base RoundTripper behind a rate limiter so
// the proxy cannot hammer the target origin.
type limitRoundTripper struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (l *limitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return l.base.RoundTrip(req)
}

// NewClient returns the upstream client. Redirects are not followed so
// Location headers reach the rewriter; target certificates are not
// verified.
func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &http.Client{
		Transport: &limitRoundTripper{base: transport, limiter: limiter},
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
