package proxy

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/selimozcann/cspderive/internal/logx"
)

// PolicyHeader supplies the serialized policy for the report-only
// header.
type PolicyHeader interface {
	Header() string
}

// URLSink receives paths scraped from proxied HTML.
type URLSink interface {
	Offer(paths []string)
}

// FormSink receives form targets scraped from proxied HTML.
type FormSink interface {
	RelaxFormAction(uri string)
}

// Config holds settings for the rewriting proxy.
type Config struct {
	Port         int
	TargetDomain string

	// TargetScheme is the upstream scheme, https unless overridden.
	TargetScheme string

	// ReportTo, when non-empty, is emitted verbatim as the Report-To
	// header on every response relayed from the upstream. Responses for
	// a failed upstream fetch do not carry it.
	ReportTo string

	Timeout   time.Duration
	RateLimit int
}

// Proxy forwards requests to the target origin, rewrites same-origin
// references out of HTML responses, injects the current policy in
// report-only mode, and scrapes navigable URLs.
type Proxy struct {
	cfg    Config
	client *http.Client
	policy PolicyHeader
	urls   URLSink
	forms  FormSink
	log    *logx.Logger
	srv    *http.Server

	domainRe *regexp.Regexp
	browseRe *regexp.Regexp
	formRe   *regexp.Regexp
}

// New builds a proxy for cfg. urls and forms may be nil; scraping is
// then skipped.
func New(cfg Config, policy PolicyHeader, urls URLSink, forms FormSink, log *logx.Logger) *Proxy {
	if cfg.TargetScheme == "" {
		cfg.TargetScheme = "https"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	esc := regexp.QuoteMeta(cfg.TargetDomain)
	return &Proxy{
		cfg:      cfg,
		client:   NewClient(ClientConfig{Timeout: cfg.Timeout, RateLimit: cfg.RateLimit}),
		policy:   policy,
		urls:     urls,
		forms:    forms,
		log:      log,
		domainRe: regexp.MustCompile(`(https?:)?//` + esc),
		browseRe: regexp.MustCompile(`(?:href|action)="(?:https?://)?(?:` + esc + `)?([^."#?]+(?:html?)?)"`),
		formRe:   regexp.MustCompile(`(?:<|&lt;)form[^>]*?action=["']([^"']*)["'][^>]*?(?:>|&gt;)`),
	}
}

// hop-by-hop and forbidden headers, never copied in either direction.
// Content-Length and Content-Encoding are dropped from responses because
// bodies are decompressed and rewritten.
var unsafeHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Length":      {},
	"Content-Encoding":    {},
}

func unsafeHeader(name string) bool {
	_, ok := unsafeHeaders[http.CanonicalHeaderKey(name)]
	return ok
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := fmt.Sprintf("%s://%s%s", p.cfg.TargetScheme, p.cfg.TargetDomain, r.RequestURI)
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		p.writeError(w, http.StatusBadGateway, err)
		return
	}
	for name, vals := range r.Header {
		if unsafeHeader(name) || strings.EqualFold(name, "Accept-Encoding") || strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range vals {
			req.Header.Add(name, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.writeError(w, http.StatusBadGateway, err)
		return
	}
	defer resp.Body.Close()

	hdr := w.Header()
	if loc := resp.Header.Get("Location"); loc != "" {
		hdr.Set("Location", p.domainRe.ReplaceAllString(loc, ""))
	}
	if p.cfg.ReportTo != "" {
		hdr.Set("Report-To", p.cfg.ReportTo)
	}
	hdr.Set("Content-Security-Policy-Report-Only", p.policy.Header())
	for name, vals := range resp.Header {
		if unsafeHeader(name) || strings.EqualFold(name, "Content-Security-Policy") {
			continue
		}
		if hdr.Get(name) != "" {
			continue
		}
		for _, v := range vals {
			hdr.Add(name, v)
		}
	}

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/html" {
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			p.log.Printf("stream %s: %v", target, err)
		}
		return
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		p.writeError(w, http.StatusBadGateway, err)
		return
	}
	body, enc := decodeBody(raw, params["charset"])
	p.scrape(body)
	rewritten := p.domainRe.ReplaceAllString(body, "")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(encodeBody(rewritten, enc)); err != nil {
		p.log.Printf("write %s: %v", target, err)
	}
}

// scrape feeds navigable paths to the frontier and form targets to the
// policy engine. Non-blank captures only; blank and unmatched markup is
// dropped.
func (p *Proxy) scrape(body string) {
	if p.urls != nil {
		var paths []string
		for _, m := range p.browseRe.FindAllStringSubmatch(body, -1) {
			if path := strings.TrimSpace(m[1]); path != "" {
				paths = append(paths, path)
			}
		}
		if len(paths) > 0 {
			p.urls.Offer(paths)
		}
	}
	if p.forms != nil {
		for _, m := range p.formRe.FindAllStringSubmatch(body, -1) {
			action := m[1]
			if action == "" {
				continue
			}
			if strings.HasPrefix(action, "/") {
				action = fmt.Sprintf("https://localhost:%d%s", p.cfg.Port, action)
			}
			p.forms.RelaxFormAction(action)
		}
	}
}

// writeError surfaces an upstream failure to the client. The policy
// header is still injected so the browser keeps reporting.
func (p *Proxy) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Security-Policy-Report-Only", p.policy.Header())
	w.WriteHeader(status)
	fmt.Fprintf(w, "upstream fetch failed: %v", err)
	p.log.Printf("upstream %s: %v", p.cfg.TargetDomain, err)
}

// decodeBody decodes raw in the declared charset, defaulting to UTF-8.
// Undecodable input passes through untouched.
func decodeBody(raw []byte, label string) (string, encoding.Encoding) {
	if label == "" {
		return string(raw), unicode.UTF8
	}
	enc, _ := charset.Lookup(label)
	if enc == nil || enc == unicode.UTF8 {
		return string(raw), unicode.UTF8
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), unicode.UTF8
	}
	return string(decoded), enc
}

// encodeBody writes body back in the charset it arrived in.
func encodeBody(body string, enc encoding.Encoding) []byte {
	if enc == nil || enc == unicode.UTF8 {
		return []byte(body)
	}
	out, err := enc.NewEncoder().Bytes([]byte(body))
	if err != nil {
		return []byte(body)
	}
	return out
}

// Start binds the proxy port and serves in the background.
func (p *Proxy) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p.cfg.Port))
	if err != nil {
		return fmt.Errorf("bind proxy port %d: %w", p.cfg.Port, err)
	}
	p.srv = &http.Server{Handler: p}
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			p.log.Printf("proxy: %v", err)
		}
	}()
	return nil
}

// Shutdown drains the server; Close force-stops it.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.srv == nil {
		return nil
	}
	return p.srv.Shutdown(ctx)
}

// Close force-stops the server without draining.
func (p *Proxy) Close() error {
	if p.srv == nil {
		return nil
	}
	return p.srv.Close()
}
