package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/selimozcann/cspderive/internal/logx"
)

type stubPolicy struct{ header string }

func (s *stubPolicy) Header() string { return s.header }

type stubSink struct{ paths []string }

func (s *stubSink) Offer(paths []string) { s.paths = append(s.paths, paths...) }

type stubForms struct{ actions []string }

func (s *stubForms) RelaxFormAction(uri string) { s.actions = append(s.actions, uri) }

func setupUpstream(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	domain := strings.TrimPrefix(srv.URL, "https://")

	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Upstream", "1")
		_, _ = io.WriteString(w, `<html><body>
<a href="https://`+domain+`/about">about</a>
<a href="//`+domain+`/contact">contact</a>
<a href="https://other.example/x">external</a>
<form method="post" action="/submit"><input name="q"></form>
</body></html>`)
	})
	mux.HandleFunc("/redir", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://"+domain+"/next")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"a":1}`)
	})
	mux.HandleFunc("/latin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte(`<a href="https://` + domain + `/x">caf` + "\xe9" + `</a>`))
	})
	return srv, domain
}

func newTestProxy(t *testing.T, domain string, urls URLSink, forms FormSink) *Proxy {
	t.Helper()
	log, err := logx.New("")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(Config{Port: 8099, TargetDomain: domain}, &stubPolicy{header: "default-src 'none'"}, urls, forms, log)
}

func proxyGet(p *Proxy, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	return rec
}

func TestDomainSubstitution(t *testing.T) {
	p := newTestProxy(t, "example.com", nil, nil)
	cases := map[string]string{
		`<a href="https://example.com/foo.html">`: `<a href="/foo.html">`,
		`//example.com/x`:                         `/x`,
		`https://other.com/x`:                     `https://other.com/x`,
	}
	for in, want := range cases {
		if got := p.domainRe.ReplaceAllString(in, ""); got != want {
			t.Fatalf("rewrite %q: got %q want %q", in, got, want)
		}
	}
}

func TestInjectsPolicyHeaderAndRewritesBody(t *testing.T) {
	_, domain := setupUpstream(t)
	p := newTestProxy(t, domain, nil, nil)

	rec := proxyGet(p, "/index")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Security-Policy-Report-Only"); got != "default-src 'none'" {
		t.Fatalf("missing policy header, got %q", got)
	}
	if rec.Header().Get("X-Upstream") != "1" {
		t.Fatalf("upstream headers must be appended")
	}

	body := rec.Body.String()
	if strings.Contains(body, domain) {
		t.Fatalf("absolute same-origin references must be rewritten: %q", body)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("parse rewritten html: %v", err)
	}
	hrefs := map[string]bool{}
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		hrefs[href] = true
	})
	if !hrefs["/about"] || !hrefs["/contact"] {
		t.Fatalf("same-origin links must become root-relative: %v", hrefs)
	}
	if !hrefs["https://other.example/x"] {
		t.Fatalf("cross-origin links must be untouched: %v", hrefs)
	}
}

func TestRewritesLocationHeader(t *testing.T) {
	_, domain := setupUpstream(t)
	p := newTestProxy(t, domain, nil, nil)

	rec := proxyGet(p, "/redir")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/next" {
		t.Fatalf("location must be rewritten, got %q", got)
	}
}

func TestNonHTMLPassesThrough(t *testing.T) {
	_, domain := setupUpstream(t)
	p := newTestProxy(t, domain, nil, nil)

	rec := proxyGet(p, "/data")
	if got := rec.Body.String(); got != `{"a":1}` {
		t.Fatalf("non-HTML bodies must stream verbatim, got %q", got)
	}
	if rec.Header().Get("Content-Security-Policy-Report-Only") == "" {
		t.Fatalf("policy header must be injected on every response")
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type must mirror upstream, got %q", got)
	}
}

func TestScrapesURLsAndForms(t *testing.T) {
	_, domain := setupUpstream(t)
	urls := &stubSink{}
	forms := &stubForms{}
	p := newTestProxy(t, domain, urls, forms)

	proxyGet(p, "/index")

	found := map[string]bool{}
	for _, u := range urls.paths {
		found[u] = true
	}
	// Protocol-relative references ("//host/contact") are outside the
	// browse pattern; only scheme-full or relative dotless paths land.
	if !found["/about"] {
		t.Fatalf("scraped paths missing: %v", urls.paths)
	}
	if found["/x"] || found["https://other.example/x"] {
		t.Fatalf("cross-origin links must not be scraped: %v", urls.paths)
	}
	if len(forms.actions) != 1 || forms.actions[0] != "https://localhost:8099/submit" {
		t.Fatalf("form action not handed to the policy engine: %v", forms.actions)
	}
}

func TestCharsetPreserved(t *testing.T) {
	_, domain := setupUpstream(t)
	p := newTestProxy(t, domain, nil, nil)

	rec := proxyGet(p, "/latin")
	body := rec.Body.Bytes()
	if !bytes.Contains(body, []byte(`href="/x"`)) {
		t.Fatalf("link must be rewritten: %q", body)
	}
	if !bytes.Contains(body, []byte{0xe9}) {
		t.Fatalf("body must be re-encoded in its declared charset: %q", body)
	}
}

func TestUpstreamFailureStillInjectsPolicy(t *testing.T) {
	p := newTestProxy(t, "localhost:1", nil, nil)

	rec := proxyGet(p, "/")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Security-Policy-Report-Only") == "" {
		t.Fatalf("policy header must survive upstream failures")
	}
}

func TestStripsUpstreamCSP(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()
	domain := strings.TrimPrefix(srv.URL, "https://")
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src *")
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html></html>")
	})
	p := newTestProxy(t, domain, nil, nil)

	rec := proxyGet(p, "/")
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Fatalf("the target's enforced policy must not reach the client")
	}
}
