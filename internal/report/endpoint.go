package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/selimozcann/cspderive/internal/logx"
)

// Evaluator consumes decoded violation reports. The policy engine
// implements it.
type Evaluator interface {
	EvaluateViolation(v *Violation)
}

// Endpoint is the local violation-report server. It binds an OS-chosen
// port at construction so its URL is known before serving starts.
type Endpoint struct {
	ln   net.Listener
	srv  *http.Server
	eval Evaluator
	log  *logx.Logger
}

// Listen binds the endpoint on an OS-chosen loopback port.
func Listen(log *logx.Logger) (*Endpoint, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind report endpoint: %w", err)
	}
	return &Endpoint{ln: ln, log: log}, nil
}

// Port returns the bound port.
func (e *Endpoint) Port() int {
	return e.ln.Addr().(*net.TCPAddr).Port
}

// ReportURI is the legacy report-uri endpoint URL.
func (e *Endpoint) ReportURI() string {
	return fmt.Sprintf("http://localhost:%d/uri", e.Port())
}

// APIURI is the Reporting-API endpoint URL.
func (e *Endpoint) APIURI() string {
	return fmt.Sprintf("http://localhost:%d/api", e.Port())
}

// Serve starts handling reports, forwarding decoded violations to eval.
func (e *Endpoint) Serve(eval Evaluator) {
	e.eval = eval
	mux := http.NewServeMux()
	mux.HandleFunc("/uri", e.handleURI)
	mux.HandleFunc("/api", e.handleAPI)
	e.srv = &http.Server{Handler: mux}
	go func() {
		if err := e.srv.Serve(e.ln); err != nil && err != http.ErrServerClosed {
			e.log.Printf("report endpoint: %v", err)
		}
	}()
}

// cors allows cross-origin reports from any proxied page.
func cors(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Content-Length, X-Requested-With")
}

// handleURI accepts legacy application/csp-report payloads. The browser
// gets its 200 before the report is processed.
func (e *Endpoint) handleURI(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if err != nil {
		e.log.Printf("read csp report: %v", err)
		return
	}
	var rep LegacyReport
	if err := json.Unmarshal(body, &rep); err != nil {
		e.log.Printf("decode csp report: %v", err)
		return
	}
	if rep.Report == nil || e.eval == nil {
		return
	}
	e.eval.EvaluateViolation(rep.Report)
}

// handleAPI accepts application/reports+json payloads. csp-violation
// entries are logged; the Reporting API is not wired to relaxation.
func (e *Endpoint) handleAPI(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
	if err != nil {
		e.log.Printf("read api report: %v", err)
		return
	}
	var rep APIReport
	if err := json.Unmarshal(body, &rep); err != nil {
		e.log.Printf("decode api report: %v", err)
		return
	}
	if rep.Type == "csp-violation" && rep.Body != nil {
		e.log.Printf("reporting-api violation: directive=%s blocked=%s status=%s", rep.Body.Directive, rep.Body.Blocked, rep.Body.Status)
	}
}

// Shutdown drains the server; Close force-stops it.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	if e.srv == nil {
		return e.ln.Close()
	}
	return e.srv.Shutdown(ctx)
}

// Close force-stops the server without draining.
func (e *Endpoint) Close() error {
	if e.srv == nil {
		return e.ln.Close()
	}
	return e.srv.Close()
}
