package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/selimozcann/cspderive/internal/csp"
	"github.com/selimozcann/cspderive/internal/logx"
	"github.com/selimozcann/cspderive/internal/report"
)

// Config describes how the engine's starting policy is assembled.
type Config struct {
	// ProxyPort anchors the self pattern: URIs served by the local
	// proxy count as 'self'.
	ProxyPort int

	// ReportToGroup, when non-empty, puts a report-to directive in the
	// policy; ReportURIEndpoint likewise for report-uri.
	ReportToGroup     string
	ReportURIEndpoint string
}

// Adjustment records one applied relaxation.
type Adjustment struct {
	Directive  string    `json:"directive"`
	BlockedURI string    `json:"blocked_uri"`
	Result     string    `json:"result"`
	At         time.Time `json:"at"`
}

// Engine owns the mutable policy map and folds violation reports into
// directive relaxations. Reads and writes run on different server
// goroutines, so access is guarded; a proxy response carries whatever
// snapshot was current when its headers were built.
type Engine struct {
	mu      sync.RWMutex
	policy  *csp.Policy
	self    *regexp.Regexp
	log     *logx.Logger
	history []Adjustment
}

// NewEngine assembles the strictest policy for cfg.
func NewEngine(cfg Config, log *logx.Logger) *Engine {
	return &Engine{
		policy: csp.NewStrictPolicy(cfg.ReportToGroup, cfg.ReportURIEndpoint),
		self:   regexp.MustCompile(fmt.Sprintf(`(https?://localhost:%d).*`, cfg.ProxyPort)),
		log:    log,
	}
}

// EvaluateViolation applies one decoded violation report to the policy.
// Reports for directives not in the policy are ignored; a report with no
// blocked URI removes the directive.
func (e *Engine) EvaluateViolation(v *report.Violation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.policy.Get(v.EffectiveDirective)
	if !ok {
		return
	}
	if v.BlockedURI == nil {
		raw, _ := json.Marshal(v)
		e.log.Printf("report without blocked-uri, dropping %s: %s", v.EffectiveDirective, raw)
		e.policy.Remove(v.EffectiveDirective)
		return
	}
	e.adjustLocked(d, *v.BlockedURI)
}

// RelaxFormAction widens the form-action directive for a scraped form
// target. The proxy calls this while rewriting HTML.
func (e *Engine) RelaxFormAction(uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.policy.Get("form-action"); ok {
		e.adjustLocked(d, uri)
	}
}

func (e *Engine) adjustLocked(d csp.Directive, uri string) {
	next, err := d.AdjustToURI(uri, e.self)
	switch {
	case errors.Is(err, csp.ErrNotAdjustable):
		e.policy.Remove(d.Name())
	case errors.Is(err, csp.ErrUnhandledURI):
		e.log.Printf("Couldn't handle URI: %s", uri)
	default:
		e.policy.Set(next)
		e.history = append(e.history, Adjustment{
			Directive:  d.Name(),
			BlockedURI: uri,
			Result:     next.String(),
			At:         time.Now(),
		})
	}
}

// Header returns the serialized policy for the report-only header.
func (e *Engine) Header() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy.Serialize()
}

// Directives returns a snapshot of the current directives in
// serialization order.
func (e *Engine) Directives() []csp.Directive {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy.Directives()
}

// History returns the adjustments applied so far, oldest first.
func (e *Engine) History() []Adjustment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Adjustment, len(e.history))
	copy(out, e.history)
	return out
}
