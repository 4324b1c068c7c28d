package output

import (
	"time"

	"github.com/selimozcann/cspderive/internal/csp"
	"github.com/selimozcann/cspderive/internal/policy"
)

// Record represents one line in the JSONL report: a single applied
// relaxation.
type Record struct {
	Timestamp  string `json:"timestamp"`
	Directive  string `json:"directive"`
	BlockedURI string `json:"blocked_uri"`
	Result     string `json:"result"`
}

// DirectiveView is one directive of the final policy, pre-rendered for
// the HTML template.
type DirectiveView struct {
	Name    string
	Options string
}

// Summary contains counters for the HTML summary section.
type Summary struct {
	Directives  int
	Adjustments int
}

// PageData provides the full context for the HTML report.
type PageData struct {
	Title        string
	GeneratedAt  time.Time
	TargetDomain string
	Policy       string
	Directives   []DirectiveView
	History      []Record
	Summary      Summary
}

// BuildRecord converts an applied adjustment into a Record.
func BuildRecord(a policy.Adjustment) Record {
	return Record{
		Timestamp:  a.At.UTC().Format(time.RFC3339),
		Directive:  a.Directive,
		BlockedURI: a.BlockedURI,
		Result:     a.Result,
	}
}

// BuildPage assembles the HTML report context for one finished crawl.
func BuildPage(domain string, directives []csp.Directive, serialized string, history []policy.Adjustment) PageData {
	views := make([]DirectiveView, len(directives))
	for i, d := range directives {
		opts := ""
		if s := d.String(); len(s) > len(d.Name()) {
			opts = s[len(d.Name())+1:]
		}
		views[i] = DirectiveView{Name: d.Name(), Options: opts}
	}
	records := make([]Record, len(history))
	for i, a := range history {
		records[i] = BuildRecord(a)
	}
	return PageData{
		Title:        "Derived Content Security Policy",
		GeneratedAt:  time.Now().UTC(),
		TargetDomain: domain,
		Policy:       serialized,
		Directives:   views,
		History:      records,
		Summary:      Summary{Directives: len(views), Adjustments: len(records)},
	}
}
