package csp

import "strings"

// Policy maps directive names to directive instances. Only directives
// allowed in a report-only header are ever present.
type Policy struct {
	directives map[string]Directive
}

// NewPolicy returns an empty policy.
func NewPolicy() *Policy {
	return &Policy{directives: make(map[string]Directive)}
}

// NewStrictPolicy builds the maximally restrictive report-only policy.
// report-to and report-uri are present only when their group name or
// endpoint is supplied.
func NewStrictPolicy(reportToGroup, reportURIEndpoint string) *Policy {
	p := NewPolicy()
	for _, info := range registry {
		if !info.InReportOnly {
			continue
		}
		switch info.Name {
		case "report-to":
			if d, ok := ConstructSimple(info.Name, reportToGroup); ok {
				p.Set(d)
			}
		case "report-uri":
			if d, ok := ConstructSimple(info.Name, reportURIEndpoint); ok {
				p.Set(d)
			}
		default:
			if d, ok := Strictest(info.Name); ok {
				p.Set(d)
			}
		}
	}
	return p
}

// Get returns the directive stored under name.
func (p *Policy) Get(name string) (Directive, bool) {
	d, ok := p.directives[name]
	return d, ok
}

// Set stores d under its own name. Directives not allowed in a
// report-only header are ignored.
func (p *Policy) Set(d Directive) {
	if !d.info.InReportOnly {
		return
	}
	p.directives[d.Name()] = d
}

// Remove drops the directive stored under name.
func (p *Policy) Remove(name string) {
	delete(p.directives, name)
}

// Len returns the number of directives present.
func (p *Policy) Len() int { return len(p.directives) }

// Directives returns the present directives in registry order.
func (p *Policy) Directives() []Directive {
	out := make([]Directive, 0, len(p.directives))
	for _, info := range registry {
		if d, ok := p.directives[info.Name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Serialize renders the policy in wire form, directives joined by "; "
// in registry order.
func (p *Policy) Serialize() string {
	ds := p.Directives()
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}

// ParsePolicy parses a serialized policy. Unknown directives are
// dropped.
func ParsePolicy(s string) *Policy {
	p := NewPolicy()
	for _, clause := range strings.Split(s, ";") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		if d, ok := ParseDirective(clause); ok {
			p.Set(d)
		}
	}
	return p
}
