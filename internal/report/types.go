package report

import "encoding/json"

// Violation is the payload of a legacy browser CSP report. BlockedURI is
// a pointer so a missing value is distinguishable from an empty one.
type Violation struct {
	BlockedURI         *string `json:"blocked-uri"`
	Disposition        string  `json:"disposition"`
	DocumentURI        string  `json:"document-uri"`
	EffectiveDirective string  `json:"effective-directive"`
	OriginalPolicy     string  `json:"original-policy"`
	Referrer           string  `json:"referrer"`
	ScriptSample       string  `json:"script-sample"`
	StatusCode         string  `json:"status-code"`
	ViolatedDirective  string  `json:"violated-directive"`
}

// LegacyReport is the application/csp-report wrapper.
type LegacyReport struct {
	Report *Violation `json:"csp-report"`
}

// APIBody is the body of a Reporting-API csp-violation report.
type APIBody struct {
	Blocked   string `json:"blocked"`
	Directive string `json:"directive"`
	Policy    string `json:"policy"`
	Status    string `json:"status"`
	Referrer  string `json:"referrer"`
}

// APIReport is one application/reports+json entry.
type APIReport struct {
	Type      string   `json:"type"`
	Age       int      `json:"age"`
	URL       string   `json:"url"`
	UserAgent string   `json:"user_agent"`
	Body      *APIBody `json:"body"`
}

// GroupEndpoint is one delivery endpoint of a Report-To group.
type GroupEndpoint struct {
	URL string `json:"url"`
}

// Group is the Report-To header value advertising the violation
// endpoint to the browser's Reporting API.
type Group struct {
	Group     string          `json:"group"`
	MaxAge    int             `json:"max_age"`
	Endpoints []GroupEndpoint `json:"endpoints"`
}

// GroupName is the reporting group referenced by the report-to
// directive.
const GroupName = "csp-endpoint"

// NewGroup returns the Report-To group definition for endpoint.
func NewGroup(endpoint string) Group {
	return Group{
		Group:     GroupName,
		MaxAge:    10886400,
		Endpoints: []GroupEndpoint{{URL: endpoint}},
	}
}

// HeaderValue renders the group as the Report-To header value.
func (g Group) HeaderValue() (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
