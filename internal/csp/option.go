package csp

import "strings"

// Option is one token of a directive's value in its wire form.
type Option interface {
	String() string
}

// SourceKind enumerates the closed set of source-expression variants.
type SourceKind int

const (
	KindSelf SourceKind = iota
	KindUnsafeEval
	KindUnsafeHashes
	KindUnsafeInline
	KindNone
	KindStrictDynamic
	KindReportSample
	KindNonce
	KindHash
	KindScheme
	KindHost
)

// Source is a single source expression. Only the fields relevant to the
// kind are populated.
type Source struct {
	Kind SourceKind

	// KindNonce
	Nonce string

	// KindHash
	Algorithm string
	Digest    string

	// KindScheme
	Scheme string

	// KindHost
	Host       string
	HostScheme string
	Port       string
}

func Self() Source          { return Source{Kind: KindSelf} }
func UnsafeEval() Source    { return Source{Kind: KindUnsafeEval} }
func UnsafeHashes() Source  { return Source{Kind: KindUnsafeHashes} }
func UnsafeInline() Source  { return Source{Kind: KindUnsafeInline} }
func None() Source          { return Source{Kind: KindNone} }
func StrictDynamic() Source { return Source{Kind: KindStrictDynamic} }
func ReportSample() Source  { return Source{Kind: KindReportSample} }

// Nonce returns a 'nonce-…' source expression.
func Nonce(nonce string) Source { return Source{Kind: KindNonce, Nonce: nonce} }

// Hash returns an 'algorithm-digest' source expression.
func Hash(algorithm, digest string) Source {
	return Source{Kind: KindHash, Algorithm: algorithm, Digest: digest}
}

// SchemeSource returns a "scheme:" source expression.
func SchemeSource(scheme string) Source { return Source{Kind: KindScheme, Scheme: scheme} }

// HostSource returns a host source expression. Scheme and port may be
// empty.
func HostSource(host, scheme, port string) Source {
	return Source{Kind: KindHost, Host: host, HostScheme: scheme, Port: port}
}

func (s Source) String() string {
	switch s.Kind {
	case KindSelf:
		return "'self'"
	case KindUnsafeEval:
		return "'unsafe-eval'"
	case KindUnsafeHashes:
		return "'unsafe-hashes'"
	case KindUnsafeInline:
		return "'unsafe-inline'"
	case KindNone:
		return "'none'"
	case KindStrictDynamic:
		return "'strict-dynamic'"
	case KindReportSample:
		return "'report-sample'"
	case KindNonce:
		return "'nonce-" + s.Nonce + "'"
	case KindHash:
		return "'" + s.Algorithm + "-" + s.Digest + "'"
	case KindScheme:
		return s.Scheme + ":"
	case KindHost:
		var b strings.Builder
		if s.HostScheme != "" {
			b.WriteString(s.HostScheme)
			b.WriteString("://")
		}
		b.WriteString(s.Host)
		if s.Port != "" {
			b.WriteString(":")
			b.WriteString(s.Port)
		}
		return b.String()
	}
	return ""
}

// SandboxToken is one allow-* token of the sandbox directive.
type SandboxToken string

func (t SandboxToken) String() string { return string(t) }

// MimeType is one media type of the plugin-types directive.
type MimeType struct {
	Type    string
	Subtype string
	Params  []string
}

func (m MimeType) String() string {
	s := m.Type + "/" + m.Subtype
	for _, p := range m.Params {
		s += ";" + p
	}
	return s
}

// Text is an opaque non-empty token, used by report-to group names and
// report-uri endpoints.
type Text string

func (t Text) String() string { return string(t) }

func joinOptions(opts []Option) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}
