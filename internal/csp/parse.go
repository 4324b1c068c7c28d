package csp

import (
	"regexp"
	"strings"
)

// optionParser turns the value part of a directive into options.
// Unrecognized tokens are dropped; an empty result is legal.
type optionParser interface {
	parse(value string) []Option
}

// recognizer matches a single space-delimited token and builds the
// corresponding option from the submatches.
type recognizer struct {
	pattern *regexp.Regexp
	build   func(m []string) Option
}

// multiParser splits its input on ASCII space and delegates each token
// to the first recognizer that matches.
type multiParser struct {
	recognizers []recognizer
}

func (p multiParser) parse(value string) []Option {
	var opts []Option
	for _, tok := range strings.Split(value, " ") {
		if tok == "" {
			continue
		}
		for _, r := range p.recognizers {
			if m := r.pattern.FindStringSubmatch(tok); m != nil {
				opts = append(opts, r.build(m))
				break
			}
		}
	}
	return opts
}

// noneParser is used by directives whose value is always empty.
type noneParser struct{}

func (noneParser) parse(string) []Option { return nil }

// Source recognizers, ordered from most specific to most permissive.
// Nonce must precede Hash ('nonce-X' would otherwise parse as a hash),
// and Host must come last because its pattern is the most permissive.
var (
	selfRe          = regexp.MustCompile(`^'self'$`)
	unsafeEvalRe    = regexp.MustCompile(`^'unsafe-eval'$`)
	unsafeHashesRe  = regexp.MustCompile(`^'unsafe-hashes'$`)
	unsafeInlineRe  = regexp.MustCompile(`^'unsafe-inline'$`)
	noneRe          = regexp.MustCompile(`^'none'$`)
	strictDynamicRe = regexp.MustCompile(`^'strict-dynamic'$`)
	reportSampleRe  = regexp.MustCompile(`^'report-sample'$`)
	nonceRe         = regexp.MustCompile(`^'nonce-([^'-]+)'$`)
	hashRe          = regexp.MustCompile(`^'([^'-]+)-([^'-]+)'$`)
	schemeRe        = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*):$`)
	hostRe          = regexp.MustCompile(`^(?:([A-Za-z][A-Za-z0-9+.-]*):/{1,2})?([\w.~-]+)(?::(\d+))?$`)
)

var sourceParser = multiParser{recognizers: []recognizer{
	{selfRe, func([]string) Option { return Self() }},
	{unsafeEvalRe, func([]string) Option { return UnsafeEval() }},
	{unsafeHashesRe, func([]string) Option { return UnsafeHashes() }},
	{unsafeInlineRe, func([]string) Option { return UnsafeInline() }},
	{noneRe, func([]string) Option { return None() }},
	{strictDynamicRe, func([]string) Option { return StrictDynamic() }},
	{reportSampleRe, func([]string) Option { return ReportSample() }},
	{nonceRe, func(m []string) Option { return Nonce(m[1]) }},
	{hashRe, func(m []string) Option { return Hash(m[1], m[2]) }},
	{schemeRe, func(m []string) Option { return SchemeSource(m[1]) }},
	{hostRe, func(m []string) Option { return HostSource(m[2], m[1], m[3]) }},
}}

// blockedHostRe is the host pattern without the end anchor: a blocked
// URI carries a path ("https://cdn.example/lib.js") that the host
// source must not.
var blockedHostRe = regexp.MustCompile(`^(?:([A-Za-z][A-Za-z0-9+.-]*):/{1,2})?([\w.~-]+)(?::(\d+))?`)

// parseHostSource extracts a host source from a blocked URI, for policy
// relaxation.
func parseHostSource(uri string) (Source, bool) {
	m := blockedHostRe.FindStringSubmatch(uri)
	if m == nil {
		return Source{}, false
	}
	return HostSource(m[2], m[1], m[3]), true
}

var sandboxTokens = []string{
	"allow-downloads",
	"allow-forms",
	"allow-modals",
	"allow-orientation-lock",
	"allow-pointer-lock",
	"allow-popups",
	"allow-popups-to-escape-sandbox",
	"allow-presentation",
	"allow-same-origin",
	"allow-scripts",
	"allow-storage-access-by-user-activation",
	"allow-top-navigation",
	"allow-top-navigation-by-user-activation",
}

var sandboxRe = regexp.MustCompile(`^(` + strings.Join(sandboxTokens, "|") + `)$`)

var sandboxParser = multiParser{recognizers: []recognizer{
	{sandboxRe, func(m []string) Option { return SandboxToken(m[1]) }},
}}

var mimeTypeRe = regexp.MustCompile(`^([\w.+-]+)/([\w.+-]+)((?:;[^;\s]+)*)$`)

var mimeTypeParser = multiParser{recognizers: []recognizer{
	{mimeTypeRe, func(m []string) Option {
		var params []string
		for _, p := range strings.Split(m[3], ";") {
			if p != "" {
				params = append(params, p)
			}
		}
		return MimeType{Type: m[1], Subtype: m[2], Params: params}
	}},
}}

var textRe = regexp.MustCompile(`^\S+$`)

var textParser = multiParser{recognizers: []recognizer{
	{textRe, func(m []string) Option { return Text(m[0]) }},
}}
