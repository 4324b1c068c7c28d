package csp

import (
	"errors"
	"regexp"
	"strings"
)

// Family groups directives by CSP chapter.
type Family int

const (
	FamilyDocument Family = iota
	FamilyFetch
	FamilyNavigation
	FamilyReporting
	FamilyBoolean
)

// OptionKind names the option variant a directive's value is made of.
type OptionKind int

const (
	OptionSource OptionKind = iota
	OptionSandbox
	OptionMimeType
	OptionText
	OptionNone
)

// Info is the static description of one known directive.
type Info struct {
	Name   string
	Family Family
	Kind   OptionKind

	InHeader     bool
	InReportOnly bool
	InMeta       bool
}

func directive(name string, family Family, kind OptionKind) Info {
	return Info{Name: name, Family: family, Kind: kind, InHeader: true, InReportOnly: true, InMeta: true}
}

func noMeta(i Info) Info {
	i.InMeta = false
	return i
}

// registry lists every known directive. The order is the serialization
// order and the directive-parse scan order; the script-src-* and
// style-src-* variants precede their prefix so that prefix scanning is
// unambiguous.
var registry = []Info{
	directive("base-uri", FamilyDocument, OptionSource),
	directive("plugin-types", FamilyDocument, OptionMimeType),
	{Name: "sandbox", Family: FamilyDocument, Kind: OptionSandbox, InHeader: true},
	directive("child-src", FamilyFetch, OptionSource),
	directive("connect-src", FamilyFetch, OptionSource),
	directive("default-src", FamilyFetch, OptionSource),
	directive("font-src", FamilyFetch, OptionSource),
	directive("frame-src", FamilyFetch, OptionSource),
	directive("img-src", FamilyFetch, OptionSource),
	directive("manifest-src", FamilyFetch, OptionSource),
	directive("media-src", FamilyFetch, OptionSource),
	directive("object-src", FamilyFetch, OptionSource),
	directive("prefetch-src", FamilyFetch, OptionSource),
	directive("script-src-attr", FamilyFetch, OptionSource),
	directive("script-src-elem", FamilyFetch, OptionSource),
	directive("script-src", FamilyFetch, OptionSource),
	directive("style-src-attr", FamilyFetch, OptionSource),
	directive("style-src-elem", FamilyFetch, OptionSource),
	directive("style-src", FamilyFetch, OptionSource),
	directive("worker-src", FamilyFetch, OptionSource),
	directive("form-action", FamilyNavigation, OptionSource),
	noMeta(directive("frame-ancestors", FamilyNavigation, OptionSource)),
	noMeta(directive("navigate-to", FamilyNavigation, OptionSource)),
	noMeta(directive("report-to", FamilyReporting, OptionText)),
	noMeta(directive("report-uri", FamilyReporting, OptionText)),
	directive("block-all-mixed-content", FamilyBoolean, OptionNone),
	directive("upgrade-insecure-requests", FamilyBoolean, OptionNone),
}

// Lookup returns the registry entry for a directive name.
func Lookup(name string) (Info, bool) {
	for _, info := range registry {
		if info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}

// Names returns every known directive name in registry order.
func Names() []string {
	names := make([]string, len(registry))
	for i, info := range registry {
		names[i] = info.Name
	}
	return names
}

func parserFor(kind OptionKind) optionParser {
	switch kind {
	case OptionSource:
		return sourceParser
	case OptionSandbox:
		return sandboxParser
	case OptionMimeType:
		return mimeTypeParser
	case OptionText:
		return textParser
	}
	return noneParser{}
}

// Directive is an immutable directive instance: a registry entry plus
// its options. Relaxation returns a new value.
type Directive struct {
	info Info
	opts []Option
}

func (d Directive) Name() string      { return d.info.Name }
func (d Directive) Info() Info        { return d.info }
func (d Directive) Options() []Option { return d.opts }

// String is the wire form: the bare name when there are no options,
// otherwise the name and the space-joined options.
func (d Directive) String() string {
	if len(d.opts) == 0 {
		return d.info.Name
	}
	return d.info.Name + " " + joinOptions(d.opts)
}

// Strictest returns the maximally restrictive instance of the named
// directive. Reporting directives have no strictest form; they are built
// with ConstructSimple instead.
func Strictest(name string) (Directive, bool) {
	info, ok := Lookup(name)
	if !ok || info.Kind == OptionText {
		return Directive{}, false
	}
	d := Directive{info: info}
	if info.Kind == OptionSource {
		d.opts = []Option{None()}
	}
	return d, true
}

// ConstructSimple builds a reporting directive carrying a single opaque
// token, e.g. a report-to group name or a report-uri endpoint.
func ConstructSimple(name, value string) (Directive, bool) {
	info, ok := Lookup(name)
	if !ok || info.Kind != OptionText || value == "" {
		return Directive{}, false
	}
	return Directive{info: info, opts: []Option{Text(value)}}, true
}

// ParseDirective parses one directive clause. The first registry name
// that is a prefix of the input wins; the remainder is handed to that
// directive's option parser. Unknown names yield no directive.
func ParseDirective(s string) (Directive, bool) {
	s = strings.TrimSpace(s)
	for _, info := range registry {
		if strings.HasPrefix(s, info.Name) {
			value := strings.TrimSpace(s[len(info.Name):])
			return Directive{info: info, opts: parserFor(info.Kind).parse(value)}, true
		}
	}
	return Directive{}, false
}

// Relaxation errors. ErrNotAdjustable marks directives that do not take
// source options; ErrUnhandledURI marks blocked URIs no rule covers.
var (
	ErrNotAdjustable = errors.New("directive does not take source options")
	ErrUnhandledURI  = errors.New("unhandled blocked URI")
)

var bareSchemeRe = regexp.MustCompile(`^[A-Za-z-]+$`)

// AdjustToURI returns a copy of the directive widened to admit uri.
// selfPattern matches URIs served by the local proxy. The receiver is
// untouched; on ErrUnhandledURI the receiver is returned unchanged so
// the caller can keep enforcing it.
func (d Directive) AdjustToURI(uri string, selfPattern *regexp.Regexp) (Directive, error) {
	if d.info.Kind != OptionSource {
		return Directive{}, ErrNotAdjustable
	}
	switch {
	case selfPattern != nil && selfPattern.MatchString(uri):
		return d.withSource(Self()), nil
	case uri == "inline":
		return d.withSource(UnsafeInline()), nil
	case uri == "eval":
		return d.withSource(UnsafeEval()), nil
	case bareSchemeRe.MatchString(uri):
		return d.withSource(SchemeSource(uri)), nil
	}
	if src, ok := parseHostSource(uri); ok {
		return d.withSource(src), nil
	}
	return d, ErrUnhandledURI
}

// withSource adds src under set semantics: 'none' is dropped, duplicates
// are suppressed.
func (d Directive) withSource(src Source) Directive {
	for _, o := range d.opts {
		if o.String() == src.String() {
			return d
		}
	}
	out := Directive{info: d.info}
	for _, o := range d.opts {
		if s, ok := o.(Source); ok && s.Kind == KindNone {
			continue
		}
		out.opts = append(out.opts, o)
	}
	out.opts = append(out.opts, src)
	return out
}
