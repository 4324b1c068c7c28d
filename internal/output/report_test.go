package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/selimozcann/cspderive/internal/csp"
	"github.com/selimozcann/cspderive/internal/policy"
)

func sampleHistory() []policy.Adjustment {
	return []policy.Adjustment{{
		Directive:  "script-src",
		BlockedURI: "https://cdn.example/lib.js",
		Result:     "script-src https://cdn.example",
		At:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	records := []Record{BuildRecord(sampleHistory()[0])}
	if err := NewJSONLWriter(&buf).WriteAll(records); err != nil {
		t.Fatalf("write: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, `"directive":"script-src"`) {
		t.Fatalf("unexpected line: %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("expected one line, got %q", line)
	}
}

func TestRenderHTML(t *testing.T) {
	p := csp.NewStrictPolicy("", "http://localhost:9/uri")
	page := BuildPage("example.com", p.Directives(), p.Serialize(), sampleHistory())

	var buf bytes.Buffer
	if err := RenderHTML(&buf, page); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "example.com") {
		t.Fatalf("missing target domain")
	}
	if !strings.Contains(out, "default-src") {
		t.Fatalf("missing policy directive")
	}
	if !strings.Contains(out, "https://cdn.example/lib.js") {
		t.Fatalf("missing relaxation history")
	}
}
