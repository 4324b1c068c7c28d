package output

import (
	"html/template"
	"io"
)

var pageTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
code { background: #f4f4f4; padding: 2px 4px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Target: <strong>{{.TargetDomain}}</strong>, generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>
<p>{{.Summary.Directives}} directives, {{.Summary.Adjustments}} relaxations applied.</p>

<h2>Policy</h2>
<p><code>{{.Policy}}</code></p>

<h2>Directives</h2>
<table>
<tr><th>Directive</th><th>Value</th></tr>
{{range .Directives}}<tr><td>{{.Name}}</td><td><code>{{.Options}}</code></td></tr>
{{end}}</table>

{{if .History}}
<h2>Relaxations</h2>
<table>
<tr><th>Time</th><th>Directive</th><th>Blocked URI</th><th>Result</th></tr>
{{range .History}}<tr><td>{{.Timestamp}}</td><td>{{.Directive}}</td><td>{{.BlockedURI}}</td><td><code>{{.Result}}</code></td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

// RenderHTML writes the report page for the provided data.
func RenderHTML(w io.Writer, page PageData) error {
	return pageTmpl.Execute(w, page)
}
