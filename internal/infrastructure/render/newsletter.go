// Package render turns a day's derived triples into newsletter documents.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"

	"newsdesk/internal/domain"
)

const markdownTemplate = `# Daily News Digest — {{ .Date }}

{{ range .Entries }}## {{ .Headline }}

{{ .Summary }}

**Fact check:** {{ .Status }}{{ if .Citations }} ({{ .Citations }}){{ end }}

{{ .Commentary }}

{{ end }}`

const htmlShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Daily News Digest — {{ .Date }}</title>
</head>
<body>
{{ .Body }}
</body>
</html>
`

var (
	mdTmpl   = texttemplate.Must(texttemplate.New("newsletter.md").Parse(markdownTemplate))
	htmlTmpl = template.Must(template.New("newsletter.html").Parse(htmlShell))
)

type markdownEntry struct {
	Headline   string
	Summary    string
	Status     string
	Citations  string
	Commentary string
}

// Markdown renders the plain-text newsletter for one day.
func Markdown(date time.Time, entries []domain.IssueEntry) (string, error) {
	data := struct {
		Date    string
		Entries []markdownEntry
	}{Date: date.Format("2006-01-02")}

	for _, e := range entries {
		data.Entries = append(data.Entries, markdownEntry{
			Headline:   headline(e.Summary),
			Summary:    e.Summary.Text,
			Status:     string(e.FactCheck.Status),
			Citations:  strings.Join(e.FactCheck.Citations, ", "),
			Commentary: e.Commentary.Text,
		})
	}

	var buf bytes.Buffer
	if err := mdTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// HTML converts the Markdown newsletter into a standalone HTML document.
func HTML(date time.Time, markdown string) (string, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}

	data := struct {
		Date string
		Body template.HTML
	}{
		Date: date.Format("2006-01-02"),
		Body: template.HTML(body.String()),
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// headline picks a title for an entry: the summary topic when present,
// otherwise the first line of the summary text.
func headline(s domain.Summary) string {
	if s.Topic != "" {
		return s.Topic
	}
	line, _, _ := strings.Cut(strings.TrimSpace(s.Text), "\n")
	line = strings.TrimLeft(line, "-• ")
	if len(line) > 80 {
		line = line[:80]
	}
	if line == "" {
		return "Untitled"
	}
	return line
}
