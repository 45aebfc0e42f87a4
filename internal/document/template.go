package document

import (
	"html/template"
	"strings"
	"time"
)

// TemplateVersion is recorded in the generated file's metadata so old
// documents can be told apart after template changes.
const TemplateVersion = "v2"

// pageData is the root template context.
type pageData struct {
	FileCode     string
	OrderCode    string
	EventName    string
	CustomerName string
	StatusLabel  string
	PreparedBy   string
	GeneratedAt  time.Time
	LogoLeft     EmbeddedImage
	LogoRight    EmbeddedImage
	Schedules    []ScheduleLine
	Beos         []beoSection
	OrderImages  []EmbeddedImage
}

type beoSection struct {
	Department string
	PIC        string
	Package    string
	Notes      string
	Images     []EmbeddedImage
}

var pageTemplate = template.Must(template.New("beo").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; }
header { display: flex; justify-content: space-between; align-items: center; border-bottom: 2px solid #333; padding-bottom: 8px; }
h1 { font-size: 18px; margin: 4px 0; }
table { width: 100%; border-collapse: collapse; margin: 8px 0; }
th, td { border: 1px solid #999; padding: 4px 6px; text-align: left; }
.meta { color: #555; font-size: 10px; }
.section { margin-top: 14px; page-break-inside: avoid; }
.attachments img { max-width: 100%; margin: 4px 0; }
</style>
</head>
<body>
<header>
<img src="{{.LogoLeft.DataURI}}" width="{{.LogoLeft.Width}}" height="{{.LogoLeft.Height}}" alt="">
<div>
<h1>Banquet Event Order</h1>
<div class="meta">{{.FileCode}} &middot; {{.OrderCode}} &middot; {{.StatusLabel}}</div>
<div class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04"}} by {{.PreparedBy}}</div>
</div>
<img src="{{.LogoRight.DataURI}}" width="{{.LogoRight.Width}}" height="{{.LogoRight.Height}}" alt="">
</header>

<div class="section">
<h2>{{.EventName}}</h2>
<div>Customer: {{.CustomerName}}</div>
</div>

{{if .Schedules}}
<div class="section">
<h3>Schedule</h3>
<table>
<tr><th>Activity</th><th>Location</th><th>Start</th><th>End</th></tr>
{{range .Schedules}}
<tr><td>{{.Title}}</td><td>{{.Location}}</td><td>{{.StartsAt.Format "2006-01-02 15:04"}}</td><td>{{.EndsAt.Format "2006-01-02 15:04"}}</td></tr>
{{end}}
</table>
</div>
{{end}}

{{range .Beos}}
<div class="section">
<h3>{{.Department}}</h3>
<table>
<tr><th>PIC</th><td>{{if .PIC}}{{.PIC}}{{else}}&mdash;{{end}}</td></tr>
<tr><th>Package</th><td>{{if .Package}}{{.Package}}{{else}}&mdash;{{end}}</td></tr>
<tr><th>Notes</th><td>{{.Notes}}</td></tr>
</table>
{{if .Images}}
<div class="attachments">
{{range .Images}}<img src="{{.DataURI}}" width="{{.Width}}" height="{{.Height}}" alt="">{{end}}
</div>
{{end}}
</div>
{{end}}

{{if .OrderImages}}
<div class="section">
<h3>Attachments</h3>
<div class="attachments">
{{range .OrderImages}}<img src="{{.DataURI}}" width="{{.Width}}" height="{{.Height}}" alt="">{{end}}
</div>
</div>
{{end}}
</body>
</html>`))

func renderHTML(data pageData) (string, error) {
	var b strings.Builder
	if err := pageTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
