package render

import (
	"html/template"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
)

// GenericErrorMessage is all a user learns about an external failure.
const GenericErrorMessage = "Error running a command. Please contact Support."

// baseTemplate is built before any init so every page file can clone it.
var baseTemplate = newBaseTemplate()

var (
	waitPageTemplate        *template.Template
	unavailablePageTemplate *template.Template
	errorPageTemplate       *template.Template
	messagesPageTemplate    *template.Template
	contentPageTemplate     *template.Template
)

func newBaseTemplate() *template.Template {
	layoutTmpl := `
	{{define "header"}}
	<!DOCTYPE html>
	<html>
	<head>
	    <link href="/static/style.css" rel="stylesheet"></link>
		<script src="/static/script.js" defer></script>
		<title>Roundup{{if .Title}}: {{.Title}}{{end}}</title>
		{{block "head" .}}{{end}}
	</head>
	<body>
		<header class="app-header">
			<h1 class="app-name"><a href="/">Roundup</a></h1>
			<p class="app-description">
				a database of orthologs and their functional annotations across fully sequenced genomes.
			</p>
			<nav>
				[<a href="/browse">Browse</a>]
				[<a href="/cluster">Retrieve</a>]
				[<a href="/raw">Raw Results</a>]
				[<a href="/search/gene-names">Gene Names</a>]
				[<a href="/seq-id-lookup">Sequence Lookup</a>]
				[<a href="/genomes">Genomes</a>]
			</nav>
		</header>
	{{end}}
	{{define "footer"}}
	</body>
	</html>
	{{end}}`

	base := template.New("base").Funcs(template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"mul": func(a, b int) int { return a * b },
		"eqs": func(a, b string) bool { return a == b },
	})
	return template.Must(base.Parse(layoutTmpl))
}

// init parses the status pages built on the shared layout.
func init() {
	waitTmpl := `
	{{define "head"}}
        <script>
	        setTimeout(function () { window.location.replace({{ .NextURL }}); }, {{ mul .DelaySeconds 1000 }});
        </script>
	{{end}}
	{{template "header" .}}
		<h2>Your query is running</h2>
		<p>This page checks on it every {{ .DelaySeconds }} seconds and shows the result as soon as it is ready.</p>
		{{if gt .Count 0}}<p>Checked {{ .Count }} time{{if gt .Count 1}}s{{end}} so far.</p>{{end}}
		<p>If the page does not update, <a href="{{ .NextURL }}">check now</a>.</p>
	{{template "footer" .}}`

	unavailableTmpl := `
	{{template "header" .}}
		<h2>Result unavailable</h2>
		<p>The result you requested is not available. It may have expired, or the job that computed it did not finish.</p>
		<p>Please <a href="/">run your query again</a>.</p>
	{{template "footer" .}}`

	errorTmpl := `
	{{template "header" .}}
		<h2>Error</h2>
		<p style="color: red;">{{ .Message }}</p>
	{{template "footer" .}}`

	messagesTmpl := `
	{{template "header" .}}
		<h2>{{ .Heading }}</h2>
		<ul class="errors">
		{{range .Messages}}
			<li>{{ . }}</li>
		{{end}}
		</ul>
		<p>Use your browser's back button to correct the query.</p>
	{{template "footer" .}}`

	contentTmpl := `
	{{template "header" .}}
		{{if .Preformatted}}<pre>{{ .Body }}</pre>{{else}}{{ .HTML }}{{end}}
	{{template "footer" .}}`

	waitPageTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(waitTmpl))
	unavailablePageTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(unavailableTmpl))
	errorPageTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(errorTmpl))
	messagesPageTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(messagesTmpl))
	contentPageTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(contentTmpl))
}

// WaitPageData drives the polling page. NextURL already carries count+1.
type WaitPageData struct {
	Title        string
	NextURL      string
	Count        int
	DelaySeconds int
}

func NewWaitPageData(nextURL string, count int, delay time.Duration) WaitPageData {
	secs := int(delay / time.Second)
	if secs < 1 {
		secs = 1
	}
	return WaitPageData{Title: "Please wait", NextURL: nextURL, Count: count, DelaySeconds: secs}
}

func RenderWaitPage(w io.Writer, data WaitPageData) error {
	logger.Debug("Rendering wait page", zap.String("next", data.NextURL), zap.Int("count", data.Count))
	return waitPageTemplate.Execute(w, data)
}

func RenderUnavailablePage(w io.Writer) error {
	return unavailablePageTemplate.Execute(w, struct{ Title string }{"Result unavailable"})
}

// RenderErrorPage shows msg, or the generic message when msg is empty.
func RenderErrorPage(w io.Writer, msg string) error {
	if msg == "" {
		msg = GenericErrorMessage
	}
	return errorPageTemplate.Execute(w, struct {
		Title   string
		Message string
	}{"Error", msg})
}

// RenderMessagesPage lists validation or prerequisite problems.
func RenderMessagesPage(w io.Writer, heading string, messages []string) error {
	return messagesPageTemplate.Execute(w, struct {
		Title    string
		Heading  string
		Messages []string
	}{"Error", heading, messages})
}

// RenderContentPage wraps a rendered result in the site layout.
func RenderContentPage(w io.Writer, title string, c Content) error {
	return contentPageTemplate.Execute(w, struct {
		Title        string
		Preformatted bool
		Body         string
		HTML         template.HTML
	}{title, !c.HTML, c.Body, template.HTML(c.Body)})
}
