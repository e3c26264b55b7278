package render

import (
	"html/template"
	"io"
	"net/url"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/db"
	"github.com/yumyai/roundup/pkg/model"
)

var (
	geneNamesPageTemplate     *template.Template
	seqIDLookupFormTemplate   *template.Template
	seqIDLookupResultTemplate *template.Template
)

type searchTypeOption struct {
	Value    db.SearchType
	Label    string
	Selected bool
}

type geneNameRow struct {
	GeneName string
	Genome   string
	Browse   string
}

// GeneNamesPageData drives the gene name search page. Rows are only shown
// once Searched is set.
type GeneNamesPageData struct {
	Title       string
	Message     string
	Substring   string
	SearchTypes []searchTypeOption
	Searched    bool
	Rows        []geneNameRow
}

func NewGeneNamesPageData(message, substring string, selected db.SearchType, hits []db.GeneNameHit, searched bool) GeneNamesPageData {
	data := GeneNamesPageData{Title: "Search Gene Names", Message: message, Substring: substring, Searched: searched}
	for _, st := range db.SearchTypes {
		data.SearchTypes = append(data.SearchTypes, searchTypeOption{Value: st, Label: st.Label(), Selected: st == selected})
	}
	for _, h := range hits {
		data.Rows = append(data.Rows, geneNameRow{
			GeneName: h.GeneName,
			Genome:   model.GenomeDisplayName(h.Genome),
			Browse:   "/browse?" + url.Values{"genome": {h.Genome}, "browse_id": {h.GeneName}}.Encode(),
		})
	}
	return data
}

// SeqIDLookupData drives both the lookup form and its result.
type SeqIDLookupData struct {
	Title    string
	Genomes  []model.Genome
	Genome   string
	Fasta    string
	SeqID    string
	Sequence string
}

func init() {
	geneNamesTmpl := `
	{{template "header" .}}
		<h2>Search Gene Names</h2>
		{{if .Message}}<p style="color: red;">{{ .Message }}</p>{{end}}
		<form action="/search/gene-names" method="GET">
			<label for="substring">Text Substring</label>
			<input type="text" name="substring" id="substring" value="{{ .Substring }}"></input>
			<select name="search_type">
			{{range .SearchTypes}}<option value="{{ .Value }}"{{if .Selected}} selected{{end}}>{{ .Label }}</option>{{end}}
			</select>
			<input type="submit" value="Search"></input>
		</form>
		{{if .Searched}}
			{{if .Rows}}
			<table border="1">
				<tr><th>Gene Name</th><th>Genome</th><th></th></tr>
				{{range .Rows}}
				<tr><td>{{ .GeneName }}</td><td>{{ .Genome }}</td><td><a href="{{ .Browse }}">Browse</a></td></tr>
				{{end}}
			</table>
			{{else}}
			<p>No gene names matched your search.</p>
			{{end}}
		{{end}}
	{{template "footer" .}}`

	lookupFormTmpl := `
	{{template "header" .}}
		<h2>Sequence Id Lookup</h2>
		<p>Find the id of a protein sequence in a genome.</p>
		<form action="/seq-id-lookup" method="POST">
			<label for="genome">Primary Genome</label>
			<select name="genome" id="genome">
				<option value="">-- select --</option>
				{{range .Genomes}}<option value="{{ .ID }}"{{if eqs .ID $.Genome}} selected{{end}}>{{ .Name }}</option>{{end}}
			</select>
			<br/>
			<label for="fasta">FASTA Sequence</label><br/>
			<textarea name="fasta" id="fasta" rows="10" cols="80">{{ .Fasta }}</textarea>
			<br/>
			<input type="submit" value="Look Up"></input>
		</form>
	{{template "footer" .}}`

	lookupResultTmpl := `
	{{template "header" .}}
		<h2>Sequence Id Lookup Result</h2>
		<p><strong>Genome:</strong> {{ .Genome }}</p>
		{{if .SeqID}}
			<p><strong>Sequence Id:</strong> {{ .SeqID }}</p>
			{{if .Sequence}}<pre>{{ .Sequence }}</pre>{{end}}
		{{else}}
			<p>No sequence in this genome matched your query.</p>
		{{end}}
		<p><strong>Query:</strong></p>
		<pre>{{ .Fasta }}</pre>
	{{template "footer" .}}`

	geneNamesPageTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(geneNamesTmpl))
	seqIDLookupFormTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(lookupFormTmpl))
	seqIDLookupResultTemplate = template.Must(template.Must(baseTemplate.Clone()).Parse(lookupResultTmpl))
}

func RenderGeneNamesPage(w io.Writer, data GeneNamesPageData) error {
	return geneNamesPageTemplate.Execute(w, data)
}

func RenderSeqIDLookupForm(w io.Writer, data SeqIDLookupData) error {
	data.Title = "Sequence Id Lookup"
	return seqIDLookupFormTemplate.Execute(w, data)
}

func RenderSeqIDLookupResult(w io.Writer, data SeqIDLookupData) error {
	logger.Info("Rendering sequence id lookup", zap.String("genome", data.Genome), zap.String("seq_id", data.SeqID))
	data.Title = "Sequence Id Lookup Result"
	return seqIDLookupResultTemplate.Execute(w, data)
}
