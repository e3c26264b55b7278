package render

import (
	"html/template"
	"io"

	"github.com/yumyai/roundup/pkg/model"
)

var (
	splashPageTemplate  *template.Template
	browseFormTemplate  *template.Template
	clusterFormTemplate *template.Template
	rawFormTemplate     *template.Template
	genomesPageTemplate *template.Template
)

// FormData is shared by the query forms.
type FormData struct {
	Title       string
	Genomes     []model.Genome
	Divergences []model.Divergence
	Evalues     []model.Evalue
	MaxGenomes  int

	// prefill, used when the gene name search links back to browse
	Genome   string
	BrowseID string
}

func NewFormData(title string, genomes []string, maxGenomes int) FormData {
	gs := make([]model.Genome, 0, len(genomes))
	for _, g := range genomes {
		gs = append(gs, model.NewGenome(g))
	}
	return FormData{
		Title:       title,
		Genomes:     gs,
		Divergences: model.Divergences,
		Evalues:     model.Evalues,
		MaxGenomes:  maxGenomes,
	}
}

func init() {
	// Fields every orthology query form shares.
	commonFieldsTmpl := `{{define "common_fields"}}
		<fieldset>
			<label for="divergence">Divergence</label>
			<select name="divergence" id="divergence">
			{{range .Divergences}}<option value="{{ . }}">{{ . }}</option>{{end}}
			</select>
			<label for="evalue">E-value</label>
			<select name="evalue" id="evalue">
			{{range .Evalues}}<option value="{{ . }}">{{ . }}</option>{{end}}
			</select>
		</fieldset>
		<fieldset>
			<label for="distance_lower_limit">Distance Lower Limit</label>
			<input type="text" name="distance_lower_limit" id="distance_lower_limit" size="5"></input>
			<label for="distance_upper_limit">Distance Upper Limit</label>
			<input type="text" name="distance_upper_limit" id="distance_upper_limit" size="5"></input>
		</fieldset>
		<fieldset>
			<label for="gene_name">Include Gene Names in Result</label>
			<select name="gene_name" id="gene_name"><option value="true">Yes</option><option value="false">No</option></select>
			<label for="go_term">Include GO Terms in Result</label>
			<select name="go_term" id="go_term"><option value="true">Yes</option><option value="false">No</option></select>
		</fieldset>
	{{end}}`

	genomeOptionsTmpl := `{{define "genome_options"}}
		{{range .Genomes}}<option value="{{ .ID }}"{{if eqs .ID $.Genome}} selected{{end}}>{{ .Name }}</option>{{end}}
	{{end}}`

	splashTmpl := `
	{{template "header" .}}
		<h2>Welcome to Roundup</h2>
		<p>Roundup is a large-scale orthology database spanning {{ len .Genomes }} genomes.</p>
		<ul>
			<li><a href="/browse">Browse</a> the orthologs of a primary genome in one or more secondary genomes.</li>
			<li><a href="/cluster">Retrieve</a> the gene clusters shared by a set of genomes.</li>
			<li><a href="/raw">Download raw results</a> for a pair of genomes.</li>
			<li><a href="/search/gene-names">Search gene names</a> or <a href="/seq-id-lookup">look up a sequence id</a>.</li>
		</ul>
	{{template "footer" .}}`

	browseTmpl := `
	{{template "header" .}}
		<h2>Browse</h2>
		<form action="/query/browse" method="POST">
			<fieldset>
				<label for="genome">Primary Genome</label>
				<select name="genome" id="genome">
					<option value="">-- select --</option>
					{{template "genome_options" .}}
				</select>
			</fieldset>
			<fieldset>
				<label for="limit_genomes">Secondary Genomes</label>
				<select name="limit_genomes" id="limit_genomes" multiple size="10">
					{{range .Genomes}}<option value="{{ .ID }}">{{ .Name }}</option>{{end}}
				</select>
			</fieldset>
			<fieldset>
				<label for="browse_id_type">Identifier Type</label>
				<select name="browse_id_type" id="browse_id_type">
					<option value="gene_name_type">Gene Name</option>
					<option value="seq_id_type">Sequence Id</option>
				</select>
				<label for="browse_id">Identifier</label>
				<input type="text" name="browse_id" id="browse_id" value="{{ .BrowseID }}"></input>
			</fieldset>
			{{template "common_fields" .}}
			<input type="submit" value="Browse"></input>
		</form>
	{{template "footer" .}}`

	clusterTmpl := `
	{{template "header" .}}
		<h2>Retrieve</h2>
		<form action="/query/cluster" method="POST">
			<fieldset>
				<label for="genomes">Genomes</label>
				<select name="genomes" id="genomes" multiple size="15">
					{{range .Genomes}}<option value="{{ .ID }}">{{ .Name }}</option>{{end}}
				</select>
				{{if gt .MaxGenomes 0}}<p>Select between 2 and {{ .MaxGenomes }} genomes.</p>{{end}}
			</fieldset>
			{{template "common_fields" .}}
			<fieldset>
				<label><input type="checkbox" name="tc_only" value="true"></input> Only Show Transitively Closed Gene Clusters</label>
			</fieldset>
			<input type="submit" value="Retrieve"></input>
		</form>
	{{template "footer" .}}`

	rawTmpl := `
	{{template "header" .}}
		<h2>Raw Results</h2>
		<form action="/query/raw" method="POST">
			<fieldset>
				<label for="query_genome">First Genome</label>
				<select name="query_genome" id="query_genome">
					<option value="">-- select --</option>
					{{range .Genomes}}<option value="{{ .ID }}">{{ .Name }}</option>{{end}}
				</select>
				<label for="subject_genome">Second Genome</label>
				<select name="subject_genome" id="subject_genome">
					<option value="">-- select --</option>
					{{range .Genomes}}<option value="{{ .ID }}">{{ .Name }}</option>{{end}}
				</select>
			</fieldset>
			<fieldset>
				<label for="divergence">Divergence</label>
				<select name="divergence" id="divergence">
				{{range .Divergences}}<option value="{{ . }}">{{ . }}</option>{{end}}
				</select>
				<label for="evalue">E-value</label>
				<select name="evalue" id="evalue">
				{{range .Evalues}}<option value="{{ . }}">{{ . }}</option>{{end}}
				</select>
			</fieldset>
			<input type="submit" value="Download"></input>
		</form>
	{{template "footer" .}}`

	genomesTmpl := `
	{{template "header" .}}
		<h2>Genomes</h2>
		<p>{{ len .Genomes }} genomes are available.</p>
		<table border="1">
			<tr><th>Genome</th><th>Source Id</th></tr>
			{{range .Genomes}}<tr><td>{{ .Name }}</td><td>{{ .ID }}</td></tr>{{end}}
		</table>
	{{template "footer" .}}`

	forms := template.Must(baseTemplate.Clone())
	forms = template.Must(forms.Parse(commonFieldsTmpl))
	forms = template.Must(forms.Parse(genomeOptionsTmpl))

	splashPageTemplate = template.Must(template.Must(forms.Clone()).Parse(splashTmpl))
	browseFormTemplate = template.Must(template.Must(forms.Clone()).Parse(browseTmpl))
	clusterFormTemplate = template.Must(template.Must(forms.Clone()).Parse(clusterTmpl))
	rawFormTemplate = template.Must(template.Must(forms.Clone()).Parse(rawTmpl))
	genomesPageTemplate = template.Must(template.Must(forms.Clone()).Parse(genomesTmpl))
}

func RenderSplashPage(w io.Writer, data FormData) error {
	return splashPageTemplate.Execute(w, data)
}

// RenderQueryForm writes the form for kind.
func RenderQueryForm(w io.Writer, kind model.QueryKind, data FormData) error {
	switch kind {
	case model.KindCluster:
		return clusterFormTemplate.Execute(w, data)
	case model.KindRaw:
		return rawFormTemplate.Execute(w, data)
	}
	return browseFormTemplate.Execute(w, data)
}

func RenderGenomesPage(w io.Writer, data FormData) error {
	return genomesPageTemplate.Execute(w, data)
}
