package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/yumyai/roundup/pkg/model"
)

const (
	DefaultPageSize = 100
	PageNumParam    = "page_num"
	PageSizeParam   = "page_size"
)

// calculateByCopyNumber maps the number of orthologs a genome contributes
// to a cluster onto warm colors.
// 0 -> grey, 1..5 -> distinct YlOrRd-like buckets,
// >5 -> gradient from deep orange to dark red up to a cap.
func calculateByCopyNumber(val int) string {
	value := float64(val)
	if value <= 0 {
		return "#CCCCCC"
	}

	v := int(math.Floor(value + 1e-9))
	switch v {
	case 1:
		return "#FFFFB2" // light yellow
	case 2:
		return "#FECC5C" // yellow-orange
	case 3:
		return "#FD8D3C" // orange
	case 4:
		return "#F03B20" // red-orange
	case 5:
		return "#BD0026" // red
	}

	const capVal = 30.0
	if value > capVal {
		value = capVal
	}
	sr, sg, sb := 189.0, 0.0, 38.0 // #BD0026
	er, eg, eb := 128.0, 0.0, 0.0  // #800000
	t := (value - 5.0) / (capVal - 5.0)
	r := int(math.Round(lerp(sr, er, t)))
	g := int(math.Round(lerp(sg, eg, t)))
	b := int(math.Round(lerp(sb, eb, t)))
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Gene is one ortholog line in the cluster table.
type Gene struct {
	Accession string
	Genome    string
	GeneName  string
	Terms     string
	Color     string
}

type ClusterRow struct {
	Number      int
	AvgDistance string
	Profile     string
	FastaURL    string
	Genes       []Gene
}

// SequencesURL links to the FASTA of every sequence in cluster number n.
func SequencesURL(resultID string, n int) string {
	return "/sequences?" + url.Values{"result_id": {resultID}, "cluster": {strconv.Itoa(n)}}.Encode()
}

// Paging is the resolved page of a result table.
type Paging struct {
	PageNum  int
	PageSize int
	NumPages int
	NumRows  int
	Start    int
	End      int
}

// NewPaging clamps the requested page. A page size below 1 shows everything.
func NewPaging(params url.Values, numRows int) Paging {
	size, err := strconv.Atoi(params.Get(PageSizeParam))
	if err != nil {
		size = DefaultPageSize
	}
	if size < 1 {
		size = max(numRows, 1)
	}
	pages := int(math.Ceil(float64(numRows) / float64(size)))
	if pages == 0 {
		pages = 1
	}
	num, err := strconv.Atoi(params.Get(PageNumParam))
	if err != nil || num < 1 {
		num = 1
	}
	if num > pages {
		num = pages
	}
	start := (num - 1) * size
	end := start + size
	if end > numRows {
		end = numRows
	}
	return Paging{PageNum: num, PageSize: size, NumPages: pages, NumRows: numRows, Start: start, End: end}
}

func arrangeClusters(resultID string, r *model.Result, p Paging) []ClusterRow {
	genomes := r.Genomes()
	rows := make([]ClusterRow, 0, p.End-p.Start)
	for i := p.Start; i < p.End; i++ {
		cluster := r.Rows[i]
		var profile strings.Builder
		for _, bit := range cluster.Profile() {
			profile.WriteString(strconv.Itoa(bit))
		}
		row := ClusterRow{
			Number:      i + 1,
			AvgDistance: formatDistance(cluster.AvgDistance),
			Profile:     profile.String(),
			FastaURL:    SequencesURL(resultID, i+1),
		}
		for col, ids := range cluster.Genes {
			genome := ""
			if col < len(genomes) {
				genome = model.GenomeDisplayName(genomes[col])
			}
			color := calculateByCopyNumber(len(ids))
			if len(ids) == 0 {
				row.Genes = append(row.Genes, Gene{Accession: "-", Genome: genome, GeneName: "-", Terms: "-", Color: color})
				continue
			}
			for _, id := range ids {
				g := Gene{Accession: r.Accession(id), Genome: genome, GeneName: "-", Terms: "-", Color: color}
				if name := r.SeqIDToData[id].GeneName; name != "" {
					g.GeneName = name
				}
				if terms := r.TermNames(id); len(terms) > 0 {
					g.Terms = strings.Join(terms, ", ")
				}
				row.Genes = append(row.Genes, g)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

var resultTableTemplate *template.Template

func init() {
	tableTmpl := `
	<div class="title">Roundup Orthology Database Search Result</div>
	<pre class="query_desc">{{ .Result.QueryDesc }}</pre>
	{{if eq .Paging.NumRows 0}}
		<div>No gene clusters matched your search.</div>
	{{else}}
		{{if eq .Paging.NumRows 1}}<div>1 gene cluster matched your search.</div>
		{{else}}<div>{{ .Paging.NumRows }} gene clusters matched your search.</div>{{end}}
		<div>View result as:
			<a href="{{ .Links.GeneSummary }}">Gene Clusters Summary</a>,
			<a href="{{ .Links.TermsSummary }}">GO Terms Summary</a>,
			<a href="{{ .Links.Hamming }}">Phylogenetic Profile Summary</a>
		</div>
		<div>Download result as:
			<a href="{{ .Links.Text }}">Text</a>,
			<a href="{{ .Links.Phyletic }}">Phylogenetic Profile Matrix</a>,
			<a href="{{ .Links.Phylip }}">PHYLIP-formatted Matrix</a>, or
			<a href="{{ .Links.Nexus }}">NEXUS-formatted Matrix</a>
		</div>
		{{template "pagination" .}}
		<table class="roundup_cluster" border="1">
		{{range .Rows}}
			<tr class="c_h"><td colspan="4">Gene Cluster #{{ .Number }} | {{ $.DistanceHeader }}: {{ .AvgDistance }} | Phyletic Profile: {{ .Profile }} | <a href="{{ .FastaURL }}">FASTA</a></td></tr>
			<tr><td>Sequence Id</td><td>Genome</td><td>Gene Name</td><td>GO Terms</td></tr>
			{{range .Genes}}
				<tr>
					<td bgcolor="{{ .Color }}">{{ .Accession }}</td>
					<td>{{ .Genome }}</td>
					<td>{{ .GeneName }}</td>
					<td>{{ .Terms }}</td>
				</tr>
			{{end}}
			<tr class="c_f"><td colspan="4">&nbsp;</td></tr>
		{{end}}
		</table>
		{{template "pagination" .}}
	{{end}}`

	paginationTmpl := `{{define "pagination"}}
	<form class="pagination" action="/result" method="GET">
		{{range $k, $v := .Hidden}}<input type="hidden" name="{{ $k }}" value="{{ $v }}"></input>{{end}}
		{{if gt .Paging.PageNum 1}}
			<a href="{{ .PrevURL }}">&lt;&lt; prev</a>
		{{else}}
			<span>&lt;&lt; prev</span>
		{{end}}
		<span>Page <input type="text" size="3" name="page_num" value="{{ .Paging.PageNum }}"></input> of {{ .Paging.NumPages }} pages.</span>
		<span><input type="text" size="3" name="page_size" value="{{ .Paging.PageSize }}"></input> items per page.</span>
		<input type="submit" value="Show Page"></input>
		{{if lt .Paging.PageNum .Paging.NumPages}}
			<a href="{{ .NextURL }}">next &gt;&gt;</a>
		{{else}}
			<span>next &gt;&gt;</span>
		{{end}}
	</form>{{end}}`

	resultTableTemplate = template.New("result_table")
	resultTableTemplate = template.Must(resultTableTemplate.Parse(tableTmpl))
	resultTableTemplate = template.Must(resultTableTemplate.Parse(paginationTmpl))
}

type resultLinks struct {
	GeneSummary, TermsSummary, Hamming string
	Text, Phyletic, Phylip, Nexus      string
}

func renderOrthologyTable(_ context.Context, req *Request) (Content, error) {
	res, err := req.Result()
	if err != nil {
		return Content{}, err
	}
	paging := NewPaging(req.Params, len(res.Rows))

	page := func(n int) string {
		return ResultURL(model.OrthologyResult, req.ResultID, model.WideTemplate, url.Values{
			PageNumParam:  {strconv.Itoa(n)},
			PageSizeParam: {strconv.Itoa(paging.PageSize)},
		})
	}
	wide := func(rt model.ResultType) string { return ResultURL(rt, req.ResultID, model.WideTemplate, nil) }
	down := func(rt model.ResultType) string { return ResultURL(rt, req.ResultID, model.DownloadTemplate, nil) }

	hidden := map[string]string{
		"result_type":   string(model.OrthologyResult),
		"result_id":     req.ResultID,
		"template_type": string(model.WideTemplate),
	}

	data := struct {
		Result         *model.Result
		Rows           []ClusterRow
		Paging         Paging
		DistanceHeader string
		Links          resultLinks
		PrevURL        string
		NextURL        string
		Hidden         map[string]string
	}{
		Result:         res,
		Rows:           arrangeClusters(req.ResultID, res, paging),
		Paging:         paging,
		DistanceHeader: model.DistanceHeader,
		Links: resultLinks{
			GeneSummary:  wide(model.GeneSummaryResult),
			TermsSummary: wide(model.TermsSummaryResult),
			Hamming:      wide(model.HammingDistanceResult),
			Text:         down(model.TextResult),
			Phyletic:     down(model.PhyleticPatternResult),
			Phylip:       down(model.PhylipMatrixResult),
			Nexus:        down(model.NexusMatrixResult),
		},
		PrevURL: page(paging.PageNum - 1),
		NextURL: page(paging.PageNum + 1),
		Hidden:  hidden,
	}

	var buf bytes.Buffer
	if err := resultTableTemplate.Execute(&buf, data); err != nil {
		return Content{}, err
	}
	return Content{Body: buf.String(), HTML: true}, nil
}

func renderHammingProfiles(_ context.Context, req *Request) (Content, error) {
	res, err := req.Result()
	if err != nil {
		return Content{}, err
	}
	counts := UniqueProfiles(res)
	profiles := make([]string, 0, len(counts))
	for p := range counts {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Your search returned %d unique phylogenetic profiles.</p>\n", len(counts))
	for _, p := range profiles {
		fmt.Fprintf(&b, "<p>%s\t%d</p>\n", template.HTMLEscapeString(p), counts[p])
	}
	return Content{Body: b.String(), HTML: true}, nil
}
