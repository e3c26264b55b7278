package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultType selects the renderer used on the result page.
type ResultType string

const (
	OrthologyResult       ResultType = "roundup_orthology_result"
	TextResult            ResultType = "roundup_text_result"
	RawResult             ResultType = "roundup_raw_result"
	PhyleticPatternResult ResultType = "roundup_phyletic_pattern_result"
	NexusMatrixResult     ResultType = "roundup_nexus_matrix_result"
	PhylipMatrixResult    ResultType = "roundup_phylip_matrix_result"
	HammingDistanceResult ResultType = "roundup_hamming_distance_result"
	TermsSummaryResult    ResultType = "roundup_terms_summary_result"
	TermResult            ResultType = "roundup_term_result"
	GeneResult            ResultType = "roundup_gene_result"
	GeneSummaryResult     ResultType = "roundup_gene_summary_result"
	TestResult            ResultType = "roundup_test_result"
)

var ResultTypes = []ResultType{
	OrthologyResult, TextResult, RawResult, PhyleticPatternResult,
	NexusMatrixResult, PhylipMatrixResult, HammingDistanceResult,
	TermsSummaryResult, TermResult, GeneResult, GeneSummaryResult, TestResult,
}

func ParseResultType(s string) (ResultType, bool) {
	for _, rt := range ResultTypes {
		if string(rt) == s {
			return rt, true
		}
	}
	return "", false
}

// TemplateType selects the page wrapper around a rendered result.
type TemplateType string

const (
	WideTemplate     TemplateType = "wide"
	DownloadTemplate TemplateType = "down"
	XMLTemplate      TemplateType = "xml"
)

func ParseTemplateType(s string) TemplateType {
	switch TemplateType(s) {
	case DownloadTemplate:
		return DownloadTemplate
	case XMLTemplate:
		return XMLTemplate
	}
	return WideTemplate
}

const DistanceHeader = "Average Distance"

// SeqData is the per-sequence annotation carried in a result.
type SeqData struct {
	Accession string   `json:"a"`
	GeneName  string   `json:"n,omitempty"`
	Terms     []string `json:"t,omitempty"`
}

// Cluster is one row of an orthology result: sequence ids per genome column
// plus the average evolutionary distance. On the wire it is a flat array
// whose last element is the distance.
type Cluster struct {
	Genes       [][]string
	AvgDistance float64
}

func (c Cluster) MarshalJSON() ([]byte, error) {
	row := make([]any, 0, len(c.Genes)+1)
	for _, g := range c.Genes {
		if g == nil {
			g = []string{}
		}
		row = append(row, g)
	}
	row = append(row, c.AvgDistance)
	return json.Marshal(row)
}

func (c *Cluster) UnmarshalJSON(data []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) == 0 {
		return fmt.Errorf("cluster row is empty")
	}
	c.Genes = make([][]string, len(row)-1)
	for i, cell := range row[:len(row)-1] {
		if err := json.Unmarshal(cell, &c.Genes[i]); err != nil {
			return fmt.Errorf("cluster column %d: %w", i, err)
		}
	}
	if err := json.Unmarshal(row[len(row)-1], &c.AvgDistance); err != nil {
		return fmt.Errorf("cluster distance: %w", err)
	}
	return nil
}

// Profile is the presence/absence pattern of the cluster across genomes.
func (c Cluster) Profile() []int {
	p := make([]int, len(c.Genes))
	for i, g := range c.Genes {
		if len(g) > 0 {
			p[i] = 1
		}
	}
	return p
}

// Result is the document an orthology job writes to its result path.
type Result struct {
	Type         string             `json:"type"`
	Headers      []string           `json:"headers"`
	Rows         []Cluster          `json:"rows"`
	SeqIDToData  map[string]SeqData `json:"seq_id_to_data_map"`
	TermMap      map[string]string  `json:"term_map"`
	HasGeneNames bool               `json:"has_gene_names"`
	HasGoTerms   bool               `json:"has_go_terms"`
	QueryDesc    string             `json:"query_desc"`
	Divergence   Divergence         `json:"divergence,omitempty"`
	Evalue       Evalue             `json:"evalue,omitempty"`

	// Text holds plain-text payloads such as raw pairwise results.
	Text string `json:"text,omitempty"`
}

func ParseResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid result document: %w", err)
	}
	return &r, nil
}

// Genomes returns the genome columns, i.e. headers without the distance column.
func (r *Result) Genomes() []string {
	if len(r.Headers) == 0 {
		return nil
	}
	if r.Headers[len(r.Headers)-1] == DistanceHeader {
		return r.Headers[:len(r.Headers)-1]
	}
	return r.Headers
}

// TermNames resolves a sequence's GO term ids through the term map.
func (r *Result) TermNames(seqID string) []string {
	data := r.SeqIDToData[seqID]
	names := make([]string, 0, len(data.Terms))
	for _, t := range data.Terms {
		if name, ok := r.TermMap[t]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (r *Result) Accession(seqID string) string {
	if data, ok := r.SeqIDToData[seqID]; ok && data.Accession != "" {
		return data.Accession
	}
	return seqID
}

// ShortGenomeName is the genome id without its ".aa" suffix.
func ShortGenomeName(g string) string {
	return strings.TrimSuffix(strings.TrimSpace(g), ".aa")
}
