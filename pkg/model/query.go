package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type QueryKind string

const (
	KindBrowse  QueryKind = "browse"
	KindCluster QueryKind = "cluster"
	KindRaw     QueryKind = "raw"
)

type Divergence string

const (
	Divergence02 Divergence = "0.2"
	Divergence05 Divergence = "0.5"
	Divergence08 Divergence = "0.8"
)

var Divergences = []Divergence{Divergence02, Divergence05, Divergence08}

type Evalue string

const (
	Evalue1e20 Evalue = "1e-20"
	Evalue1e15 Evalue = "1e-15"
	Evalue1e10 Evalue = "1e-10"
	Evalue1e5  Evalue = "1e-5"
)

var Evalues = []Evalue{Evalue1e20, Evalue1e15, Evalue1e10, Evalue1e5}

func ParseDivergence(s string) (Divergence, bool) {
	for _, d := range Divergences {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

func ParseEvalue(s string) (Evalue, bool) {
	for _, e := range Evalues {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

type BrowseIDType string

const (
	GeneNameType BrowseIDType = "gene_name_type"
	SeqIDType    BrowseIDType = "seq_id_type"
)

func ParseBrowseIDType(s string) (BrowseIDType, bool) {
	switch BrowseIDType(s) {
	case GeneNameType, SeqIDType:
		return BrowseIDType(s), true
	}
	return "", false
}

// Distance limits accepted for ortholog filtering.
const (
	MinDistance = 0.0
	MaxDistance = 19.0
)

// OrthQuery is a validated, canonical orthology query. Build it with
// NewOrthQuery and treat it as read-only afterwards.
type OrthQuery struct {
	Kind QueryKind

	// browse
	Genome       string
	LimitGenomes []string
	BrowseIDType BrowseIDType
	BrowseID     string
	SeqIDs       []string

	// cluster
	Genomes []string
	TCOnly  bool

	// raw
	QueryGenome   string
	SubjectGenome string

	Divergence    Divergence
	Evalue        Evalue
	DistanceLower *float64
	DistanceUpper *float64

	GeneName bool
	GoTerm   bool
}

// DefaultOrthQuery carries the defaults every query kind starts from. Result
// annotations are opt-in: an absent gene_name or go_term means false.
func DefaultOrthQuery(kind QueryKind) OrthQuery {
	return OrthQuery{
		Kind:       kind,
		Divergence: Divergence02,
		Evalue:     Evalue1e20,
	}
}

// NewOrthQuery copies q, sorting and de-duplicating every set-valued field.
func NewOrthQuery(q OrthQuery) *OrthQuery {
	out := q
	out.LimitGenomes = sortedSet(q.LimitGenomes)
	out.Genomes = sortedSet(q.Genomes)
	out.SeqIDs = sortedSet(q.SeqIDs)
	if q.DistanceLower != nil {
		v := *q.DistanceLower
		out.DistanceLower = &v
	}
	if q.DistanceUpper != nil {
		v := *q.DistanceUpper
		out.DistanceUpper = &v
	}
	return &out
}

// GenomesTouched is the count the sync/async decision is made on.
func (q *OrthQuery) GenomesTouched() int {
	switch q.Kind {
	case KindRaw:
		return 2
	case KindCluster:
		return len(q.Genomes)
	default:
		n := len(q.LimitGenomes)
		if q.Genome != "" {
			n++
		}
		return n
	}
}

func (q *OrthQuery) Description() string {
	var b strings.Builder
	switch q.Kind {
	case KindBrowse:
		b.WriteString("Browse Query:\n")
		fmt.Fprintf(&b, "\tPrimary Genome=%s: %s\n", q.Genome, GenomeDisplayName(q.Genome))
		if q.BrowseIDType != "" {
			fmt.Fprintf(&b, "\tIdentifier Type=%s\n", q.BrowseIDType.Label())
			fmt.Fprintf(&b, "\tIdentifier=%s\n", q.BrowseID)
		}
		fmt.Fprintf(&b, "\tSecondary Genomes=%s\n", genomeLines(q.LimitGenomes))
	case KindCluster:
		b.WriteString("Retrieve Query:\n")
		fmt.Fprintf(&b, "\tGenomes=%s\n", genomeLines(q.Genomes))
	case KindRaw:
		b.WriteString("Raw Results Query:\n")
		fmt.Fprintf(&b, "\tFirst Genome=%s: %s\n", q.QueryGenome, GenomeDisplayName(q.QueryGenome))
		fmt.Fprintf(&b, "\tSecond Genome=%s: %s\n", q.SubjectGenome, GenomeDisplayName(q.SubjectGenome))
	}
	fmt.Fprintf(&b, "\tDivergence=%s\n", q.Divergence)
	fmt.Fprintf(&b, "\tE-value=%s\n", q.Evalue)
	if q.Kind != KindRaw {
		fmt.Fprintf(&b, "\tDistance Lower Limit=%s\n", formatOptional(q.DistanceLower))
		fmt.Fprintf(&b, "\tDistance Upper Limit=%s\n", formatOptional(q.DistanceUpper))
	}
	if q.Kind == KindCluster {
		fmt.Fprintf(&b, "\tTransitively Closed Only=%t\n", q.TCOnly)
	}
	return b.String()
}

func (t BrowseIDType) Label() string {
	switch t {
	case GeneNameType:
		return "Gene Name"
	case SeqIDType:
		return "Sequence Id"
	}
	return string(t)
}

func genomeLines(genomes []string) string {
	lines := make([]string, 0, len(genomes))
	for _, g := range genomes {
		lines = append(lines, fmt.Sprintf("%s: %s", g, GenomeDisplayName(g)))
	}
	return strings.Join(lines, "\n\t\t")
}

func formatOptional(v *float64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func sortedSet(xs []string) []string {
	if len(xs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	sort.Strings(out)
	return out
}
