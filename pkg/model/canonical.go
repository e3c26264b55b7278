package model

import (
	"strconv"
	"strings"
)

// canonicalVersion is bumped whenever the serialized layout changes so old
// cache keys stop matching.
const canonicalVersion = "orthquery/v1"

// CanonicalKey serializes the query deterministically. Fields are written in a
// fixed order, every value carries a type tag and a length, set-valued fields
// are sorted, and absent optionals are written as "n".
func (q *OrthQuery) CanonicalKey() string {
	var w canonicalWriter
	w.b.WriteString(canonicalVersion)
	w.str("kind", string(q.Kind))
	w.str("genome", q.Genome)
	w.list("limit_genomes", sortedSet(q.LimitGenomes))
	w.str("browse_id_type", string(q.BrowseIDType))
	w.str("browse_id", q.BrowseID)
	w.list("seq_ids", sortedSet(q.SeqIDs))
	w.list("genomes", sortedSet(q.Genomes))
	w.flag("tc_only", q.TCOnly)
	w.str("query_genome", q.QueryGenome)
	w.str("subject_genome", q.SubjectGenome)
	w.str("divergence", string(q.Divergence))
	w.str("evalue", string(q.Evalue))
	w.float("distance_lower_limit", q.DistanceLower)
	w.float("distance_upper_limit", q.DistanceUpper)
	w.flag("gene_name", q.GeneName)
	w.flag("go_term", q.GoTerm)
	return w.b.String()
}

type canonicalWriter struct {
	b strings.Builder
}

func (w *canonicalWriter) field(name string) {
	w.b.WriteByte(';')
	w.b.WriteString(name)
	w.b.WriteByte('=')
}

func (w *canonicalWriter) rawStr(v string) {
	w.b.WriteByte('s')
	w.b.WriteString(strconv.Itoa(len(v)))
	w.b.WriteByte(':')
	w.b.WriteString(v)
}

func (w *canonicalWriter) str(name, v string) {
	w.field(name)
	w.rawStr(v)
}

func (w *canonicalWriter) list(name string, vs []string) {
	w.field(name)
	w.b.WriteByte('l')
	w.b.WriteString(strconv.Itoa(len(vs)))
	w.b.WriteByte('[')
	for _, v := range vs {
		w.rawStr(v)
	}
	w.b.WriteByte(']')
}

func (w *canonicalWriter) flag(name string, v bool) {
	w.field(name)
	if v {
		w.b.WriteString("b:1")
	} else {
		w.b.WriteString("b:0")
	}
}

func (w *canonicalWriter) float(name string, v *float64) {
	w.field(name)
	if v == nil {
		w.b.WriteByte('n')
		return
	}
	w.b.WriteString("f:")
	w.b.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
}
