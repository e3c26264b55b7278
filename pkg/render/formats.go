package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yumyai/roundup/pkg/model"
)

func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'g', -1, 64)
}

// FormatText is the plain text download of a cluster result.
func FormatText(r *model.Result) string {
	var b strings.Builder
	b.WriteString("Roundup Orthology Database Search Results\n\n")
	switch len(r.Rows) {
	case 0:
		b.WriteString("No results found for your search.\n")
	case 1:
		b.WriteString("1 result found for your search.\n")
	default:
		fmt.Fprintf(&b, "%d results found for your search.\n", len(r.Rows))
	}
	b.WriteString("\n")

	genomes := r.Genomes()
	for i, row := range r.Rows {
		fmt.Fprintf(&b, "Gene Cluster #%d | Average Evolutionary Distance: %s\n", i+1, formatDistance(row.AvgDistance))
		b.WriteString("Id\tGenome\tGene Name\tGO Terms\n")
		for col, ids := range row.Genes {
			genome := "-"
			if col < len(genomes) {
				genome = model.GenomeDisplayName(genomes[col])
			}
			if len(ids) == 0 {
				fmt.Fprintf(&b, "-\t%s\t-\t-\n", genome)
				continue
			}
			for _, id := range ids {
				name := r.SeqIDToData[id].GeneName
				if name == "" {
					name = "-"
				}
				terms := "-"
				if names := r.TermNames(id); len(names) > 0 {
					terms = strings.Join(names, ", ")
				}
				fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", r.Accession(id), genome, name, terms)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatPhyleticPattern writes one line per cluster: presence flags per
// genome, then accessions, gene names and GO terms.
func FormatPhyleticPattern(r *model.Result) string {
	var b strings.Builder
	headers := append(append([]string(nil), r.Genomes()...), "Cluster_Info=gene, ids; per; genome | gene, names | go, terms")
	b.WriteString(strings.Join(headers, "\t"))
	b.WriteString("\n")

	for _, row := range r.Rows {
		var cols, perGenome []string
		names, terms := newOrderedSet(), newOrderedSet()
		for _, ids := range row.Genes {
			if len(ids) > 0 {
				cols = append(cols, "1")
			} else {
				cols = append(cols, "0")
			}
			accs := make([]string, 0, len(ids))
			for _, id := range ids {
				accs = append(accs, r.Accession(id))
				names.add(r.SeqIDToData[id].GeneName)
				for _, t := range r.TermNames(id) {
					terms.add(t)
				}
			}
			perGenome = append(perGenome, strings.Join(accs, ", "))
		}
		cols = append(cols, strings.Join([]string{
			strings.Join(perGenome, "; "),
			strings.Join(names.items, ", "),
			strings.Join(terms.items, ", "),
		}, " | "))
		b.WriteString(strings.Join(cols, "\t"))
		b.WriteString("\n")
	}
	return b.String()
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

// transposedPattern returns short genome names and, per genome, the 0/1
// presence across clusters.
func transposedPattern(r *model.Result) ([]string, [][]string) {
	genomes := r.Genomes()
	names := make([]string, len(genomes))
	pattern := make([][]string, len(genomes))
	for i, g := range genomes {
		names[i] = model.ShortGenomeName(g)
		pattern[i] = make([]string, 0, len(r.Rows))
	}
	for _, row := range r.Rows {
		for i := range genomes {
			bit := "0"
			if i < len(row.Genes) && len(row.Genes[i]) > 0 {
				bit = "1"
			}
			pattern[i] = append(pattern[i], bit)
		}
	}
	return names, pattern
}

func FormatNexus(r *model.Result) string {
	genomes, pattern := transposedPattern(r)
	var b strings.Builder
	fmt.Fprintf(&b, "#Nexus\nbegin data;\ndimensions\nntax = %d\nnchar = %d;\nformat symbols = \"01\";\nmatrix\n", len(genomes), len(r.Rows))
	for i, g := range genomes {
		b.WriteString(strings.Join(append([]string{g}, pattern[i]...), "\t"))
		b.WriteString("\n")
	}
	b.WriteString(";End;\n")
	return b.String()
}

func FormatPhylip(r *model.Result) string {
	genomes, pattern := transposedPattern(r)
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d\n", len(genomes), len(r.Rows))
	for i, g := range genomes {
		if len(g) > 10 {
			g = g[:10]
		}
		fmt.Fprintf(&b, "%-10s %s\n", g, strings.Join(pattern[i], " "))
	}
	return b.String()
}

// UniqueProfiles counts clusters per distinct presence/absence profile.
func UniqueProfiles(r *model.Result) map[string]int {
	counts := make(map[string]int)
	for _, row := range r.Rows {
		p := row.Profile()
		bits := make([]string, len(p))
		for i, v := range p {
			bits[i] = strconv.Itoa(v)
		}
		counts[strings.Join(bits, " ")]++
	}
	return counts
}
