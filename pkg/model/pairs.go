package model

import (
	"fmt"
	"sort"
)

// Pair is a sorted pair of genomes.
type Pair [2]string

func MakePair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{a, b}
}

// Params identifies one precomputed pairwise result.
type Params struct {
	QueryDB    string
	SubjectDB  string
	Divergence Divergence
	Evalue     Evalue
}

func (p Params) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)", p.QueryDB, p.SubjectDB, p.Divergence, p.Evalue)
}

// Pairs lists the genome pairs whose precomputed results the query reads.
func (q *OrthQuery) Pairs() []Pair {
	if q.Kind == KindRaw {
		return []Pair{MakePair(q.QueryGenome, q.SubjectGenome)}
	}
	return PairsForGenomes(q.Genome, q.LimitGenomes, q.Genomes)
}

func (q *OrthQuery) Params() []Params {
	pairs := q.Pairs()
	params := make([]Params, 0, len(pairs))
	for _, p := range pairs {
		params = append(params, Params{
			QueryDB:    p[0],
			SubjectDB:  p[1],
			Divergence: q.Divergence,
			Evalue:     q.Evalue,
		})
	}
	return params
}

// PairsForGenomes takes every 2-combination of the genomes mentioned, then
// keeps pairs containing genome (if set), touching limitGenomes (if set), and
// entirely inside genomes (if set).
func PairsForGenomes(genome string, limitGenomes, genomes []string) []Pair {
	all := make([]string, 0, 1+len(limitGenomes)+len(genomes))
	if genome != "" {
		all = append(all, genome)
	}
	all = append(all, genomes...)
	all = append(all, limitGenomes...)
	all = sortedSet(all)

	limit := toSet(limitGenomes)
	within := toSet(genomes)

	var pairs []Pair
	for _, p := range Choose2(all) {
		if genome != "" && p[0] != genome && p[1] != genome {
			continue
		}
		if len(limit) > 0 && !limit[p[0]] && !limit[p[1]] {
			continue
		}
		if len(within) > 0 && !(within[p[0]] && within[p[1]]) {
			continue
		}
		pairs = append(pairs, p)
	}
	return NormalizePairs(pairs)
}

// Choose2 returns all unordered pairs of distinct items, each sorted.
func Choose2(items []string) []Pair {
	var pairs []Pair
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			pairs = append(pairs, MakePair(items[i], items[j]))
		}
	}
	return pairs
}

// NormalizePairs sorts each pair, drops duplicates, and sorts the list.
func NormalizePairs(pairs []Pair) []Pair {
	seen := make(map[Pair]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		p = MakePair(p[0], p[1])
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func toSet(xs []string) map[string]bool {
	set := make(map[string]bool, len(xs))
	for _, x := range xs {
		set[x] = true
	}
	return set
}
