package request

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/yumyai/roundup/pkg/model"
)

// ValidationError carries every problem found in a submitted form.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Messages, " ")
}

// GeneNameNotFoundError means a gene-name browse resolved to no sequences.
// The caller should send the user to the gene name search instead.
type GeneNameNotFoundError struct {
	GeneName string
	Genome   string
}

func (e *GeneNameNotFoundError) Error() string {
	return e.Message()
}

func (e *GeneNameNotFoundError) Message() string {
	return fmt.Sprintf("Roundup failed to find the gene name '%s' in the genome '%s'. Please search through the available names.", e.GeneName, e.Genome)
}

// GeneNameLookup resolves gene names to sequence ids within a genome.
type GeneNameLookup interface {
	SeqIDsForGeneName(ctx context.Context, geneName, genome string) ([]string, error)
}

// Normalizer turns raw forms into canonical queries. Genomes is the current
// catalog; MaxGenomes caps genome lists.
type Normalizer struct {
	Genomes    []string
	MaxGenomes int
	GeneNames  GeneNameLookup

	known map[string]bool
}

func NewNormalizer(genomes []string, maxGenomes int, lookup GeneNameLookup) *Normalizer {
	known := make(map[string]bool, len(genomes))
	for _, g := range genomes {
		known[g] = true
	}
	return &Normalizer{Genomes: genomes, MaxGenomes: maxGenomes, GeneNames: lookup, known: known}
}

// Normalize dispatches on the query kind.
func (n *Normalizer) Normalize(ctx context.Context, form url.Values, kind model.QueryKind) (*model.OrthQuery, error) {
	switch kind {
	case model.KindBrowse:
		return n.NormalizeBrowse(ctx, form)
	case model.KindCluster:
		return n.NormalizeCluster(form)
	case model.KindRaw:
		return n.NormalizeRaw(form)
	}
	return nil, &ValidationError{Messages: []string{fmt.Sprintf("Unknown query kind %q.", kind)}}
}

type collector struct {
	messages []string
}

func (c *collector) add(msgs ...string) {
	c.messages = append(c.messages, msgs...)
}

func (c *collector) err() error {
	if len(c.messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: c.messages}
}

func (n *Normalizer) NormalizeBrowse(ctx context.Context, form url.Values) (*model.OrthQuery, error) {
	var errs collector
	q := model.DefaultOrthQuery(model.KindBrowse)

	genomeErrs := n.validateGenome(form, GenomeParam)
	genomeErrs = append(genomeErrs, n.validateLimitGenomes(form)...)
	if len(genomeErrs) == 0 {
		genome := first(form, GenomeParam)
		for _, g := range multi(form, LimitGenomesParam) {
			if g == genome {
				genomeErrs = append(genomeErrs, "Primary Genome must not also be one of the selected Secondary Genomes.")
				break
			}
		}
	}
	errs.add(genomeErrs...)
	q.Genome = first(form, GenomeParam)
	q.LimitGenomes = multi(form, LimitGenomesParam)

	q.BrowseID = first(form, BrowseIDParam)
	if q.BrowseID != "" {
		idType, msgs := validateChoice(form, BrowseIDTypeParam, model.ParseBrowseIDType)
		errs.add(msgs...)
		q.BrowseIDType = idType
	}

	n.commonFields(form, &q, &errs)
	errs.add(validateEmail(form)...)

	if err := errs.err(); err != nil {
		return nil, err
	}

	switch q.BrowseIDType {
	case model.SeqIDType:
		q.SeqIDs = strings.Fields(q.BrowseID)
	case model.GeneNameType:
		if n.GeneNames == nil {
			return nil, fmt.Errorf("gene name lookup is not configured")
		}
		ids, err := n.GeneNames.SeqIDsForGeneName(ctx, q.BrowseID, q.Genome)
		if err != nil {
			return nil, fmt.Errorf("look up gene name %q: %w", q.BrowseID, err)
		}
		if len(ids) == 0 {
			return nil, &GeneNameNotFoundError{GeneName: q.BrowseID, Genome: q.Genome}
		}
		q.SeqIDs = ids
	}

	return model.NewOrthQuery(q), nil
}

func (n *Normalizer) NormalizeCluster(form url.Values) (*model.OrthQuery, error) {
	var errs collector
	q := model.DefaultOrthQuery(model.KindCluster)

	genomes := multi(form, GenomesParam)
	switch {
	case len(genomes) == 0:
		errs.add("Genomes is a required field.  Select two or more.")
	case len(n.unknown(genomes)) > 0:
		errs.add("The following Genomes are not valid choices: " + strings.Join(n.unknown(genomes), ", "))
	case len(distinct(genomes)) < 2:
		errs.add("Select at least 2 Genomes.")
	case n.MaxGenomes > 0 && len(distinct(genomes)) > n.MaxGenomes:
		errs.add(fmt.Sprintf("Select at most %d Genomes.", n.MaxGenomes))
	}
	q.Genomes = genomes
	q.TCOnly = flag(form, TCOnlyParam, false)

	n.commonFields(form, &q, &errs)
	errs.add(validateEmail(form)...)

	if err := errs.err(); err != nil {
		return nil, err
	}
	return model.NewOrthQuery(q), nil
}

func (n *Normalizer) NormalizeRaw(form url.Values) (*model.OrthQuery, error) {
	var errs collector
	q := model.DefaultOrthQuery(model.KindRaw)

	q.QueryGenome = first(form, QueryGenomeParam)
	q.SubjectGenome = first(form, SubjectGenomeParam)

	genomeErrs := n.validateGenome(form, QueryGenomeParam)
	genomeErrs = append(genomeErrs, n.validateGenome(form, SubjectGenomeParam)...)
	if len(genomeErrs) == 0 && q.QueryGenome == q.SubjectGenome {
		genomeErrs = append(genomeErrs, "First Genome and Second Genome must be different.")
	}
	errs.add(genomeErrs...)

	div, msgs := validateChoice(form, DivergenceParam, model.ParseDivergence)
	errs.add(msgs...)
	ev, msgs := validateChoice(form, EvalueParam, model.ParseEvalue)
	errs.add(msgs...)
	q.Divergence, q.Evalue = div, ev

	if err := errs.err(); err != nil {
		return nil, err
	}
	return model.NewOrthQuery(q), nil
}

// commonFields handles divergence, evalue, distance range and result flags.
func (n *Normalizer) commonFields(form url.Values, q *model.OrthQuery, errs *collector) {
	div, msgs := validateChoice(form, DivergenceParam, model.ParseDivergence)
	errs.add(msgs...)
	ev, msgs := validateChoice(form, EvalueParam, model.ParseEvalue)
	errs.add(msgs...)
	q.Divergence, q.Evalue = div, ev

	lower, upper, msgs := ValidateDistanceRange(form)
	errs.add(msgs...)
	q.DistanceLower, q.DistanceUpper = lower, upper

	q.GeneName = flag(form, GeneNameParam, q.GeneName)
	q.GoTerm = flag(form, GoTermParam, q.GoTerm)
}

func (n *Normalizer) validateGenome(form url.Values, param string) []string {
	value := first(form, param)
	name := DisplayName(param)
	if value == "" {
		if param == GenomeParam {
			return []string{name + " is required.  Please select one."}
		}
		return []string{name + " is required."}
	}
	if !n.known[value] {
		return []string{fmt.Sprintf("The following %s is not a valid choice: %s", name, value)}
	}
	return nil
}

func (n *Normalizer) validateLimitGenomes(form url.Values) []string {
	genomes := multi(form, LimitGenomesParam)
	switch {
	case len(genomes) == 0:
		return []string{"Please select one or more genomes from the Secondary Genomes list."}
	case len(n.unknown(genomes)) > 0:
		return []string{"The following Secondary Genomes are not valid choices: " + strings.Join(n.unknown(genomes), ", ")}
	case n.MaxGenomes > 0 && len(distinct(genomes)) > n.MaxGenomes:
		return []string{fmt.Sprintf("Select at most %d Secondary Genomes.", n.MaxGenomes)}
	}
	return nil
}

func (n *Normalizer) unknown(genomes []string) []string {
	var out []string
	for _, g := range genomes {
		if !n.known[g] {
			out = append(out, g)
		}
	}
	return out
}

func validateChoice[T ~string](form url.Values, param string, parse func(string) (T, bool)) (T, []string) {
	value := first(form, param)
	name := DisplayName(param)
	if value == "" {
		return "", []string{name + " is required.  Please select one."}
	}
	v, ok := parse(value)
	if !ok {
		return "", []string{fmt.Sprintf("The following %s is not a valid choice: %s", name, value)}
	}
	return v, nil
}

// ValidateDistanceRange checks both optional bounds and, only when both are
// individually valid, that lower does not exceed upper.
func ValidateDistanceRange(form url.Values) (lower, upper *float64, msgs []string) {
	lower, lowerMsgs := validateDistance(form, DistanceLowerLimitParam)
	upper, upperMsgs := validateDistance(form, DistanceUpperLimitParam)
	msgs = append(lowerMsgs, upperMsgs...)
	if len(msgs) == 0 && lower != nil && upper != nil && *lower > *upper {
		msgs = append(msgs, "Distance Lower Limit must not be greater than Distance Upper Limit.")
	}
	if len(msgs) > 0 {
		return nil, nil, msgs
	}
	return lower, upper, nil
}

func validateDistance(form url.Values, param string) (*float64, []string) {
	value := first(form, param)
	if value == "" {
		return nil, nil
	}
	name := DisplayName(param)
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, []string{name + " must be a number."}
	}
	if math.IsNaN(f) || f < model.MinDistance || f > model.MaxDistance {
		return nil, []string{fmt.Sprintf("%s must be a number in the range %g to %g.", name, model.MinDistance, model.MaxDistance)}
	}
	return &f, nil
}

func validateEmail(form url.Values) []string {
	email := first(form, EmailParam)
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return []string{"The email address received was not well formed.  Enter a valid email address or no email address."}
	}
	return nil
}

func distinct(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	var out []string
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
