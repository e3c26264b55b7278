package request

import (
	"net/url"
	"strings"
)

// Form parameter names shared by the query forms and the result URLs.
const (
	GenomeParam             = "genome"
	LimitGenomesParam       = "limit_genomes"
	GenomesParam            = "genomes"
	QueryGenomeParam        = "query_genome"
	SubjectGenomeParam      = "subject_genome"
	DivergenceParam         = "divergence"
	EvalueParam             = "evalue"
	DistanceLowerLimitParam = "distance_lower_limit"
	DistanceUpperLimitParam = "distance_upper_limit"
	BrowseIDParam           = "browse_id"
	BrowseIDTypeParam       = "browse_id_type"
	GeneNameParam           = "gene_name"
	GoTermParam             = "go_term"
	TCOnlyParam             = "tc_only"
	EmailParam              = "email"
	SearchTypeParam         = "search_type"
	SubstringParam          = "substring"
	FastaParam              = "fasta"
	GetFromCacheParam       = "get_from_cache"
)

// DisplayName is the label a parameter has on the forms and in messages.
func DisplayName(param string) string {
	switch param {
	case FastaParam:
		return "FASTA Sequence"
	case GenomeParam:
		return "Primary Genome"
	case LimitGenomesParam:
		return "Secondary Genomes"
	case GenomesParam:
		return "Genomes"
	case QueryGenomeParam:
		return "First Genome"
	case SubjectGenomeParam:
		return "Second Genome"
	case DivergenceParam:
		return "Divergence"
	case EvalueParam:
		return "E-value"
	case DistanceLowerLimitParam:
		return "Distance Lower Limit"
	case DistanceUpperLimitParam:
		return "Distance Upper Limit"
	case GeneNameParam:
		return "Include Gene Names in Result"
	case GoTermParam:
		return "Include GO Terms in Result"
	case TCOnlyParam:
		return "Only Show Transitively Closed Gene Clusters"
	case BrowseIDParam:
		return "Identifier"
	case BrowseIDTypeParam:
		return "Identifier Type"
	case SearchTypeParam:
		return "Search Type"
	case SubstringParam:
		return "Text Substring"
	}
	return param
}

// first returns the trimmed first value of param, or "".
func first(form url.Values, param string) string {
	return strings.TrimSpace(form.Get(param))
}

// multi merges "param" and "param[]" values, dropping blanks.
func multi(form url.Values, param string) []string {
	var out []string
	for _, key := range []string{param, param + "[]"} {
		for _, v := range form[key] {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// flag reads a checkbox-style boolean. Absent means def.
func flag(form url.Values, param string, def bool) bool {
	if _, ok := form[param]; !ok {
		return def
	}
	switch strings.ToLower(first(form, param)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

// SkipCache reports whether the caller opted out of the result cache.
func SkipCache(form url.Values) bool {
	_, present := form[GetFromCacheParam]
	return present && !flag(form, GetFromCacheParam, true)
}
