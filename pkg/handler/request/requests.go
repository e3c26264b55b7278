package request

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yumyai/roundup/pkg/db"
)

// SeqIDLookupRequest finds the sequence id of a FASTA sequence in a genome.
type SeqIDLookupRequest struct {
	Genome string `json:"genome"`
	Fasta  string `json:"fasta"`
}

// ParseSeqIDLookup validates a lookup form against the genome catalog.
func ParseSeqIDLookup(form url.Values, genomes []string) (*SeqIDLookupRequest, error) {
	var errs collector
	req := &SeqIDLookupRequest{
		Genome: first(form, GenomeParam),
		Fasta:  strings.TrimSpace(form.Get(FastaParam)),
	}
	n := NewNormalizer(genomes, 0, nil)
	errs.add(n.validateGenome(form, GenomeParam)...)
	if req.Fasta == "" {
		errs.add(DisplayName(FastaParam) + " is required.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return req, nil
}

// SearchGeneNamesRequest searches gene names by substring.
type SearchGeneNamesRequest struct {
	Substring  string
	SearchType db.SearchType
}

func ParseSearchGeneNames(form url.Values) (*SearchGeneNamesRequest, error) {
	var errs collector
	req := &SearchGeneNamesRequest{Substring: first(form, SubstringParam)}
	if req.Substring == "" {
		errs.add(DisplayName(SubstringParam) + " is required.")
	}
	raw := first(form, SearchTypeParam)
	if raw == "" {
		req.SearchType = db.Contains
	} else if st, ok := db.ParseSearchType(raw); ok {
		req.SearchType = st
	} else {
		errs.add(fmt.Sprintf("The following %s is not a valid choice: %s", DisplayName(SearchTypeParam), raw))
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return req, nil
}
