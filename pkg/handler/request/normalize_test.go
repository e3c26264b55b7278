package request

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/roundup/pkg/model"
)

var testGenomes = []string{"Danio_rerio.aa", "Homo_sapiens.aa", "Mus_musculus.aa", "Rattus_norvegicus.aa"}

type fakeLookup map[string][]string

func (f fakeLookup) SeqIDsForGeneName(_ context.Context, geneName, genome string) ([]string, error) {
	return f[genome+"/"+geneName], nil
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Messages
}

func browseForm(extra url.Values) url.Values {
	form := url.Values{
		GenomeParam:       {"Homo_sapiens.aa"},
		LimitGenomesParam: {"Mus_musculus.aa"},
		DivergenceParam:   {"0.2"},
		EvalueParam:       {"1e-20"},
	}
	for k, v := range extra {
		form[k] = v
	}
	return form
}

func TestNormalizeBrowse(t *testing.T) {
	n := NewNormalizer(testGenomes, 0, nil)
	q, err := n.NormalizeBrowse(context.Background(), browseForm(url.Values{
		LimitGenomesParam + "[]": {"Danio_rerio.aa"},
	}))
	require.NoError(t, err)

	assert.Equal(t, model.KindBrowse, q.Kind)
	assert.Equal(t, "Homo_sapiens.aa", q.Genome)
	assert.Equal(t, []string{"Danio_rerio.aa", "Mus_musculus.aa"}, q.LimitGenomes)
	assert.False(t, q.GeneName, "absent gene_name means no gene names")
	assert.False(t, q.GoTerm, "absent go_term means no GO terms")
	assert.Nil(t, q.DistanceLower)
	assert.Equal(t, 3, q.GenomesTouched())
}

func TestDistanceRange(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper string
		wantErr      string
	}{
		{"lower above upper", "5", "3", "Distance Lower Limit must not be greater than Distance Upper Limit."},
		{"full range", "0", "19", ""},
		{"lower below range", "-1", "", "Distance Lower Limit must be a number in the range 0 to 19."},
		{"upper above range", "", "20", "Distance Upper Limit must be a number in the range 0 to 19."},
		{"not a number", "abc", "", "Distance Lower Limit must be a number."},
		{"equal bounds", "4.5", "4.5", ""},
		{"only lower", "3", "", ""},
		{"nan lower", "NaN", "3", "Distance Lower Limit must be a number in the range 0 to 19."},
		{"nan upper lowercase", "1", "nan", "Distance Upper Limit must be a number in the range 0 to 19."},
		{"infinite upper", "", "+Inf", "Distance Upper Limit must be a number in the range 0 to 19."},
	}
	n := NewNormalizer(testGenomes, 0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := browseForm(nil)
			if tt.lower != "" {
				form.Set(DistanceLowerLimitParam, tt.lower)
			}
			if tt.upper != "" {
				form.Set(DistanceUpperLimitParam, tt.upper)
			}
			q, err := n.NormalizeBrowse(context.Background(), form)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.Nil(t, q)
			assert.Equal(t, []string{tt.wantErr}, validationMessages(t, err))
		})
	}
}

func TestClusterDistanceRejectsNaN(t *testing.T) {
	n := NewNormalizer(testGenomes, 0, nil)
	q, err := n.NormalizeCluster(url.Values{
		GenomesParam:            {"Homo_sapiens.aa", "Mus_musculus.aa"},
		DivergenceParam:         {"0.2"},
		EvalueParam:             {"1e-20"},
		DistanceLowerLimitParam: {"NaN"},
		DistanceUpperLimitParam: {"3"},
	})
	assert.Nil(t, q)
	assert.Equal(t, []string{"Distance Lower Limit must be a number in the range 0 to 19."}, validationMessages(t, err))
}

func TestRangeCheckSkippedWhenBoundInvalid(t *testing.T) {
	_, _, msgs := ValidateDistanceRange(url.Values{
		DistanceLowerLimitParam: {"25"},
		DistanceUpperLimitParam: {"3"},
	})
	assert.Equal(t, []string{"Distance Lower Limit must be a number in the range 0 to 19."}, msgs)
}

func TestNormalizeBrowseGenomeErrors(t *testing.T) {
	n := NewNormalizer(testGenomes, 1, nil)
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "missing primary",
			form: url.Values{GenomeParam: {""}},
			want: "Primary Genome is required.  Please select one.",
		},
		{
			name: "unknown primary",
			form: url.Values{GenomeParam: {"Nope.aa"}},
			want: "The following Primary Genome is not a valid choice: Nope.aa",
		},
		{
			name: "missing secondary",
			form: url.Values{LimitGenomesParam: {}},
			want: "Please select one or more genomes from the Secondary Genomes list.",
		},
		{
			name: "unknown secondary",
			form: url.Values{LimitGenomesParam: {"X.aa", "Y.aa"}},
			want: "The following Secondary Genomes are not valid choices: X.aa, Y.aa",
		},
		{
			name: "too many secondary",
			form: url.Values{LimitGenomesParam: {"Mus_musculus.aa", "Danio_rerio.aa"}},
			want: "Select at most 1 Secondary Genomes.",
		},
		{
			name: "primary also secondary",
			form: url.Values{LimitGenomesParam: {"Homo_sapiens.aa"}},
			want: "Primary Genome must not also be one of the selected Secondary Genomes.",
		},
		{
			name: "bad divergence",
			form: url.Values{DivergenceParam: {"0.9"}},
			want: "The following Divergence is not a valid choice: 0.9",
		},
		{
			name: "missing evalue",
			form: url.Values{EvalueParam: {""}},
			want: "E-value is required.  Please select one.",
		},
		{
			name: "bad email",
			form: url.Values{EmailParam: {"not an email"}},
			want: "The email address received was not well formed.  Enter a valid email address or no email address.",
		},
		{
			name: "bad identifier type",
			form: url.Values{BrowseIDParam: {"NP_1"}, BrowseIDTypeParam: {"accession"}},
			want: "The following Identifier Type is not a valid choice: accession",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.NormalizeBrowse(context.Background(), browseForm(tt.form))
			assert.Equal(t, []string{tt.want}, validationMessages(t, err))
		})
	}
}

func TestNormalizeBrowseSeqIDs(t *testing.T) {
	n := NewNormalizer(testGenomes, 0, nil)
	q, err := n.NormalizeBrowse(context.Background(), browseForm(url.Values{
		BrowseIDParam:     {"NP_2  NP_1\nNP_2"},
		BrowseIDTypeParam: {string(model.SeqIDType)},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"NP_1", "NP_2"}, q.SeqIDs)
}

func TestNormalizeBrowseGeneName(t *testing.T) {
	lookup := fakeLookup{"Homo_sapiens.aa/TP53": {"NP_000537", "NP_001119584"}}
	n := NewNormalizer(testGenomes, 0, lookup)

	q, err := n.NormalizeBrowse(context.Background(), browseForm(url.Values{
		BrowseIDParam:     {"TP53"},
		BrowseIDTypeParam: {string(model.GeneNameType)},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"NP_000537", "NP_001119584"}, q.SeqIDs)

	_, err = n.NormalizeBrowse(context.Background(), browseForm(url.Values{
		BrowseIDParam:     {"BRCA9"},
		BrowseIDTypeParam: {string(model.GeneNameType)},
	}))
	var notFound *GeneNameNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Roundup failed to find the gene name 'BRCA9' in the genome 'Homo_sapiens.aa'. Please search through the available names.", notFound.Message())
}

func TestResultFlags(t *testing.T) {
	n := NewNormalizer(testGenomes, 0, nil)
	tests := []struct {
		name             string
		extra            url.Values
		geneName, goTerm bool
	}{
		{"absent", nil, false, false},
		{"yes", url.Values{GeneNameParam: {"true"}, GoTermParam: {"true"}}, true, true},
		{"no", url.Values{GeneNameParam: {"false"}, GoTermParam: {"false"}}, false, false},
		{"checkbox", url.Values{GeneNameParam: {"on"}}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := n.NormalizeBrowse(context.Background(), browseForm(tt.extra))
			require.NoError(t, err)
			assert.Equal(t, tt.geneName, q.GeneName)
			assert.Equal(t, tt.goTerm, q.GoTerm)
		})
	}

	absent, err := n.NormalizeBrowse(context.Background(), browseForm(nil))
	require.NoError(t, err)
	explicit, err := n.NormalizeBrowse(context.Background(), browseForm(url.Values{GeneNameParam: {"false"}, GoTermParam: {"false"}}))
	require.NoError(t, err)
	assert.Equal(t, explicit.CanonicalKey(), absent.CanonicalKey())
}

func TestNormalizeCluster(t *testing.T) {
	n := NewNormalizer(testGenomes, 3, nil)
	form := url.Values{
		GenomesParam:            {"Mus_musculus.aa", "Homo_sapiens.aa", "Mus_musculus.aa"},
		DivergenceParam:         {"0.5"},
		EvalueParam:             {"1e-5"},
		TCOnlyParam:             {"on"},
		GoTermParam:             {""},
		GeneNameParam:           {"true"},
		DistanceUpperLimitParam: {"2"},
	}
	q, err := n.NormalizeCluster(form)
	require.NoError(t, err)
	assert.Equal(t, []string{"Homo_sapiens.aa", "Mus_musculus.aa"}, q.Genomes)
	assert.True(t, q.TCOnly)
	assert.False(t, q.GoTerm)
	assert.True(t, q.GeneName)
	require.NotNil(t, q.DistanceUpper)
	assert.Equal(t, 2.0, *q.DistanceUpper)

	cases := map[string]url.Values{
		"Genomes is a required field.  Select two or more.":       {},
		"Select at least 2 Genomes.":                              {GenomesParam: {"Homo_sapiens.aa", "Homo_sapiens.aa"}},
		"The following Genomes are not valid choices: A.aa, B.aa": {GenomesParam: {"A.aa", "Homo_sapiens.aa", "B.aa"}},
		"Select at most 3 Genomes.":                               {GenomesParam: testGenomes},
	}
	for want, genomes := range cases {
		form := url.Values{DivergenceParam: {"0.2"}, EvalueParam: {"1e-20"}}
		for k, v := range genomes {
			form[k] = v
		}
		_, err := n.NormalizeCluster(form)
		assert.Equal(t, []string{want}, validationMessages(t, err))
	}
}

func TestNormalizeRaw(t *testing.T) {
	n := NewNormalizer(append(testGenomes, "A"), 0, nil)
	form := url.Values{
		QueryGenomeParam:   {"Mus_musculus.aa"},
		SubjectGenomeParam: {"Homo_sapiens.aa"},
		DivergenceParam:    {"0.8"},
		EvalueParam:        {"1e-10"},
	}
	q, err := n.NormalizeRaw(form)
	require.NoError(t, err)
	assert.Equal(t, 2, q.GenomesTouched())
	assert.Equal(t, []model.Pair{{"Homo_sapiens.aa", "Mus_musculus.aa"}}, q.Pairs())

	_, err = n.NormalizeRaw(url.Values{
		QueryGenomeParam:   {"A"},
		SubjectGenomeParam: {"A"},
		DivergenceParam:    {"0.2"},
		EvalueParam:        {"1e-20"},
	})
	msgs := validationMessages(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "must be different")

	_, err = n.NormalizeRaw(url.Values{DivergenceParam: {"0.2"}, EvalueParam: {"1e-20"}})
	assert.Equal(t, []string{"First Genome is required.", "Second Genome is required."}, validationMessages(t, err))
}

func TestNormalizeDispatch(t *testing.T) {
	n := NewNormalizer(testGenomes, 0, nil)
	q, err := n.Normalize(context.Background(), browseForm(nil), model.KindBrowse)
	require.NoError(t, err)
	assert.Equal(t, model.KindBrowse, q.Kind)

	_, err = n.Normalize(context.Background(), url.Values{}, model.QueryKind("blast"))
	validationMessages(t, err)
}

func TestSameQueryDifferentFormOrderSameKey(t *testing.T) {
	n := NewNormalizer(testGenomes, 0, nil)
	a, err := n.NormalizeCluster(url.Values{
		GenomesParam: {"Mus_musculus.aa", "Homo_sapiens.aa"}, DivergenceParam: {"0.2"}, EvalueParam: {"1e-20"},
	})
	require.NoError(t, err)
	b, err := n.NormalizeCluster(url.Values{
		GenomesParam + "[]": {"Homo_sapiens.aa", "Mus_musculus.aa"}, DivergenceParam: {"0.2"}, EvalueParam: {"1e-20"},
	})
	require.NoError(t, err)
	assert.Equal(t, a.CanonicalKey(), b.CanonicalKey())
}

func TestSkipCache(t *testing.T) {
	assert.False(t, SkipCache(url.Values{}))
	assert.True(t, SkipCache(url.Values{GetFromCacheParam: {"false"}}))
	assert.False(t, SkipCache(url.Values{GetFromCacheParam: {"true"}}))
}

func TestParseSearchGeneNames(t *testing.T) {
	req, err := ParseSearchGeneNames(url.Values{SubstringParam: {"TP53"}})
	require.NoError(t, err)
	assert.Equal(t, "contains", string(req.SearchType))

	_, err = ParseSearchGeneNames(url.Values{SearchTypeParam: {"fuzzy"}})
	assert.Len(t, validationMessages(t, err), 2)
}

func TestParseSeqIDLookup(t *testing.T) {
	req, err := ParseSeqIDLookup(url.Values{GenomeParam: {"Homo_sapiens.aa"}, FastaParam: {">q\nMKV\n"}}, testGenomes)
	require.NoError(t, err)
	assert.Equal(t, ">q\nMKV", req.Fasta)

	_, err = ParseSeqIDLookup(url.Values{}, testGenomes)
	assert.Equal(t, []string{"Primary Genome is required.  Please select one.", "FASTA Sequence is required."}, validationMessages(t, err))
}
