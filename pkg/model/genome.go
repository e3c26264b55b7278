package model

import "strings"

// Genome is one genome source as listed on the query forms.
type Genome struct {
	ID   string
	Name string
}

// GenomeDisplayName turns a source id like "Homo_sapiens.aa" into "Homo sapiens".
func GenomeDisplayName(id string) string {
	return strings.ReplaceAll(strings.TrimSuffix(id, ".aa"), "_", " ")
}

func NewGenome(id string) Genome {
	return Genome{ID: id, Name: GenomeDisplayName(id)}
}
