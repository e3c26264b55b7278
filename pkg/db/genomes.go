package db

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yumyai/roundup/pkg/metrics"
)

const genomesKey = "genomes"

// GenomeLoader is the source of truth for the genome list.
type GenomeLoader func(ctx context.Context) ([]string, error)

// GenomeCatalog is the read-only, process-wide genome list. It reloads from
// its loader once the refresh interval has passed.
type GenomeCatalog struct {
	load  GenomeLoader
	cache *expirable.LRU[string, []string]
}

func NewGenomeCatalog(load GenomeLoader, refresh time.Duration) *GenomeCatalog {
	return &GenomeCatalog{
		load:  load,
		cache: expirable.NewLRU[string, []string](1, nil, refresh),
	}
}

// StaticGenomeCatalog never reloads. Used for fixed deployments and tests.
func StaticGenomeCatalog(genomes []string) *GenomeCatalog {
	sorted := append([]string(nil), genomes...)
	sort.Strings(sorted)
	return NewGenomeCatalog(func(context.Context) ([]string, error) {
		return sorted, nil
	}, 0)
}

func (c *GenomeCatalog) Genomes(ctx context.Context) ([]string, error) {
	if genomes, ok := c.cache.Get(genomesKey); ok {
		metrics.GenomeCatalogHits.Inc()
		return genomes, nil
	}
	metrics.GenomeCatalogMisses.Inc()

	genomes, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(genomesKey, genomes)
	return genomes, nil
}

// Refresh drops the in-memory list so the next call reloads.
func (c *GenomeCatalog) Refresh() {
	c.cache.Remove(genomesKey)
}
