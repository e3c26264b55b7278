package handler

// DI for all handlers.

import (
	"context"
	"time"

	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/db"
	"github.com/yumyai/roundup/pkg/orchestrator"
	"github.com/yumyai/roundup/pkg/render"
	"github.com/yumyai/roundup/pkg/result"
)

type GenomeSource interface {
	Genomes(ctx context.Context) ([]string, error)
}

type GeneNameIndex interface {
	SeqIDsForGeneName(ctx context.Context, geneName, genome string) ([]string, error)
	FindGeneNames(ctx context.Context, substring string, searchType db.SearchType) ([]db.GeneNameHit, error)
}

type SequenceSource interface {
	FindSeqID(ctx context.Context, genome, inputFasta string) (string, error)
	GetSequences(ctx context.Context, genome string, seqIDs []string) ([]byte, error)
}

type AppContext struct {
	Genomes      GenomeSource
	GeneNames    GeneNameIndex
	Sequences    SequenceSource
	Orchestrator *orchestrator.Orchestrator
	Results      *result.Store
	Cache        cache.Store
	Renderers    *render.Registry
	MaxGenomes   int
	WaitDelay    time.Duration
}
