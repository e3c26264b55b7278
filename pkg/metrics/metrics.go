// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundup_query_cache_hits_total",
		Help: "Queries answered from the result cache without dispatching a job.",
	})
	QueryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundup_query_cache_misses_total",
		Help: "Queries that had to dispatch a job.",
	})
	GenomeCatalogHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundup_genome_catalog_hits_total",
		Help: "Genome list lookups served from memory.",
	})
	GenomeCatalogMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roundup_genome_catalog_misses_total",
		Help: "Genome list lookups that reloaded from the catalog database.",
	})
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundup_dispatch_total",
		Help: "Jobs dispatched, by mode (sync, async) and outcome (ok, error).",
	}, []string{"mode", "outcome"})
	PollOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundup_poll_total",
		Help: "Result page polls, by outcome (wait, result, unavailable).",
	}, []string{"outcome"})
	WorkerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roundup_worker_tasks_total",
		Help: "Queued tasks executed by workers, by final status.",
	}, []string{"status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
