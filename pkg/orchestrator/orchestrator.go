// Package orchestrator drives a query from submission to a stored result:
// prerequisite check, cache lookup, sync or async dispatch, then polling.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/metrics"
	"github.com/yumyai/roundup/pkg/model"
	"github.com/yumyai/roundup/pkg/result"
	"github.com/yumyai/roundup/pkg/runner"
	"github.com/yumyai/roundup/pkg/scheduler"
)

// State is where a request ended up.
type State string

const (
	ServeCached      State = "SERVE_CACHED"
	RedirectResult   State = "REDIRECT_RESULT"
	RedirectWait     State = "REDIRECT_WAIT"
	ServeUnavailable State = "SERVE_UNAVAILABLE"
	MissingPrereqs   State = "MISSING_PREREQS"
	DispatchFailed   State = "DISPATCH_ERROR"
)

var ErrJobEndedWithoutResult = errors.New("job ended without producing a result")

// MissingPrerequisiteError lists the pairwise results a query needs that are
// not loaded.
type MissingPrerequisiteError struct {
	Missing []model.Params
}

func (e *MissingPrerequisiteError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, p := range e.Missing {
		parts = append(parts, p.String())
	}
	return "missing prerequisite results: " + strings.Join(parts, ", ")
}

// Messages are the lines shown to the user.
func (e *MissingPrerequisiteError) Messages() []string {
	msgs := []string{"The following required results are not in the database:"}
	for _, p := range e.Missing {
		msgs = append(msgs, fmt.Sprintf("query genome=%s, subject genome=%s, divergence=%s, evalue=%s",
			p.QueryDB, p.SubjectDB, p.Divergence, p.Evalue))
	}
	return msgs
}

type Prerequisites interface {
	MissingParams(ctx context.Context, params []model.Params) ([]model.Params, error)
}

type Results interface {
	Allocate() string
	PathFor(id string) string
	IDFromPath(path string) string
	Exists(id string) bool
	NonEmpty(id string) bool
}

type Runner interface {
	RunSync(ctx context.Context, task runner.Task) (json.RawMessage, error)
	RunAsync(ctx context.Context, sub runner.Submission) (string, error)
	Status(ctx context.Context, jobID string) scheduler.Status
}

type Config struct {
	// queries touching at least this many genomes go through the batch queue
	SyncGenomeLimit   int
	AsyncQueue        string
	UnknownRetryDelay time.Duration
	EvictStaleCache   bool
}

type Orchestrator struct {
	prereqs Prerequisites
	cache   cache.Store
	runner  Runner
	results Results
	cfg     Config

	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(prereqs Prerequisites, store cache.Store, r Runner, results Results, cfg Config) *Orchestrator {
	if cfg.SyncGenomeLimit <= 0 {
		cfg.SyncGenomeLimit = 20
	}
	return &Orchestrator{
		prereqs: prereqs,
		cache:   store,
		runner:  r,
		results: results,
		cfg:     cfg,
		Sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type SubmitOptions struct {
	SkipCache bool
}

// Outcome is the result of Submit. ResultID is set for every redirect; JobID
// only for REDIRECT_WAIT.
type Outcome struct {
	State    State
	ResultID string
	JobID    string
	CacheKey cache.Key
	Err      error
}

// Submit runs the query state machine up to the first redirect.
func (o *Orchestrator) Submit(ctx context.Context, q *model.OrthQuery, opts SubmitOptions) Outcome {
	log := logger.With(zap.String("kind", string(q.Kind)))

	if o.prereqs != nil {
		missing, err := o.prereqs.MissingParams(ctx, q.Params())
		if err != nil {
			log.Error("Prerequisite check failed", zap.Error(err))
			return Outcome{State: DispatchFailed, Err: fmt.Errorf("check prerequisites: %w", err)}
		}
		if len(missing) > 0 {
			log.Info("Query is missing prerequisites", zap.Int("missing", len(missing)))
			return Outcome{State: MissingPrereqs, Err: &MissingPrerequisiteError{Missing: missing}}
		}
	}

	key := cache.NewKey(q.CanonicalKey())
	if !opts.SkipCache {
		if id, ok := o.cached(ctx, key); ok {
			metrics.QueryCacheHits.Inc()
			log.Debug("Serving cached result", zap.String("result_id", id))
			return Outcome{State: ServeCached, ResultID: id, CacheKey: key}
		}
	}
	metrics.QueryCacheMisses.Inc()

	id := o.results.Allocate()
	task := runner.CacheWrap(runner.Task{Call: backend.QueryKwargs(q)}, key, o.results.PathFor(id))

	if q.GenomesTouched() < o.cfg.SyncGenomeLimit {
		if _, err := o.runner.RunSync(ctx, task); err != nil {
			return Outcome{State: DispatchFailed, Err: err}
		}
		return Outcome{State: RedirectResult, ResultID: id, CacheKey: key}
	}

	sub := runner.SchedulerWrap(task, scheduler.Options{Queue: o.cfg.AsyncQueue, NoNotify: true})
	jobID, err := o.runner.RunAsync(ctx, sub)
	if err != nil {
		return Outcome{State: DispatchFailed, Err: err}
	}
	return Outcome{State: RedirectWait, ResultID: id, JobID: jobID, CacheKey: key}
}

// cached returns the result id under key when its file still exists.
func (o *Orchestrator) cached(ctx context.Context, key cache.Key) (string, bool) {
	has, err := o.cache.Has(ctx, key)
	if err != nil {
		logger.Warn("Cache lookup failed, treating as miss", zap.Error(err))
		return "", false
	}
	if !has {
		return "", false
	}
	path, ok, err := o.cache.Get(ctx, key)
	if err != nil || !ok {
		return "", false
	}
	id := o.results.IDFromPath(path)
	if id == "" || !o.results.Exists(id) {
		logger.Debug("Cache entry points at a missing result", zap.String("path", path))
		return "", false
	}
	return id, true
}

type PollRequest struct {
	ResultID string
	JobID    string
	Count    int
	// CacheKey is only used to evict a stale entry when eviction is enabled
	CacheKey cache.Key
}

type PollOutcome struct {
	State    State
	ResultID string
	JobID    string
	// Count is the value the next wait page carries
	Count int
	Err   error
}

// Poll decides what the result page shows for a possibly still running job.
func (o *Orchestrator) Poll(ctx context.Context, req PollRequest) PollOutcome {
	out := PollOutcome{ResultID: req.ResultID, JobID: req.JobID, Count: req.Count}

	if req.JobID != "" {
		status := o.runner.Status(ctx, req.JobID)
		if status == scheduler.Unknown {
			if err := o.Sleep(ctx, o.cfg.UnknownRetryDelay); err != nil {
				out.State, out.Err = ServeUnavailable, err
				return out
			}
			status = o.runner.Status(ctx, req.JobID)
		}
		if status.Active() {
			metrics.PollOutcomes.WithLabelValues("wait").Inc()
			out.State, out.Count = RedirectWait, req.Count+1
			return out
		}
		logger.Debug("Job ended", zap.String("job_id", req.JobID), zap.String("status", string(status)))
	}

	if result.ValidID(req.ResultID) && o.results.NonEmpty(req.ResultID) {
		metrics.PollOutcomes.WithLabelValues("result").Inc()
		out.State = RedirectResult
		return out
	}

	metrics.PollOutcomes.WithLabelValues("unavailable").Inc()
	out.State, out.Err = ServeUnavailable, ErrJobEndedWithoutResult
	if req.JobID != "" {
		logger.Warn("Job ended without a result", zap.String("job_id", req.JobID), zap.String("result_id", req.ResultID))
		if o.cfg.EvictStaleCache && req.CacheKey != "" {
			o.evictStale(ctx, req)
		}
	}
	return out
}

// evictStale removes the cache entry only while it still points at the
// result this failed job was writing. An entry written by another dispatch
// of the same query is left alone.
func (o *Orchestrator) evictStale(ctx context.Context, req PollRequest) {
	if !result.ValidID(req.ResultID) {
		return
	}
	entry, err := o.cache.Entry(ctx, req.CacheKey)
	if errors.Is(err, cache.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("Failed to read cache entry for eviction", zap.Error(err))
		return
	}
	if entry.Value != o.results.PathFor(req.ResultID) {
		logger.Debug("Cache entry belongs to another result, keeping it", zap.String("cache_key", string(req.CacheKey)))
		return
	}
	if err := o.cache.Remove(ctx, req.CacheKey); err != nil {
		logger.Warn("Failed to evict stale cache entry", zap.Error(err))
		return
	}
	logger.Info("Evicted stale cache entry",
		zap.String("cache_key", string(req.CacheKey)),
		zap.Duration("age", time.Since(entry.Created)))
}
