package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/model"
	"github.com/yumyai/roundup/pkg/result"
	"github.com/yumyai/roundup/pkg/runner"
	"github.com/yumyai/roundup/pkg/scheduler"
)

type fakeRunner struct {
	results   *result.Store
	syncRuns  []runner.Task
	asyncRuns []runner.Submission
	statuses  []scheduler.Status
	polls     int
	syncErr   error
}

func (f *fakeRunner) RunSync(_ context.Context, task runner.Task) (json.RawMessage, error) {
	f.syncRuns = append(f.syncRuns, task)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	if err := result.WriteFile(task.OutputPath, []byte(`{}`)); err != nil {
		return nil, err
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeRunner) RunAsync(_ context.Context, sub runner.Submission) (string, error) {
	f.asyncRuns = append(f.asyncRuns, sub)
	return "job-42", nil
}

func (f *fakeRunner) Status(context.Context, string) scheduler.Status {
	if f.polls >= len(f.statuses) {
		return scheduler.Unknown
	}
	s := f.statuses[f.polls]
	f.polls++
	return s
}

func (f *fakeRunner) calls() int {
	return len(f.syncRuns) + len(f.asyncRuns)
}

type fakePrereqs struct {
	missing []model.Params
}

func (f fakePrereqs) MissingParams(context.Context, []model.Params) ([]model.Params, error) {
	return f.missing, nil
}

type env struct {
	orch    *Orchestrator
	runner  *fakeRunner
	cache   *cache.MemoryStore
	results *result.Store
	sleeps  []time.Duration
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	e := &env{cache: cache.NewMemoryStore(), results: result.NewStore(t.TempDir())}
	e.runner = &fakeRunner{results: e.results}
	e.orch = New(fakePrereqs{}, e.cache, e.runner, e.results, cfg)
	e.orch.Sleep = func(_ context.Context, d time.Duration) error {
		e.sleeps = append(e.sleeps, d)
		return nil
	}
	return e
}

func clusterQuery(n int) *model.OrthQuery {
	q := model.DefaultOrthQuery(model.KindCluster)
	for i := 0; i < n; i++ {
		q.Genomes = append(q.Genomes, fmt.Sprintf("Genome_%02d.aa", i))
	}
	return model.NewOrthQuery(q)
}

func TestSyncAsyncThreshold(t *testing.T) {
	e := newEnv(t, Config{SyncGenomeLimit: 20, AsyncQueue: "long"})
	ctx := context.Background()

	out := e.orch.Submit(ctx, clusterQuery(19), SubmitOptions{})
	assert.Equal(t, RedirectResult, out.State)
	assert.Len(t, e.runner.syncRuns, 1)
	assert.Empty(t, e.runner.asyncRuns)

	out = e.orch.Submit(ctx, clusterQuery(20), SubmitOptions{})
	assert.Equal(t, RedirectWait, out.State)
	assert.Equal(t, "job-42", out.JobID)
	require.Len(t, e.runner.asyncRuns, 1)
	assert.Equal(t, scheduler.Options{Queue: "long", NoNotify: true}, e.runner.asyncRuns[0].Options)
	assert.Equal(t, e.results.PathFor(out.ResultID), e.runner.asyncRuns[0].Task.OutputPath)
	assert.Equal(t, out.CacheKey, e.runner.asyncRuns[0].Task.CacheKey)
}

func TestCacheShortCircuit(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	q := clusterQuery(3)

	id := e.results.Allocate()
	require.NoError(t, e.results.Write(id, []byte(`{}`)))
	_, err := e.cache.Set(ctx, cache.NewKey(q.CanonicalKey()), e.results.PathFor(id))
	require.NoError(t, err)

	out := e.orch.Submit(ctx, q, SubmitOptions{})
	assert.Equal(t, ServeCached, out.State)
	assert.Equal(t, id, out.ResultID)
	assert.Zero(t, e.runner.calls())

	out = e.orch.Submit(ctx, q, SubmitOptions{SkipCache: true})
	assert.Equal(t, RedirectResult, out.State)
	assert.NotEqual(t, id, out.ResultID)
	assert.Equal(t, 1, e.runner.calls())
}

func TestCacheEntryWithMissingFileDispatches(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	q := clusterQuery(2)

	_, err := e.cache.Set(ctx, cache.NewKey(q.CanonicalKey()), e.results.PathFor(e.results.Allocate()))
	require.NoError(t, err)

	out := e.orch.Submit(ctx, q, SubmitOptions{})
	assert.Equal(t, RedirectResult, out.State)
	assert.Equal(t, 1, e.runner.calls())
}

func TestMissingPrerequisites(t *testing.T) {
	e := newEnv(t, Config{})
	missing := []model.Params{{QueryDB: "A.aa", SubjectDB: "B.aa", Divergence: "0.2", Evalue: "1e-20"}}
	e.orch.prereqs = fakePrereqs{missing: missing}

	out := e.orch.Submit(context.Background(), clusterQuery(2), SubmitOptions{})
	assert.Equal(t, MissingPrereqs, out.State)
	var merr *MissingPrerequisiteError
	require.True(t, errors.As(out.Err, &merr))
	assert.Equal(t, missing, merr.Missing)
	assert.Len(t, merr.Messages(), 2)
	assert.Zero(t, e.runner.calls())
}

func TestDispatchError(t *testing.T) {
	e := newEnv(t, Config{})
	e.runner.syncErr = &runner.DispatchError{Op: backend.OrthologyQuery, ExitCode: 1, Err: errors.New("boom")}

	out := e.orch.Submit(context.Background(), clusterQuery(2), SubmitOptions{})
	assert.Equal(t, DispatchFailed, out.State)
	var derr *runner.DispatchError
	assert.True(t, errors.As(out.Err, &derr))
}

func TestPollingConverges(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	id := e.results.Allocate()
	e.runner.statuses = []scheduler.Status{scheduler.Pending, scheduler.Running, scheduler.Running, scheduler.Done}

	req := PollRequest{ResultID: id, JobID: "job-42", Count: 0}
	for i := 1; i <= 3; i++ {
		out := e.orch.Poll(ctx, req)
		require.Equal(t, RedirectWait, out.State, "poll %d", i)
		assert.Equal(t, req.Count+1, out.Count)
		req.Count = out.Count
	}
	require.NoError(t, e.results.Write(id, []byte(`{}`)))

	out := e.orch.Poll(ctx, req)
	assert.Equal(t, RedirectResult, out.State)
	assert.Equal(t, id, out.ResultID)
	assert.Equal(t, 3, req.Count)
	assert.Empty(t, e.sleeps)
}

func TestExitedWithoutResult(t *testing.T) {
	e := newEnv(t, Config{})
	e.runner.statuses = []scheduler.Status{scheduler.Exited}

	out := e.orch.Poll(context.Background(), PollRequest{ResultID: e.results.Allocate(), JobID: "job-42"})
	assert.Equal(t, ServeUnavailable, out.State)
	assert.ErrorIs(t, out.Err, ErrJobEndedWithoutResult)
}

func TestUnknownRetriedOnce(t *testing.T) {
	e := newEnv(t, Config{UnknownRetryDelay: 4 * time.Second})
	e.runner.statuses = []scheduler.Status{scheduler.Unknown, scheduler.Running}

	out := e.orch.Poll(context.Background(), PollRequest{ResultID: e.results.Allocate(), JobID: "job-42", Count: 7})
	assert.Equal(t, RedirectWait, out.State)
	assert.Equal(t, 8, out.Count)
	assert.Equal(t, []time.Duration{4 * time.Second}, e.sleeps)
	assert.Equal(t, 2, e.runner.polls)
}

func TestUnknownTwiceEndsJob(t *testing.T) {
	e := newEnv(t, Config{UnknownRetryDelay: time.Second})
	id := e.results.Allocate()
	require.NoError(t, e.results.Write(id, []byte(`{}`)))

	out := e.orch.Poll(context.Background(), PollRequest{ResultID: id, JobID: "gone"})
	assert.Equal(t, RedirectResult, out.State)
	assert.Len(t, e.sleeps, 1)
}

func TestPollWithoutJob(t *testing.T) {
	e := newEnv(t, Config{})
	out := e.orch.Poll(context.Background(), PollRequest{ResultID: "../../etc/passwd"})
	assert.Equal(t, ServeUnavailable, out.State)
	assert.Zero(t, e.runner.polls)
}

func TestEvictStaleCache(t *testing.T) {
	ctx := context.Background()
	key := cache.NewKey("stale")

	for _, evict := range []bool{false, true} {
		e := newEnv(t, Config{EvictStaleCache: evict})
		id := e.results.Allocate()
		_, err := e.cache.Set(ctx, key, e.results.PathFor(id))
		require.NoError(t, err)
		e.runner.statuses = []scheduler.Status{scheduler.Done}

		out := e.orch.Poll(ctx, PollRequest{ResultID: id, JobID: "job-42", CacheKey: key})
		assert.Equal(t, ServeUnavailable, out.State)
		has, err := e.cache.Has(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, !evict, has, "evict=%v", evict)
	}
}

func TestEvictKeepsEntryOfAnotherResult(t *testing.T) {
	ctx := context.Background()
	key := cache.NewKey("shared")
	e := newEnv(t, Config{EvictStaleCache: true})

	// a concurrent dispatch of the same query finished and owns the entry
	winner := e.results.Allocate()
	require.NoError(t, e.results.Write(winner, []byte(`{}`)))
	_, err := e.cache.Set(ctx, key, e.results.PathFor(winner))
	require.NoError(t, err)

	e.runner.statuses = []scheduler.Status{scheduler.Exited}
	out := e.orch.Poll(ctx, PollRequest{ResultID: e.results.Allocate(), JobID: "job-1", CacheKey: key})
	assert.Equal(t, ServeUnavailable, out.State)

	path, ok, err := e.cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, e.results.PathFor(winner), path)
}

func TestEvictIgnoresForgedResultID(t *testing.T) {
	ctx := context.Background()
	key := cache.NewKey("victim")
	e := newEnv(t, Config{EvictStaleCache: true})
	_, err := e.cache.Set(ctx, key, "/results/somewhere")
	require.NoError(t, err)

	e.runner.statuses = []scheduler.Status{scheduler.Unknown, scheduler.Unknown}
	out := e.orch.Poll(ctx, PollRequest{ResultID: "not-a-uuid", JobID: "made-up", CacheKey: key})
	assert.Equal(t, ServeUnavailable, out.State)

	has, err := e.cache.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPollTreatsEmptyResultAsUnavailable(t *testing.T) {
	e := newEnv(t, Config{})
	id := e.results.Allocate()
	require.NoError(t, e.results.Write(id, nil))
	e.runner.statuses = []scheduler.Status{scheduler.Done}

	out := e.orch.Poll(context.Background(), PollRequest{ResultID: id, JobID: "job-42"})
	assert.Equal(t, ServeUnavailable, out.State)
}
