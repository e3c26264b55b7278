package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSQLiteStore(t *testing.T) (*SQLStore, *fakeClock) {
	t.Helper()
	store, err := Open(context.Background(), SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.now = clock.now
	return store, clock
}

func newMemoryStore(t *testing.T) (*MemoryStore, *fakeClock) {
	store := NewMemoryStore()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.now = clock.now
	return store, clock
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store, clock *fakeClock)) {
	t.Run("sqlite", func(t *testing.T) {
		s, c := newSQLiteStore(t)
		fn(t, s, c)
	})
	t.Run("memory", func(t *testing.T) {
		s, c := newMemoryStore(t)
		fn(t, s, c)
	})
}

func TestHashIsDeterministic(t *testing.T) {
	a := Hash("orthquery/v1;kind=s6:browse")
	b := Hash("orthquery/v1;kind=s6:browse")
	assert.Equal(t, a, b)
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, Hash("orthquery/v1;kind=s7:cluster"))
}

func TestParseKey(t *testing.T) {
	k := NewKey("anything")
	got, ok := ParseKey(string(k))
	assert.True(t, ok)
	assert.Equal(t, k, got)

	_, ok = ParseKey("not-a-key")
	assert.False(t, ok)
	_, ok = ParseKey("zz" + string(k)[2:])
	assert.False(t, ok)
}

func TestSetIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		key := NewKey("query")

		_, err := s.Set(ctx, key, "/results/ab/cd/roundup_web_result_1")
		require.NoError(t, err)
		_, err = s.Set(ctx, key, "/results/ab/cd/roundup_web_result_1")
		require.NoError(t, err)

		v, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "/results/ab/cd/roundup_web_result_1", v)
	})
}

func TestLastWriteWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		key := NewKey("query")

		_, err := s.Set(ctx, key, "first")
		require.NoError(t, err)
		created := clock.t

		clock.advance(time.Minute)
		_, err = s.Set(ctx, key, "second")
		require.NoError(t, err)

		e, err := s.Entry(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", e.Value)
		assert.True(t, e.Created.Equal(created), "create time must survive an overwrite")
		assert.True(t, e.Modified.Equal(clock.t))
	})
}

func TestNewEntryTimesAreEqual(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		key := NewKey("fresh")
		_, err := s.Set(ctx, key, "v")
		require.NoError(t, err)

		e, err := s.Entry(ctx, key)
		require.NoError(t, err)
		assert.True(t, e.Created.Equal(e.Modified))
		assert.True(t, e.Modified.Equal(e.Accessed))
	})
}

func TestGetRefreshesAccessTime(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		key := NewKey("touched")
		_, err := s.Set(ctx, key, "v")
		require.NoError(t, err)

		clock.advance(time.Hour)
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)

		e, err := s.Entry(ctx, key)
		require.NoError(t, err)
		assert.True(t, e.Accessed.Equal(clock.t))
		assert.True(t, e.Modified.Before(e.Accessed))
	})
}

func TestHasAndRemove(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		key := NewKey("gone")

		has, err := s.Has(ctx, key)
		require.NoError(t, err)
		assert.False(t, has)

		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Set(ctx, key, "v")
		require.NoError(t, err)
		has, err = s.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, has)

		require.NoError(t, s.Remove(ctx, key))
		has, err = s.Has(ctx, key)
		require.NoError(t, err)
		assert.False(t, has)

		_, err = s.Entry(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConcurrentSetsOnSameKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		key := NewKey("race")

		done := make(chan error, 8)
		for i := 0; i < 8; i++ {
			go func(i int) {
				_, err := s.Set(ctx, key, fmt.Sprintf("path-%d", i))
				done <- err
			}(i)
		}
		for i := 0; i < 8; i++ {
			require.NoError(t, <-done)
		}

		v, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, v, "path-")
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := OpenStore(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, closeFn())

	s, closeFn, err = OpenStore(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	_, err = s.Set(ctx, NewKey("a"), "/results/a")
	require.NoError(t, err)
	v, ok, err := s.Get(ctx, NewKey("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/results/a", v)
	assert.NoError(t, closeFn())

	_, closeFn, err = OpenStore(ctx, "redis", "")
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
