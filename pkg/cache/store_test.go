package cache_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/cache"
)

type record struct {
	Name    string         `json:"name"`
	Commits map[string]int `json:"commits"`
}

func openStore(t *testing.T, onLookup cache.LookupFunc) *cache.Store[record] {
	t.Helper()

	store, err := cache.Open[record](t.TempDir(), onLookup)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return store
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	store := openStore(t, nil)

	_, found, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	want := record{Name: "repo-a", Commits: map[string]int{"last_30_days": 3}}
	require.NoError(t, store.Put("k", want))

	got, found, err := store.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestStore_GetOrCompute_HitAfterMiss(t *testing.T) {
	t.Parallel()

	var lookups []bool

	store := openStore(t, func(hit bool) { lookups = append(lookups, hit) })

	calls := 0
	compute := func() (record, bool) {
		calls++

		return record{Name: "computed"}, true
	}

	first, hit, err := store.GetOrCompute("key", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "computed", first.Name)

	second, hit, err := store.GetOrCompute("key", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []bool{false, true}, lookups)

	hits, misses := store.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestStore_GetOrCompute_NotCacheable(t *testing.T) {
	t.Parallel()

	store := openStore(t, nil)

	calls := 0
	compute := func() (record, bool) {
		calls++

		return record{Name: "failed"}, false
	}

	_, _, err := store.GetOrCompute("key", compute)
	require.NoError(t, err)

	_, hit, err := store.GetOrCompute("key", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestStore_GetOrCompute_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	store := openStore(t, nil)

	var (
		calls atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			got, _, err := store.GetOrCompute("shared", func() (record, bool) {
				calls.Add(1)

				return record{Name: "once"}, true
			})
			assert.NoError(t, err)
			assert.Equal(t, "once", got.Name)
		}()
	}

	close(start)
	wg.Wait()

	// Callers either joined the single flight or hit the stored value.
	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := cache.Open[record](dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put("k", record{Name: "persisted"}))
	require.NoError(t, store.Close())

	reopened, err := cache.Open[record](dir, nil)
	require.NoError(t, err)

	defer reopened.Close()

	got, found, err := reopened.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "persisted", got.Name)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cache.Fingerprint("repo", "abc"), cache.Fingerprint("repo", "abc"))
	assert.NotEqual(t, cache.Fingerprint("repo", "abc"), cache.Fingerprint("repo", "abd"))
	assert.NotEqual(t, cache.Fingerprint("ab", "c"), cache.Fingerprint("a", "bc"))
	assert.Len(t, cache.Fingerprint("x"), 64)
}
