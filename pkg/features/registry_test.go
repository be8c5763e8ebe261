package features_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/features"
)

func staticCheck(name string, present bool) features.Check {
	return features.NewCheck(name, func(context.Context, features.Target) (features.Result, error) {
		return features.Result{features.KeyPresent: present}, nil
	})
}

func TestRegistry_RunsOnlyEnabledInRegistrationOrder(t *testing.T) {
	t.Parallel()

	var order []string

	r := features.NewRegistry(nil)

	for _, name := range []string{"a", "b", "c"} {
		r.Register(features.NewCheck(name, func(context.Context, features.Target) (features.Result, error) {
			order = append(order, name)

			return features.Result{features.KeyPresent: true}, nil
		}))
	}

	got := r.Run(context.Background(), features.Target{FS: fstest.MapFS{}}, []string{"c", "a", "unknown"})

	assert.Equal(t, []string{"a", "c"}, order)
	assert.Len(t, got, 2)
	assert.NotContains(t, got, "b")
	assert.NotContains(t, got, "unknown")
}

func TestRegistry_DisabledIsDistinctFromAbsent(t *testing.T) {
	t.Parallel()

	r := features.NewRegistry(nil)
	r.Register(staticCheck("on", false))
	r.Register(staticCheck("off", true))

	got := r.Run(context.Background(), features.Target{FS: fstest.MapFS{}}, []string{"on"})

	res, ok := got["on"]
	require.True(t, ok)
	assert.False(t, res.Present())

	_, ok = got["off"]
	assert.False(t, ok)
}

func TestRegistry_RegisterReplacesInPlace(t *testing.T) {
	t.Parallel()

	r := features.NewRegistry(nil)
	r.Register(staticCheck("first", false))
	r.Register(staticCheck("second", false))
	r.Register(staticCheck("first", true))

	assert.Equal(t, []string{"first", "second"}, r.Names())

	got := r.Run(context.Background(), features.Target{FS: fstest.MapFS{}}, []string{"first"})
	assert.True(t, got["first"].Present())
}

func TestRegistry_ErrorAndPanicRecorded(t *testing.T) {
	t.Parallel()

	r := features.NewRegistry(nil)
	r.Register(features.NewCheck("fails", func(context.Context, features.Target) (features.Result, error) {
		return nil, errors.New("boom")
	}))
	r.Register(features.NewCheck("panics", func(context.Context, features.Target) (features.Result, error) {
		panic("kaboom")
	}))
	r.Register(staticCheck("fine", true))

	got := r.Run(context.Background(), features.Target{FS: fstest.MapFS{}}, []string{"fails", "panics", "fine"})

	assert.Equal(t, features.Result{"error": "boom"}, got["fails"])
	assert.Contains(t, got["panics"].Err(), "kaboom")
	assert.True(t, got["fine"].Present())
}

func TestRegistry_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := features.NewRegistry(nil)
	r.Register(staticCheck("x", true))

	got := r.Run(ctx, features.Target{FS: fstest.MapFS{}}, []string{"x"})
	assert.NotEmpty(t, got["x"].Err())
}

func TestNewDefaultRegistry_Names(t *testing.T) {
	t.Parallel()

	r := features.NewDefaultRegistry(features.Options{})

	assert.Equal(t, []string{
		"dependabot",
		"github2gerrit_workflow",
		"g2g",
		"pre_commit",
		"readthedocs",
		"sonatype_config",
		"project_types",
		"workflows",
		"gitreview",
		"languages",
		"github_mirror",
	}, r.Names())
}
