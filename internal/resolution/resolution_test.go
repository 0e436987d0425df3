package resolution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	table := map[string]string{
		"{object}": "bottle",
		"{who}":    "bob",
		"it":       "the red bottle",
		"nobody":   "",
	}

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "whole value is a key", value: "{who}", want: "bob"},
		{name: "whole value with empty known value", value: "nobody", want: ""},
		{name: "tokens inside text", value: "give the {object} to {who}", want: "give the bottle to bob"},
		{name: "punctuation is stripped for lookup", value: "bring it, please", want: "bring the red bottle please"},
		{name: "whole token including punctuation is replaced", value: "is it?", want: "is the red bottle"},
		{name: "unknown tokens are untouched", value: "bring {thing} here", want: "bring {thing} here"},
		{name: "empty values do not replace tokens", value: "ask nobody now", want: "ask nobody now"},
		{name: "whitespace collapses to single spaces", value: "a   b\tc", want: "a b c"},
		{name: "empty value", value: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(table, map[string]string{"x": tt.value}, DefaultPunctuation)
			assert.Equal(t, tt.want, got["x"])
		})
	}
}

func TestSubstituteDoesNotModifyInput(t *testing.T) {
	in := map[string]string{"x": "{who}"}
	out := Substitute(map[string]string{"{who}": "bob"}, in, DefaultPunctuation)
	assert.Equal(t, "{who}", in["x"])
	assert.Equal(t, "bob", out["x"])
}

func TestContextPutResolve(t *testing.T) {
	ctx := context.Background()
	rc := New("", nil)
	require.NotEmpty(t, rc.ID())

	require.NoError(t, rc.Put(ctx, "{who}", "bob"))
	require.NoError(t, rc.Put(ctx, "{who}", "alice"))

	got, err := rc.Resolve(ctx, map[string]string{"target": "{who}", "msg": "hello {who}!"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"target": "alice", "msg": "hello alice"}, got)

	v, ok, err := rc.Get(ctx, "{who}")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	_, ok, err = rc.Get(ctx, "{missing}")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContextsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := New("a", store)
	b := New("b", store)

	require.NoError(t, a.Put(ctx, "it", "the cup"))

	got, err := b.Resolve(ctx, map[string]string{"x": "it"})
	require.NoError(t, err)
	assert.Equal(t, "it", got["x"])

	require.NoError(t, a.Release(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestCustomPunctuation(t *testing.T) {
	ctx := context.Background()
	rc := New("", nil, WithPunctuation("!"))
	require.NoError(t, rc.Put(ctx, "it", "cup"))

	got, err := rc.Resolve(ctx, map[string]string{"a": "it!", "b": "it,"})
	require.NoError(t, err)
	assert.Equal(t, "cup", got["a"])
	assert.Equal(t, "it,", got["b"])
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	rc := New("", nil)
	require.NoError(t, rc.Merge(ctx, map[string]string{"a": "1", "b": "2"}))

	snap, err := rc.Snapshot(ctx)
	require.NoError(t, err)
	snap["a"] = "changed"

	again, err := rc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", again["a"])
}

func TestConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	rc := New("", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, rc.Put(ctx, "k", "v"))
		}(i)
	}
	wg.Wait()

	snap, err := rc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, snap)
}

type failingStore struct{}

func (failingStore) SetResolutionValues(context.Context, string, map[string]string) error {
	return errors.New("boom")
}

func (failingStore) GetResolutionValues(context.Context, string) (map[string]string, error) {
	return nil, errors.New("boom")
}

func (failingStore) DeleteResolutionValues(context.Context, string) error {
	return errors.New("boom")
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	rc := New("ctx-1", failingStore{})

	err := rc.Put(ctx, "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ctx-1")

	_, err = rc.Resolve(ctx, map[string]string{"x": "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.Error(t, rc.Release(ctx))
}

func TestPutThenResolveProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("resolving a stored key yields its value", prop.ForAll(
		func(key, value string) bool {
			ctx := context.Background()
			rc := New("", nil)
			if err := rc.Put(ctx, key, value); err != nil {
				return false
			}
			got, err := rc.Resolve(ctx, map[string]string{"x": key})
			return err == nil && len(got) == 1 && got["x"] == value
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
