package resolver

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/dyluth/hri/pkg/hri"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRequestID(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	ids := []string{
		"abcdef12-0000-4000-8000-000000000001",
		"abcdef12-0000-4000-8000-000000000002",
		"fedcba98-0000-4000-8000-000000000003",
	}
	for _, id := range ids {
		require.NoError(t, client.PublishResponse(ctx, &blackboard.ResponseEvent{
			RequestID: id,
			Kind:      blackboard.ResponseKindFinal,
			Response:  hri.SayResponse("ok", ""),
		}))
	}

	t.Run("unique prefix", func(t *testing.T) {
		got, err := ResolveRequestID(ctx, client, "fedcba")
		require.NoError(t, err)
		assert.Equal(t, ids[2], got)
	})

	t.Run("full id", func(t *testing.T) {
		got, err := ResolveRequestID(ctx, client, ids[0])
		require.NoError(t, err)
		assert.Equal(t, ids[0], got)
	})

	t.Run("unknown full id", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, client, "00000000-0000-4000-8000-000000000000")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, client, "abcdef")
		require.True(t, IsAmbiguousError(err))
		assert.Equal(t, ids[:2], err.(*AmbiguousError).Suggestions())
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, client, "999999")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveRequestID(ctx, client, "abc")
		assert.ErrorContains(t, err, "at least 6 characters")
	})
}
