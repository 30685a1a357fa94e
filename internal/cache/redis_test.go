package cache_test

import (
	"context"
	"testing"

	"github.com/pingcap/failpoint"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/trailql/tql/internal/cache"
)

func TestRedisTierGetSurfacesInjectedFailure(t *testing.T) {
	require.NoError(t, failpoint.Enable("github.com/trailql/tql/internal/cache/redisTierGetError", `return("connection refused")`))
	defer failpoint.Disable("github.com/trailql/tql/internal/cache/redisTierGetError")

	tier := cache.NewRedisTier(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "tql:")

	data, ok, err := tier.Get(context.Background(), "q1")
	require.Error(t, err)
	require.EqualError(t, err, "connection refused")
	require.False(t, ok)
	require.Nil(t, data)
}
