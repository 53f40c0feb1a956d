package cache_test

import (
	"context"
	"testing"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesGate(t *testing.T) {
	ctx := context.Background()
	rdb, mr := testutil.SetupRedis(t)

	gates := map[string]cache.SalesGate{
		"Redis":  cache.NewRedisSalesGate(rdb),
		"Memory": cache.NewMemorySalesGate(),
	}

	for name, gate := range gates {
		t.Run(name, func(t *testing.T) {
			open, err := gate.IsOpen(ctx)
			require.NoError(t, err)
			assert.True(t, open, "default is open")

			require.NoError(t, gate.SetOpen(ctx, false))
			open, err = gate.IsOpen(ctx)
			require.NoError(t, err)
			assert.False(t, open)

			require.NoError(t, gate.SetOpen(ctx, true))
			open, err = gate.IsOpen(ctx)
			require.NoError(t, err)
			assert.True(t, open)
		})
	}

	t.Run("Redis - Shared Between Instances", func(t *testing.T) {
		require.NoError(t, cache.NewRedisSalesGate(rdb).SetOpen(ctx, false))

		val, err := mr.Get("event:sales_open")
		require.NoError(t, err)
		assert.Equal(t, "0", val)

		open, err := cache.NewRedisSalesGate(rdb).IsOpen(ctx)
		require.NoError(t, err)
		assert.False(t, open)
	})
}
