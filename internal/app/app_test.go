package app

import (
	"context"
	"field-route-service/internal/adapters/position"
	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/config"
	"field-route-service/internal/metrics"
	"field-route-service/internal/platform/db"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		DBDriver:      db.SQLite,
		DBPath:        ":memory:",
		ORSAPIKey:     "key",
		RouteCacheTTL: time.Minute,
	}
}

func TestBuildRouting(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	conn, err := OpenDatabase(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()

	t.Run("requires api key", func(t *testing.T) {
		c := *cfg
		c.ORSAPIKey = ""
		_, err := BuildRouting(ctx, &c, conn, nil)
		assert.ErrorContains(t, err, "ORS_API_KEY")
	})

	t.Run("plain ors", func(t *testing.T) {
		r, err := BuildRouting(ctx, cfg, conn, nil)
		require.NoError(t, err)
		defer r.Close()
		assert.IsType(t, &routing.ORSRoutingProvider{}, r.Provider)
	})

	t.Run("redis and metrics", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c := *cfg
		c.RedisAddr = mr.Addr()

		r, err := BuildRouting(ctx, &c, conn, metrics.NewCollector())
		require.NoError(t, err)
		defer r.Close()
		assert.IsType(t, &routing.InstrumentedProvider{}, r.Provider)
		assert.NotNil(t, r.redis)
	})
}

func TestBuildFeed_MemoryWithoutNATS(t *testing.T) {
	f, err := BuildFeed(testConfig(), nil)
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &position.MemoryFeed{}, f.PositionFeed)
}

func TestBuildFeed_NATSUnreachable(t *testing.T) {
	c := testConfig()
	c.NATSURL = "nats://127.0.0.1:1"

	_, err := BuildFeed(c, nil)
	assert.Error(t, err)
}
