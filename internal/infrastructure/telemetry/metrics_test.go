package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), Config{Enabled: false}, 0, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, mp.Meter("ledger"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp, err := NewMeterProviderWithReader(Config{ServiceName: "ledger-test"}, reader, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(7)
	t.Cleanup(func() { _ = sqlDB.Close() })

	reg, err := RegisterDBPoolMetrics(mp.Meter("ledger/db"), sqlDB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Unregister() })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}
	for _, name := range []string{"db_pool_connections", "db_pool_connections_max", "db_pool_wait_total", "db_pool_wait_duration_seconds"} {
		assert.Contains(t, found, name)
	}

	maxOpen, ok := found["db_pool_connections_max"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, maxOpen.DataPoints, 1)
	assert.Equal(t, int64(7), maxOpen.DataPoints[0].Value)

	byState, ok := found["db_pool_connections"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Len(t, byState.DataPoints, 2)
}
