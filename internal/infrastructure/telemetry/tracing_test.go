package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestProvider(t *testing.T) (*TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProviderWithExporter(Config{ServiceName: "ledger-test", SamplingRatio: 1}, exporter, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exporter
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", Sampler(1).Description())
	assert.Equal(t, "AlwaysOnSampler", Sampler(2).Description())
	assert.Equal(t, "AlwaysOffSampler", Sampler(0).Description())
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestStartServiceSpan(t *testing.T) {
	tp, exporter := newTestProvider(t)
	assert.True(t, tp.IsEnabled())

	ctx, span := StartServiceSpan(context.Background(), "settlement", "withdraw",
		WithAttribute(SpanAttrUserID, "u1"))
	assert.NotEmpty(t, GetTraceID(ctx))
	SetAttributes(span, SpanAttrAmount, "40.00", 42, "ignored", SpanAttrOutcome, "success")
	AddEvent(span, "return_paid", SpanAttrReturnID, "r1")
	RecordError(span, errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "settlement.withdraw", s.Name)
	assert.Equal(t, codes.Error, s.Status.Code)

	v, ok := attrValue(s.Attributes, SpanAttrUserID)
	require.True(t, ok)
	assert.Equal(t, "u1", v.AsString())
	v, ok = attrValue(s.Attributes, SpanAttrAmount)
	require.True(t, ok)
	assert.Equal(t, "40.00", v.AsString())
	v, ok = attrValue(s.Attributes, SpanAttrOutcome)
	require.True(t, ok)
	assert.Equal(t, "success", v.AsString())
	assert.Len(t, s.Attributes, 3)

	require.Len(t, s.Events, 2)
	assert.Equal(t, "return_paid", s.Events[0].Name)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestDBTracingPlugin(t *testing.T) {
	_, exporter := newTestProvider(t)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	t.Run("disabled leaves the db untouched", func(t *testing.T) {
		plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zap.NewNop())
		require.NoError(t, plugin.Register(db))
		require.NoError(t, db.Exec("SELECT 1").Error)
		assert.Empty(t, exporter.GetSpans())
	})

	t.Run("enabled emits query spans", func(t *testing.T) {
		plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBName: "ledger"}, zap.NewNop())
		require.NoError(t, plugin.Register(db))

		ctx, parent := StartSpan(context.Background(), "test.parent")
		require.NoError(t, db.WithContext(ctx).Exec("CREATE TABLE plans (id INTEGER, name TEXT)").Error)
		parent.End()

		spans := exporter.GetSpans()
		require.GreaterOrEqual(t, len(spans), 2)
		var sawDB bool
		for _, s := range spans {
			if s.Parent.SpanID() == parent.SpanContext().SpanID() {
				sawDB = true
			}
		}
		assert.True(t, sawDB)
	})
}
