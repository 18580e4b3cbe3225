package observability

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/water-quality-etl/internal/config"
)

func TestNewLogger_LevelAndDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "warn", LogFormat: "json"})

	assert.Same(t, logger, slog.Default())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewLogger_DebugText(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "DEBUG", LogFormat: "text"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()
	a.ModelsFitted.Set(4)
	a.WQPRequests.WithLabelValues("result", "success").Inc()

	assert.InDelta(t, 4, testutil.ToFloat64(a.ModelsFitted), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.ModelsFitted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.WQPRequests.WithLabelValues("result", "success")), 0)
}

func TestSpanHelpers_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "stage")
	require.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
	assert.False(t, span.IsRecording())
}
