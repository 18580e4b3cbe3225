package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testResult() *domain.RunResult {
	return &domain.RunResult{
		RunID:     "run-1",
		CreatedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Ranking: []domain.FitStats{
			{Parameter: "Calcium", Site: "USGS-09034500", N: 30, DF: 28, Slope: 0.1, AdjRSquared: domain.Float(0.8)},
			{Parameter: "Sulfate", Site: "USGS-09069000", N: 2, Slope: -1},
		},
	}
}

func testWriter(fw *fakeWriter) *Writer {
	return &Writer{
		writer:  fw,
		metrics: observability.NewMetricsForTesting(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSerializeToMessage(t *testing.T) {
	result := testResult()

	msg, err := serializeToMessage(result, result.Ranking[0], 1)
	require.NoError(t, err)

	assert.Equal(t, []byte("Calcium|USGS-09034500"), msg.Key)
	assert.Contains(t, string(msg.Value), `"parameter":"Calcium"`)
	assert.Contains(t, string(msg.Value), `"rank":1`)
	assert.Contains(t, string(msg.Value), `"adj_r_squared":0.8`)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, headerRunID, msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, headerSite, msg.Headers[2].Key)
	assert.Equal(t, []byte("USGS-09034500"), msg.Headers[2].Value)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[3].Value)
}

func TestSerializeToMessage_UndefinedStatsAreNull(t *testing.T) {
	result := testResult()

	msg, err := serializeToMessage(result, result.Ranking[1], 2)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Nil(t, decoded["adj_r_squared"])
	assert.Nil(t, decoded["p_value"])
	assert.Equal(t, "run-1", decoded["run_id"])
}

func TestWriter_LoadPublishesInRankOrder(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	require.NoError(t, w.Load(context.Background(), testResult()))
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "Calcium|USGS-09034500", string(fw.msgs[0].Key))
	assert.Equal(t, "Sulfate|USGS-09069000", string(fw.msgs[1].Key))
	assert.InDelta(t, 2, testutil.ToFloat64(w.metrics.ResultsPublished), 0)
}

func TestWriter_LoadEmptyRankingIsNoop(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Load(context.Background(), &domain.RunResult{}))
	assert.Empty(t, fw.msgs)
}

func TestWriter_LoadWrapsError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	err := testWriter(fw).Load(context.Background(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish fits")
}

func TestWriter_Close(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Close())
	assert.True(t, fw.closed)
}
