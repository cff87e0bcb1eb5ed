package insight

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/types"
)

func testEngine(t *testing.T) (*Engine, *modelcache.Cache) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	cache := modelcache.New(30*time.Minute, 8, entry)
	engine := NewEngine(cache, Options{
		ForecastMinDays:     5,
		ForecastHorizonDays: 7,
		AnomalyMinDays:      5,
		SegmentMinCustomers: 4,
	}, entry)
	return engine, cache
}

// tradingRecords fabricates a month of orders with enough variation for all
// three capabilities to train.
func tradingRecords(days int) []types.Record {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []types.Record
	n := 0
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		perDay := 2 + i%3
		for j := 0; j < perDay; j++ {
			n++
			out = append(out, types.Record{
				types.FieldCustomerID:  "C" + string(rune('A'+n%12)),
				types.FieldOrderID:     "O" + string(rune('A'+n)),
				types.FieldDate:        d,
				types.FieldProductName: "Course",
				types.FieldTotalAmount: 40.0 + float64(n%5)*7,
			})
		}
	}
	return out
}

func TestAnalyzeTrainsThenHitsCache(t *testing.T) {
	engine, _ := testEngine(t)
	records := tradingRecords(30)

	first := engine.Analyze(context.Background(), records, "fp-month")
	require.NotEmpty(t, first.Forecast.Points)
	assert.False(t, first.Forecast.CacheHit)
	assert.False(t, first.AnomalyMeta.CacheHit)
	assert.False(t, first.Segments.CacheHit)
	assert.Equal(t, "linear_trend_dow", first.Forecast.Method)
	assert.Equal(t, "robust_zscore", first.AnomalyMeta.Method)
	assert.Equal(t, "rfm_kmeans", first.Segments.Method)
	assert.Equal(t, 30, first.Forecast.TrainingSamples)

	second := engine.Analyze(context.Background(), records, "fp-month")
	assert.True(t, second.Forecast.CacheHit)
	assert.True(t, second.AnomalyMeta.CacheHit)
	assert.True(t, second.Segments.CacheHit)
	assert.Equal(t, first.Forecast.Points, second.Forecast.Points)
}

func TestAnalyzeSkipsOnSmallDataset(t *testing.T) {
	engine, cache := testEngine(t)
	records := tradingRecords(3) // below every minimum

	out := engine.Analyze(context.Background(), records, "fp-small")

	assert.True(t, out.Forecast.Skipped)
	assert.NotEmpty(t, out.Forecast.SkipReason)
	assert.Empty(t, out.Forecast.Points)
	assert.True(t, out.AnomalyMeta.Skipped)
	assert.True(t, out.Segments.Skipped)
	assert.Zero(t, cache.Len(), "nothing trains below the sample floor")
}

func TestAnalyzeMetricsBlock(t *testing.T) {
	engine, _ := testEngine(t)

	out := engine.Analyze(context.Background(), tradingRecords(30), "fp-metrics")

	require.Len(t, out.Metrics.Capabilities, 3)
	assert.Contains(t, out.Metrics.Capabilities, "forecast")
	assert.Contains(t, out.Metrics.Capabilities, "anomaly")
	assert.Contains(t, out.Metrics.Capabilities, "segmentation")
	assert.Equal(t, 3, out.Metrics.Cache.Entries)
	assert.Equal(t, int64(3), out.Metrics.Cache.Misses)
}

func TestAnalyzeDistinctFingerprintsDoNotShareModels(t *testing.T) {
	engine, cache := testEngine(t)
	records := tradingRecords(30)

	_ = engine.Analyze(context.Background(), records, "fp-a")
	out := engine.Analyze(context.Background(), records, "fp-b")

	assert.False(t, out.Forecast.CacheHit, "different fingerprint must retrain")
	assert.Equal(t, 6, cache.Len())
}

func TestAnalyzeAnomalyTrainFailureIsIsolated(t *testing.T) {
	engine, _ := testEngine(t)

	// constant days: anomaly training rejects the degenerate distribution,
	// forecast and segmentation still succeed
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []types.Record
	for i := 0; i < 14; i++ {
		records = append(records, types.Record{
			types.FieldCustomerID:  "C" + string(rune('A'+i%6)),
			types.FieldOrderID:     "O" + string(rune('A'+i)),
			types.FieldDate:        start.AddDate(0, 0, i),
			types.FieldTotalAmount: 100.0,
		})
	}

	out := engine.Analyze(context.Background(), records, "fp-flat")

	assert.NotEmpty(t, out.AnomalyMeta.Error)
	assert.Empty(t, out.Anomalies)
	assert.NotEmpty(t, out.Forecast.Points, "forecast unaffected by anomaly failure")
	assert.NotEmpty(t, out.Segments.Clusters, "segmentation unaffected by anomaly failure")
}
