package insight

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/types"
)

// Options gates each capability's training.
type Options struct {
	ForecastMinDays     int
	ForecastHorizonDays int
	AnomalyMinDays      int
	SegmentMinCustomers int
}

// Insights is the combined model-backed half of a report.
type Insights struct {
	Forecast    types.ForecastResult
	Anomalies   []types.Anomaly
	AnomalyMeta types.CapabilityMeta
	Segments    types.SegmentationResult
	Metrics     types.ModelMetrics
}

// Engine runs the three capabilities through the shared model cache. The
// capabilities are independent of one another; they run concurrently and a
// failure in one never aborts the others.
type Engine struct {
	cache      *modelcache.Cache
	forecaster *Forecaster
	anomaly    *AnomalyDetector
	segmenter  *Segmenter
	log        *logrus.Entry
}

func NewEngine(cache *modelcache.Cache, opts Options, log *logrus.Entry) *Engine {
	return &Engine{
		cache:      cache,
		forecaster: NewForecaster(opts.ForecastMinDays, opts.ForecastHorizonDays),
		anomaly:    NewAnomalyDetector(opts.AnomalyMinDays),
		segmenter:  NewSegmenter(opts.SegmentMinCustomers),
		log:        log,
	}
}

// Analyze builds the shared feature view once and scores all three
// capabilities against it.
func (e *Engine) Analyze(ctx context.Context, records []types.Record, fingerprint string) Insights {
	ds := BuildDataset(records)

	var out Insights
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scored, meta := e.run(gctx, e.forecaster, ds, fingerprint)
		out.Forecast.CapabilityMeta = meta
		if points, ok := scored.([]types.ForecastPoint); ok {
			out.Forecast.Points = points
		}
		return nil
	})
	g.Go(func() error {
		scored, meta := e.run(gctx, e.anomaly, ds, fingerprint)
		out.AnomalyMeta = meta
		if anomalies, ok := scored.([]types.Anomaly); ok {
			out.Anomalies = anomalies
		}
		return nil
	})
	g.Go(func() error {
		scored, meta := e.run(gctx, e.segmenter, ds, fingerprint)
		if seg, ok := scored.(types.SegmentationResult); ok {
			out.Segments = seg
		}
		out.Segments.CapabilityMeta = meta
		return nil
	})

	_ = g.Wait() // the goroutines only report, they never fail the group

	out.Metrics = types.ModelMetrics{
		Capabilities: map[string]types.CapabilityMeta{
			string(modelcache.KindForecast):     out.Forecast.CapabilityMeta,
			string(modelcache.KindAnomaly):      out.AnomalyMeta,
			string(modelcache.KindSegmentation): out.Segments.CapabilityMeta,
		},
		Cache: e.cache.Stats(),
	}
	return out
}

// run drives one capability through the cache: hit → score, miss → train →
// score, training already in flight elsewhere → retry with backoff until the
// artifact lands in the cache.
func (e *Engine) run(ctx context.Context, cap Capability, ds Dataset, fingerprint string) (any, types.CapabilityMeta) {
	start := time.Now()
	meta := types.CapabilityMeta{Method: cap.Method()}
	log := e.log.WithField("capability", string(cap.Kind()))

	key := modelcache.Key{Fingerprint: fingerprint, Capability: cap.Kind()}
	samples := cap.Samples(ds)

	var res modelcache.Result
	attempt := func() error {
		var err error
		res, err = e.cache.GetOrTrain(key, samples, cap.MinSamples(), func() (modelcache.Artifact, error) {
			return cap.Train(ds)
		})
		if errors.Is(err, modelcache.ErrTrainingInFlight) {
			return err // retryable: someone else is training this key
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second

	err := backoff.Retry(attempt, backoff.WithContext(bo, ctx))
	meta.ProcessingMs = time.Since(start).Milliseconds()

	switch {
	case errors.Is(err, modelcache.ErrInsufficientData):
		meta.Skipped = true
		meta.SkipReason = err.Error()
		log.WithField("samples", samples).Info("capability skipped, not enough data")
		return nil, meta
	case err != nil:
		meta.Error = err.Error()
		log.WithError(err).Warn("capability training failed")
		return nil, meta
	}

	meta.CacheHit = res.CacheHit
	meta.TrainingSamples = res.TrainingSamples

	scored, err := cap.Score(res.Artifact, ds)
	meta.ProcessingMs = time.Since(start).Milliseconds()
	if err != nil {
		meta.Error = err.Error()
		log.WithError(err).Warn("capability scoring failed")
		return nil, meta
	}

	log.WithFields(logrus.Fields{
		"cache_hit":     res.CacheHit,
		"processing_ms": meta.ProcessingMs,
	}).Info("capability complete")
	return scored, meta
}
