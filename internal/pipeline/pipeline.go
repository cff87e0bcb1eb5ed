// internal/pipeline/pipeline.go
package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sales-insights-go/internal/analytics"
	"sales-insights-go/internal/dataset"
	"sales-insights-go/internal/insight"
	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/schema"
	"sales-insights-go/internal/types"
)

// Result is the combined outcome of one upload: the normalization contract
// always, the report only when normalization succeeded.
type Result struct {
	Normalization types.NormalizationResult `json:"normalization"`
	Report        *types.Report             `json:"report,omitempty"`
}

// Pipeline wires the normalization engine to the aggregator and the insight
// engine. One synchronous pass per upload: normalize → (aggregate ∥ model
// insights) → assemble.
type Pipeline struct {
	normalizer    *schema.Normalizer
	engine        *insight.Engine
	schemaVersion int
	log           *logrus.Entry
}

func New(table *schema.Table, cache *modelcache.Cache, opts insight.Options, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		normalizer:    schema.NewNormalizer(table, log.WithField("component", "normalizer")),
		engine:        insight.NewEngine(cache, opts, log.WithField("component", "insight")),
		schemaVersion: table.Version(),
		log:           log.WithField("component", "pipeline"),
	}
}

// Run processes one raw table end to end. A dataset that fails validation
// stops here; insight capability failures are reported per capability and
// never sink the whole result.
func (p *Pipeline) Run(ctx context.Context, table dataset.RawTable) Result {
	rows, meta := p.normalizer.Normalize(table.Headers, table.Rows)
	norm := schema.Result(rows, meta)
	if !meta.Success {
		return Result{Normalization: norm}
	}

	fingerprint := dataset.Fingerprint(rows, p.schemaVersion)
	p.log.WithFields(logrus.Fields{
		"rows":        len(rows),
		"fingerprint": fingerprint,
	}).Info("dataset normalized, computing report")

	// the aggregator and the model capabilities share nothing mutable, so
	// they run side by side
	var (
		agg types.AnalyticsResult
		ins insight.Insights
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agg = analytics.Aggregate(rows, meta)
		return nil
	})
	g.Go(func() error {
		ins = p.engine.Analyze(gctx, rows, fingerprint)
		return nil
	})
	_ = g.Wait()

	return Result{
		Normalization: norm,
		Report: &types.Report{
			Totals:           agg.Totals,
			ProductBreakdown: agg.ProductBreakdown,
			ReferralSources:  agg.ReferralSources,
			MonthlyRevenue:   agg.MonthlyRevenue,
			Heatmap:          agg.Heatmap,
			Forecast:         ins.Forecast,
			Anomalies:        ins.Anomalies,
			Segments:         ins.Segments,
			ModelMetrics:     ins.Metrics,
		},
	}
}
