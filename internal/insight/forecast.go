package insight

import (
	"fmt"
	"math"
	"time"

	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/types"
)

// forecastModel is a least-squares trend over day index with multiplicative
// day-of-week factors, plus the residual std for confidence bands.
type forecastModel struct {
	intercept float64
	slope     float64
	dowFactor [7]float64
	residStd  float64
	origin    time.Time // day index 0
	lastIndex float64
}

// Forecaster projects near-future daily revenue.
type Forecaster struct {
	minDays int
	horizon int
}

func NewForecaster(minDays, horizonDays int) *Forecaster {
	return &Forecaster{minDays: minDays, horizon: horizonDays}
}

func (f *Forecaster) Kind() modelcache.Kind  { return modelcache.KindForecast }
func (f *Forecaster) Method() string         { return "linear_trend_dow" }
func (f *Forecaster) Samples(ds Dataset) int { return len(ds.Daily) }
func (f *Forecaster) MinSamples() int        { return f.minDays }

func (f *Forecaster) Train(ds Dataset) (modelcache.Artifact, error) {
	n := len(ds.Daily)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 daily points, have %d", n)
	}

	origin := ds.Daily[0].Date
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range ds.Daily {
		xs[i] = p.Date.Sub(origin).Hours() / 24
		ys[i] = p.Revenue
	}

	slope, intercept := leastSquares(xs, ys)

	// multiplicative weekday factors relative to the overall mean
	var total float64
	var dowSum [7]float64
	var dowN [7]int
	for i, p := range ds.Daily {
		total += ys[i]
		w := int(p.Date.Weekday())
		dowSum[w] += ys[i]
		dowN[w]++
	}
	mean := total / float64(n)

	m := &forecastModel{
		intercept: intercept,
		slope:     slope,
		origin:    origin,
		lastIndex: xs[n-1],
	}
	for w := 0; w < 7; w++ {
		m.dowFactor[w] = 1
		if dowN[w] > 0 && mean > 0 {
			m.dowFactor[w] = (dowSum[w] / float64(dowN[w])) / mean
		}
	}

	// residuals against the full model, for the confidence band
	var ss float64
	for i, p := range ds.Daily {
		pred := m.predict(xs[i], p.Date.Weekday())
		ss += (ys[i] - pred) * (ys[i] - pred)
	}
	m.residStd = math.Sqrt(ss / float64(n))

	return m, nil
}

func (f *Forecaster) Score(artifact modelcache.Artifact, ds Dataset) (any, error) {
	m, ok := artifact.(*forecastModel)
	if !ok {
		return nil, fmt.Errorf("unexpected artifact type %T", artifact)
	}

	band := 1.96 * m.residStd
	points := make([]types.ForecastPoint, 0, f.horizon)
	for day := 1; day <= f.horizon; day++ {
		date := ds.Reference.AddDate(0, 0, day)
		x := date.Sub(m.origin).Hours() / 24
		pred := m.predict(x, date.Weekday())
		if pred < 0 {
			pred = 0
		}
		points = append(points, types.ForecastPoint{
			Date:             date.Format("2006-01-02"),
			PredictedRevenue: round2f(pred),
			ConfidenceLower:  round2f(math.Max(0, pred-band)),
			ConfidenceUpper:  round2f(pred + band),
		})
	}
	return points, nil
}

func (m *forecastModel) predict(x float64, weekday time.Weekday) float64 {
	return (m.intercept + m.slope*x) * m.dowFactor[int(weekday)]
}

func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

func round2f(v float64) float64 {
	return math.Round(v*100) / 100
}
