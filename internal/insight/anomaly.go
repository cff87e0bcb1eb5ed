package insight

import (
	"fmt"
	"math"
	"sort"

	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/types"
)

// Days scoring below this robust z-score are not anomalies at all,
// regardless of decile.
const anomalyScoreFloor = 2.0

// anomalyModel holds robust location/spread of the per-day (revenue, orders)
// distribution. Median/MAD rather than mean/std so the anomalies themselves
// don't drag the baseline.
type anomalyModel struct {
	revMedian float64
	revMAD    float64
	ordMedian float64
	ordMAD    float64
}

// AnomalyDetector ranks unusual trading days.
type AnomalyDetector struct {
	minDays int
}

func NewAnomalyDetector(minDays int) *AnomalyDetector {
	return &AnomalyDetector{minDays: minDays}
}

func (a *AnomalyDetector) Kind() modelcache.Kind  { return modelcache.KindAnomaly }
func (a *AnomalyDetector) Method() string         { return "robust_zscore" }
func (a *AnomalyDetector) Samples(ds Dataset) int { return len(ds.Daily) }
func (a *AnomalyDetector) MinSamples() int        { return a.minDays }

func (a *AnomalyDetector) Train(ds Dataset) (modelcache.Artifact, error) {
	n := len(ds.Daily)
	if n == 0 {
		return nil, fmt.Errorf("no daily points")
	}
	revs := make([]float64, n)
	ords := make([]float64, n)
	for i, p := range ds.Daily {
		revs[i] = p.Revenue
		ords[i] = float64(p.Orders)
	}
	m := &anomalyModel{
		revMedian: median(revs),
		ordMedian: median(ords),
	}
	m.revMAD = mad(revs, m.revMedian)
	m.ordMAD = mad(ords, m.ordMedian)
	if m.revMAD == 0 && m.ordMAD == 0 {
		return nil, fmt.Errorf("degenerate distribution: zero spread in revenue and orders")
	}
	return m, nil
}

func (a *AnomalyDetector) Score(artifact modelcache.Artifact, ds Dataset) (any, error) {
	m, ok := artifact.(*anomalyModel)
	if !ok {
		return nil, fmt.Errorf("unexpected artifact type %T", artifact)
	}

	all := make([]scoredDay, 0, len(ds.Daily))
	for _, p := range ds.Daily {
		zr := robustZ(p.Revenue, m.revMedian, m.revMAD)
		zo := robustZ(float64(p.Orders), m.ordMedian, m.ordMAD)
		all = append(all, scoredDay{point: p, score: math.Max(zr, zo), zRev: zr, zOrd: zo})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	// top outlier decile = high severity, next decile = medium; anything
	// past the second decile or under the score floor is not reported
	n := len(all)
	highCut := decileSize(n, 1)
	mediumCut := decileSize(n, 2)

	var out []types.Anomaly
	for i, s := range all {
		if i >= mediumCut || s.score < anomalyScoreFloor {
			break
		}
		severity := "medium"
		if i < highCut {
			severity = "high"
		}
		out = append(out, types.Anomaly{
			Date:     s.point.Date.Format("2006-01-02"),
			Reason:   reasonCode(s, m),
			Severity: severity,
			Score:    round2f(s.score),
			Revenue:  round2f(s.point.Revenue),
			Orders:   s.point.Orders,
		})
	}
	return out, nil
}

type scoredDay struct {
	point DailyPoint
	score float64
	zRev  float64
	zOrd  float64
}

func reasonCode(s scoredDay, m *anomalyModel) string {
	switch {
	case s.point.Revenue > m.revMedian*2:
		return "revenue_spike"
	case s.point.Revenue < m.revMedian*0.5:
		return "revenue_drop"
	case s.zOrd > s.zRev && float64(s.point.Orders) > m.ordMedian:
		return "order_surge"
	default:
		return "unusual_pattern"
	}
}

func decileSize(n, deciles int) int {
	return int(math.Ceil(float64(n)*0.1)) * deciles
}

func robustZ(v, med, madV float64) float64 {
	if madV == 0 {
		return 0
	}
	// 1.4826 scales MAD to std under normality
	return math.Abs(v-med) / (1.4826 * madV)
}

func median(vs []float64) float64 {
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func mad(vs []float64, med float64) float64 {
	devs := make([]float64, len(vs))
	for i, v := range vs {
		devs[i] = math.Abs(v - med)
	}
	return median(devs)
}
