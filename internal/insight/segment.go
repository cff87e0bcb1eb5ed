package insight

import (
	"fmt"
	"math"
	"sort"

	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/types"
)

// segmentModel is a k-means clustering over scaled RFM features. Seeding is
// deterministic (centroids spread along the monetary axis), so the same
// dataset always trains the same model.
type segmentModel struct {
	centroids [][3]float64
	means     [3]float64
	stds      [3]float64
	k         int
}

// Segmenter clusters customers by recency/frequency/monetary value.
type Segmenter struct {
	minCustomers int
}

func NewSegmenter(minCustomers int) *Segmenter {
	return &Segmenter{minCustomers: minCustomers}
}

func (s *Segmenter) Kind() modelcache.Kind  { return modelcache.KindSegmentation }
func (s *Segmenter) Method() string         { return "rfm_kmeans" }
func (s *Segmenter) Samples(ds Dataset) int { return len(ds.Customers) }
func (s *Segmenter) MinSamples() int        { return s.minCustomers }

func (s *Segmenter) Train(ds Dataset) (modelcache.Artifact, error) {
	n := len(ds.Customers)
	if n == 0 {
		return nil, fmt.Errorf("no customers")
	}

	feats := rfmFeatures(ds.Customers)
	m := &segmentModel{}
	for d := 0; d < 3; d++ {
		var sum float64
		for _, f := range feats {
			sum += f[d]
		}
		m.means[d] = sum / float64(n)
		var ss float64
		for _, f := range feats {
			ss += (f[d] - m.means[d]) * (f[d] - m.means[d])
		}
		m.stds[d] = math.Sqrt(ss / float64(n))
		if m.stds[d] == 0 {
			m.stds[d] = 1
		}
	}
	scaled := make([][3]float64, n)
	for i, f := range feats {
		scaled[i] = m.scale(f)
	}

	k := n / 10
	if k < 3 {
		k = 3
	}
	if k > 5 {
		k = 5
	}
	if k > n {
		k = n
	}
	m.k = k

	// deterministic seeding: order by monetary, take evenly spaced points
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return ds.Customers[order[a]].Monetary < ds.Customers[order[b]].Monetary
	})
	m.centroids = make([][3]float64, k)
	for c := 0; c < k; c++ {
		m.centroids[c] = scaled[order[c*(n-1)/max(k-1, 1)]]
	}

	// Lloyd iterations
	assign := make([]int, n)
	for iter := 0; iter < 50; iter++ {
		moved := false
		for i, f := range scaled {
			best := nearestCentroid(m.centroids, f)
			if best != assign[i] {
				assign[i] = best
				moved = true
			}
		}
		var sums [5][3]float64
		var counts [5]int
		for i, f := range scaled {
			c := assign[i]
			counts[c]++
			for d := 0; d < 3; d++ {
				sums[c][d] += f[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // empty cluster keeps its centroid
			}
			for d := 0; d < 3; d++ {
				m.centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
		if !moved && iter > 0 {
			break
		}
	}

	return m, nil
}

func (s *Segmenter) Score(artifact modelcache.Artifact, ds Dataset) (any, error) {
	m, ok := artifact.(*segmentModel)
	if !ok {
		return nil, fmt.Errorf("unexpected artifact type %T", artifact)
	}

	type clusterAcc struct {
		count     int
		recency   float64
		frequency float64
		monetary  float64
	}
	accs := make([]clusterAcc, m.k)
	var totalMonetary float64
	for _, cust := range ds.Customers {
		f := [3]float64{cust.RecencyDays, float64(cust.Frequency), cust.Monetary}
		c := nearestCentroid(m.centroids, m.scale(f))
		accs[c].count++
		accs[c].recency += cust.RecencyDays
		accs[c].frequency += float64(cust.Frequency)
		accs[c].monetary += cust.Monetary
		totalMonetary += cust.Monetary
	}

	result := types.SegmentationResult{}
	for c, acc := range accs {
		if acc.count == 0 {
			continue
		}
		n := float64(acc.count)
		share := 0.0
		if totalMonetary > 0 {
			share = acc.monetary / totalMonetary * 100
		}
		result.Clusters = append(result.Clusters, types.ClusterSummary{
			ClusterID:     c,
			CustomerCount: acc.count,
			AvgRecency:    round2f(acc.recency / n),
			AvgFrequency:  round2f(acc.frequency / n),
			AvgMonetary:   round2f(acc.monetary / n),
			RevenueShare:  round2f(share),
		})
	}
	sort.Slice(result.Clusters, func(i, j int) bool {
		return result.Clusters[i].RevenueShare > result.Clusters[j].RevenueShare
	})

	result.NamedSegments = nameSegments(ds.Customers)
	return result, nil
}

func (m *segmentModel) scale(f [3]float64) [3]float64 {
	var out [3]float64
	for d := 0; d < 3; d++ {
		out[d] = (f[d] - m.means[d]) / m.stds[d]
	}
	return out
}

func rfmFeatures(customers []CustomerStat) [][3]float64 {
	out := make([][3]float64, len(customers))
	for i, c := range customers {
		out[i] = [3]float64{c.RecencyDays, float64(c.Frequency), c.Monetary}
	}
	return out
}

func nearestCentroid(centroids [][3]float64, f [3]float64) int {
	best, bestDist := 0, math.MaxFloat64
	for c, cent := range centroids {
		var d float64
		for dim := 0; dim < 3; dim++ {
			diff := f[dim] - cent[dim]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// nameSegments classifies every customer through fixed RFM quintile-score
// thresholds. Independent of the k-means model on purpose: names stay
// stable and reproducible even when the clustering retrains differently.
func nameSegments(customers []CustomerStat) []types.NamedSegment {
	n := len(customers)
	if n == 0 {
		return nil
	}

	rScore := quintileScores(customers, func(c CustomerStat) float64 { return -c.RecencyDays })
	fScore := quintileScores(customers, func(c CustomerStat) float64 { return float64(c.Frequency) })
	mScore := quintileScores(customers, func(c CustomerStat) float64 { return c.Monetary })

	type acc struct {
		count    int
		monetary float64
	}
	byName := map[string]*acc{}
	for i, c := range customers {
		name := segmentName(rScore[i], fScore[i], mScore[i])
		a, ok := byName[name]
		if !ok {
			a = &acc{}
			byName[name] = a
		}
		a.count++
		a.monetary += c.Monetary
	}

	out := make([]types.NamedSegment, 0, len(byName))
	for name, a := range byName {
		out = append(out, types.NamedSegment{
			Name:          name,
			CustomerCount: a.count,
			AvgMonetary:   round2f(a.monetary / float64(a.count)),
			PctOfBase:     round2f(float64(a.count) / float64(n) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CustomerCount != out[j].CustomerCount {
			return out[i].CustomerCount > out[j].CustomerCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func segmentName(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return "champions"
	case f >= 4:
		return "loyal"
	case r >= 4:
		return "potential_loyalist"
	case r <= 2 && f >= 3:
		return "at_risk"
	case r <= 2:
		return "hibernating"
	default:
		return "regular"
	}
}

// quintileScores ranks customers on one dimension and maps rank to 1..5
// (5 = best).
func quintileScores(customers []CustomerStat, dim func(CustomerStat) float64) []int {
	n := len(customers)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dim(customers[idx[a]]) < dim(customers[idx[b]]) })

	scores := make([]int, n)
	for rank, i := range idx {
		scores[i] = 1 + rank*5/n
		if scores[i] > 5 {
			scores[i] = 5
		}
	}
	return scores
}
