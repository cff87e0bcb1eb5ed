// internal/types/report.go
package types

// --------------------------------------------
// FINAL output delivered to the caller
// --------------------------------------------
type Report struct {
	Totals           Totals             `json:"totals"`
	ProductBreakdown []ProductStat      `json:"product_breakdown"`
	ReferralSources  []ReferralStat     `json:"referral_sources"`
	MonthlyRevenue   []MonthlyStat      `json:"monthly_revenue"`
	Heatmap          PeakTimeGrid       `json:"heatmap"`
	Forecast         ForecastResult     `json:"forecast"`
	Anomalies        []Anomaly          `json:"anomalies"`
	Segments         SegmentationResult `json:"segments"`
	ModelMetrics     ModelMetrics       `json:"model_metrics"`
}

// --------------------------------------------
// Deterministic rollups
// --------------------------------------------
type Totals struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalOrders       int     `json:"total_orders"`
	RefundCount       int     `json:"refund_count"`
	RefundAmount      float64 `json:"refund_amount"`
	TotalFees         float64 `json:"total_fees"`
	NetRevenue        float64 `json:"net_revenue"`
	AvgOrderValue     float64 `json:"avg_order_value"`
	UniqueCustomers   int     `json:"unique_customers"`
	EstimatedVisitors int     `json:"estimated_visitors"`
	ConversionRate    float64 `json:"conversion_rate"`
}

type ProductStat struct {
	Product  string  `json:"product"`
	Revenue  float64 `json:"revenue"`
	Orders   int     `json:"orders"`
	Quantity int64   `json:"quantity"`
}

type ReferralStat struct {
	Source  string  `json:"source"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type MonthlyStat struct {
	Month   string  `json:"month"` // YYYY-MM
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// PeakTimeGrid is a day-of-week (Sunday=0) by hour-of-day intensity grid.
type PeakTimeGrid struct {
	Orders  [7][24]int     `json:"orders"`
	Revenue [7][24]float64 `json:"revenue"`
}

// AnalyticsResult holds everything the deterministic aggregator produces.
// Stateless: recomputed on every request, never cached.
type AnalyticsResult struct {
	Totals           Totals         `json:"totals"`
	ProductBreakdown []ProductStat  `json:"product_breakdown"`
	ReferralSources  []ReferralStat `json:"referral_sources"`
	MonthlyRevenue   []MonthlyStat  `json:"monthly_revenue"`
	Heatmap          PeakTimeGrid   `json:"heatmap"`
}

// --------------------------------------------
// Model-backed insights
// --------------------------------------------

// CapabilityMeta lets the caller tell "fast because cached" from
// "fast because trivial".
type CapabilityMeta struct {
	Method          string `json:"method"`
	CacheHit        bool   `json:"cache_hit"`
	ProcessingMs    int64  `json:"processing_time_ms"`
	TrainingSamples int    `json:"training_samples,omitempty"`
	Skipped         bool   `json:"skipped,omitempty"`
	SkipReason      string `json:"skip_reason,omitempty"`
	Error           string `json:"error,omitempty"`
}

type ForecastPoint struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	PredictedRevenue float64 `json:"predicted_revenue"`
	ConfidenceLower  float64 `json:"confidence_lower"`
	ConfidenceUpper  float64 `json:"confidence_upper"`
}

type ForecastResult struct {
	Points []ForecastPoint `json:"points"`
	CapabilityMeta
}

type Anomaly struct {
	Date     string  `json:"date"`
	Reason   string  `json:"reason"`   // revenue_spike, revenue_drop, order_surge, unusual_pattern
	Severity string  `json:"severity"` // high, medium
	Score    float64 `json:"score"`
	Revenue  float64 `json:"revenue"`
	Orders   int     `json:"orders"`
}

type ClusterSummary struct {
	ClusterID     int     `json:"cluster_id"`
	CustomerCount int     `json:"customer_count"`
	AvgRecency    float64 `json:"avg_recency_days"`
	AvgFrequency  float64 `json:"avg_frequency"`
	AvgMonetary   float64 `json:"avg_monetary"`
	RevenueShare  float64 `json:"revenue_share_pct"`
}

// NamedSegment is the rule-based RFM classification, independent of the
// clustering model so segment names stay stable across retrains.
type NamedSegment struct {
	Name          string  `json:"name"`
	CustomerCount int     `json:"customer_count"`
	AvgMonetary   float64 `json:"avg_monetary"`
	PctOfBase     float64 `json:"pct_of_customers"`
}

type SegmentationResult struct {
	Clusters      []ClusterSummary `json:"clusters"`
	NamedSegments []NamedSegment   `json:"named_segments"`
	CapabilityMeta
}

type CacheStats struct {
	Entries   int     `json:"entries"`
	MaxSize   int     `json:"max_size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
}

type ModelMetrics struct {
	Capabilities map[string]CapabilityMeta `json:"capabilities"`
	Cache        CacheStats                `json:"cache"`
}
