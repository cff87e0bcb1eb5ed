package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insights-go/internal/dataset"
	"sales-insights-go/internal/insight"
	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/schema"
	"sales-insights-go/internal/types"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	table, err := schema.Load()
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	cache := modelcache.New(30*time.Minute, 8, entry)
	return New(table, cache, insight.Options{
		ForecastMinDays:     5,
		ForecastHorizonDays: 7,
		AnomalyMinDays:      5,
		SegmentMinCustomers: 4,
	}, entry)
}

func csvTable(t *testing.T, raw string) dataset.RawTable {
	t.Helper()
	table, err := dataset.ReadCSV(strings.NewReader(raw))
	require.NoError(t, err)
	return table
}

// monthOfSales builds a CSV with enough days and customers for every model
// capability to train.
func monthOfSales(days int) string {
	var b strings.Builder
	b.WriteString("Customer ID,Order ID,Date,Product Name,Total Amount,Referral Source\n")
	order := 0
	for i := 0; i < days; i++ {
		date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		for j := 0; j < 2+i%3; j++ {
			order++
			fmt.Fprintf(&b, "CUST%03d,ORD%04d,%s,Course,%0.2f,newsletter\n",
				order%12, order, date.Format("2006-01-02"), 35.0+float64(order%7)*9)
		}
	}
	return b.String()
}

func TestRunSmallDatasetSkipsModels(t *testing.T) {
	p := testPipeline(t)
	table := csvTable(t, "Customer ID,Order ID,Date,Product Name,Total Amount\n"+
		"CUST001,ORD001,2024-01-01,Product A,100.00\n"+
		"CUST002,ORD002,2024-01-02,Product A,50.00\n")

	res := p.Run(context.Background(), table)

	require.True(t, res.Normalization.Success)
	assert.Equal(t, "storefront", res.Normalization.DetectedFormat)
	require.NotNil(t, res.Report)
	assert.Equal(t, 150.0, res.Report.Totals.TotalRevenue)
	assert.Equal(t, 2, res.Report.Totals.TotalOrders)

	// too little history for any capability
	assert.True(t, res.Report.Forecast.Skipped)
	assert.Empty(t, res.Report.Forecast.Points)
	assert.True(t, res.Report.Segments.Skipped)
}

func TestRunFullReportAndCacheReuse(t *testing.T) {
	p := testPipeline(t)
	table := csvTable(t, monthOfSales(30))

	first := p.Run(context.Background(), table)
	require.True(t, first.Normalization.Success)
	require.NotNil(t, first.Report)
	assert.NotEmpty(t, first.Report.Forecast.Points)
	assert.NotEmpty(t, first.Report.Segments.Clusters)
	assert.False(t, first.Report.Forecast.CacheHit)
	assert.NotEmpty(t, first.Report.ProductBreakdown)
	assert.NotEmpty(t, first.Report.ReferralSources)
	assert.NotEmpty(t, first.Report.MonthlyRevenue)

	// the same dataset lands on the same fingerprint and reuses every model
	second := p.Run(context.Background(), table)
	require.NotNil(t, second.Report)
	assert.True(t, second.Report.Forecast.CacheHit)
	assert.True(t, second.Report.Segments.CacheHit)
	assert.Equal(t, first.Report.Forecast.Points, second.Report.Forecast.Points)
	assert.Equal(t, first.Report.Totals, second.Report.Totals)
}

func TestRunCosmeticDifferencesShareFingerprint(t *testing.T) {
	p := testPipeline(t)

	first := p.Run(context.Background(), csvTable(t, monthOfSales(30)))
	require.NotNil(t, first.Report)

	// same data, different header casing: still a cache hit
	recased := strings.Replace(monthOfSales(30),
		"Customer ID,Order ID,Date,Product Name,Total Amount,Referral Source",
		"customer id,ORDER ID,date,product name,total amount,referral source", 1)
	second := p.Run(context.Background(), csvTable(t, recased))
	require.NotNil(t, second.Report)
	assert.True(t, second.Report.Forecast.CacheHit)
}

func TestRunValidationFailureStopsPipeline(t *testing.T) {
	p := testPipeline(t)
	table := csvTable(t, "Customer ID,Product Name,Total Amount\nCUST001,Product A,100.00\n")

	res := p.Run(context.Background(), table)

	assert.False(t, res.Normalization.Success)
	assert.Equal(t, []string{types.FieldOrderID}, res.Normalization.MissingRequiredFields)
	assert.Nil(t, res.Report, "invalid dataset must not produce a report")
}

func TestRunSynthesizedDataset(t *testing.T) {
	p := testPipeline(t)

	var b strings.Builder
	b.WriteString("Date,email,product,amount\n")
	for i := 0; i < 10; i++ {
		date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		fmt.Fprintf(&b, "%s,buyer%d@example.com,Ebook,%0.2f\n",
			date.Format("2006-01-02"), i%6, 20.0+float64(i))
	}

	res := p.Run(context.Background(), csvTable(t, b.String()))

	require.True(t, res.Normalization.Success)
	assert.Equal(t, []string{types.FieldCustomerID, types.FieldOrderID}, res.Normalization.SynthesizedFields)
	require.NotNil(t, res.Report)
	assert.Equal(t, 10, res.Report.Totals.TotalOrders)
	assert.Equal(t, 6, res.Report.Totals.UniqueCustomers)
}

func TestRunProcessorExport(t *testing.T) {
	p := testPipeline(t)

	var b strings.Builder
	b.WriteString("id,Transaction ID,Created (UTC),Amount,Fee,Amount Refunded,Net Revenue\n")
	for i := 0; i < 8; i++ {
		date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		fmt.Fprintf(&b, "cus_%d,txn_%d,%s,100.00,3.20,0,96.80\n", i, i, date.Format("2006-01-02"))
	}

	res := p.Run(context.Background(), csvTable(t, b.String()))

	require.True(t, res.Normalization.Success)
	assert.Equal(t, "processor", res.Normalization.DetectedFormat)
	require.NotNil(t, res.Report)
	assert.Equal(t, 800.0, res.Report.Totals.TotalRevenue)
	assert.Equal(t, 25.6, res.Report.Totals.TotalFees)
	assert.Equal(t, 774.4, res.Report.Totals.NetRevenue)
}
