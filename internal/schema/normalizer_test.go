package schema

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insights-go/internal/types"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	table, err := Load()
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewNormalizer(table, logrus.NewEntry(log))
}

func TestNormalizeStorefrontRow(t *testing.T) {
	n := testNormalizer(t)

	headers := []string{"Customer ID", "Order ID", "Date", "Product Name", "Total Amount", "Quantity"}
	rows := [][]string{{"CUST001", "ORD001", "2024-01-01", "Product A", "100.00", "2"}}

	recs, meta := n.Normalize(headers, rows)
	require.True(t, meta.Success)
	assert.Equal(t, types.FormatStorefront, meta.DetectedFormat)
	assert.Empty(t, meta.MissingRequiredFields)
	assert.Empty(t, meta.SynthesizedFields)

	require.Len(t, recs, 1)
	rec := recs[0]
	id, _ := rec.String(types.FieldCustomerID)
	assert.Equal(t, "CUST001", id)
	order, _ := rec.String(types.FieldOrderID)
	assert.Equal(t, "ORD001", order)
	amount, _ := rec.Float(types.FieldTotalAmount)
	assert.Equal(t, 100.0, amount)
	qty, _ := rec.Int(types.FieldQuantity)
	assert.Equal(t, int64(2), qty)
	date, _ := rec.Time(types.FieldDate)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(date))
	product, _ := rec.String(types.FieldProductName)
	assert.Equal(t, "Product A", product)
}

func TestNormalizeSynthesizesIdentifiers(t *testing.T) {
	n := testNormalizer(t)

	headers := []string{"Date", "Time", "Full Name", "email", "product", "amount", "tax amount", "net revenue", "refunded", "paid"}
	rows := [][]string{
		{"2024-01-01", "10:30", "Jane Doe", "jane@example.com", "Course", "49.00", "0", "44.10", "0", "yes"},
		{"2024-01-02", "11:00", "Joe Bloggs", "joe@example.com", "Course", "49.00", "0", "44.10", "0", "yes"},
	}

	recs, meta := n.Normalize(headers, rows)
	require.True(t, meta.Success)
	assert.Equal(t, types.FormatStorefront, meta.DetectedFormat)
	assert.Equal(t, []string{types.FieldCustomerID, types.FieldOrderID}, meta.SynthesizedFields)
	assert.Equal(t, []string{"paid"}, meta.UnmappedHeaders)

	require.Len(t, recs, 2)
	id0, ok := recs[0].String(types.FieldCustomerID)
	require.True(t, ok)
	assert.NotEmpty(t, id0)
	order0, ok := recs[0].String(types.FieldOrderID)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01-0", order0)

	// same email on a re-upload derives the same customer id
	recs2, _ := n.Normalize(headers, rows)
	id0Again, _ := recs2[0].String(types.FieldCustomerID)
	assert.Equal(t, id0, id0Again)

	// different emails derive different ids
	id1, _ := recs[1].String(types.FieldCustomerID)
	assert.NotEqual(t, id0, id1)
}

func TestNormalizeFailsWithoutSynthesisPath(t *testing.T) {
	n := testNormalizer(t)

	// no order id header and no date to derive one from
	headers := []string{"Customer ID", "Product Name", "Total Amount"}
	rows := [][]string{{"CUST001", "Product A", "100.00"}}

	recs, meta := n.Normalize(headers, rows)
	assert.False(t, meta.Success)
	assert.Nil(t, recs)
	assert.Equal(t, []string{types.FieldOrderID}, meta.MissingRequiredFields)
}

func TestNormalizeRequiredCellEmptyNoSynthesis(t *testing.T) {
	n := testNormalizer(t)

	headers := []string{"Customer ID", "Order ID", "Date", "Product Name", "Total Amount"}
	rows := [][]string{{"CUST001", "ORD001", "2024-01-01", "Product A", ""}}

	recs, meta := n.Normalize(headers, rows)
	assert.False(t, meta.Success)
	assert.Nil(t, recs)
	assert.Equal(t, []string{types.FieldTotalAmount}, meta.MissingRequiredFields)
}

func TestNormalizeRowLevelSynthesis(t *testing.T) {
	n := testNormalizer(t)

	// customer id column exists, one cell is empty but email fills the gap
	headers := []string{"Customer ID", "Order ID", "Date", "Product Name", "Total Amount", "Customer Email"}
	rows := [][]string{
		{"CUST001", "ORD001", "2024-01-01", "A", "10.00", "a@example.com"},
		{"", "ORD002", "2024-01-02", "A", "12.00", "b@example.com"},
	}

	recs, meta := n.Normalize(headers, rows)
	require.True(t, meta.Success)
	assert.Equal(t, []string{types.FieldCustomerID}, meta.SynthesizedFields)
	id, ok := recs[1].String(types.FieldCustomerID)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "CUST001", id)
}

func TestNormalizeOptionalConversionFailureNullsField(t *testing.T) {
	n := testNormalizer(t)

	headers := []string{"Customer ID", "Order ID", "Product Name", "Total Amount", "Quantity"}
	rows := [][]string{{"C1", "O1", "A", "10.00", "lots"}}

	recs, meta := n.Normalize(headers, rows)
	require.True(t, meta.Success)
	_, ok := recs[0].Int(types.FieldQuantity)
	assert.False(t, ok, "unparseable optional cell should be nulled")
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := testNormalizer(t)

	headers := []string{"Date", "Full Name", "email", "product", "amount"}
	rows := [][]string{
		{"2024-01-01", "Jane", "jane@example.com", "Course", "49.00"},
		{"2024-01-02", "Joe", "joe@example.com", "Ebook", "19.00"},
	}

	recs1, meta1 := n.Normalize(headers, rows)
	recs2, meta2 := n.Normalize(headers, rows)
	assert.Equal(t, recs1, recs2)
	assert.Equal(t, meta1, meta2)
}

func TestSynthesizeOrderIDDeterministic(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05-7", SynthesizeOrderID(d, 7))
}

func TestSynthesizeCustomerIDStable(t *testing.T) {
	a := SynthesizeCustomerID("Jane@Example.com ")
	b := SynthesizeCustomerID("jane@example.com")
	assert.Equal(t, a, b, "email normalization should make ids stable")
	assert.NotEqual(t, a, SynthesizeCustomerID("joe@example.com"))
}
