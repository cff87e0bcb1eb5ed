package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"sales-insights-go/internal/types"
)

// Fingerprint summarizes a normalized dataset's shape into a stable cache
// key: record count, distribution of the monetary and temporal fields, and
// the mapping-table version. Deliberately NOT a hash of raw content — a
// re-upload with cosmetic differences (header casing, column order, BOM)
// still lands on the same key.
func Fingerprint(records []types.Record, schemaVersion int) string {
	var (
		count            = len(records)
		sum, lo, hi      float64
		seen             int
		minDate, maxDate time.Time
		customers        = make(map[string]struct{})
		products         = make(map[string]struct{})
	)

	for _, rec := range records {
		if amt, ok := rec.Float(types.FieldTotalAmount); ok {
			if seen == 0 || amt < lo {
				lo = amt
			}
			if seen == 0 || amt > hi {
				hi = amt
			}
			sum += amt
			seen++
		}
		if d, ok := rec.Time(types.FieldDate); ok {
			if minDate.IsZero() || d.Before(minDate) {
				minDate = d
			}
			if maxDate.IsZero() || d.After(maxDate) {
				maxDate = d
			}
		}
		if c, ok := rec.String(types.FieldCustomerID); ok {
			customers[c] = struct{}{}
		}
		if p, ok := rec.String(types.FieldProductName); ok {
			products[p] = struct{}{}
		}
	}

	mean := 0.0
	if seen > 0 {
		mean = sum / float64(seen)
	}

	summary := fmt.Sprintf("v%d|n=%d|amt=%.2f/%.2f/%.2f|dates=%s..%s|cust=%d|prod=%d",
		schemaVersion, count, lo, hi, mean,
		minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"),
		len(customers), len(products))

	digest := sha256.Sum256([]byte(summary))
	return hex.EncodeToString(digest[:16])
}
