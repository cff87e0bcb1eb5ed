// Package insight orchestrates the three model capabilities (forecast,
// anomaly detection, customer segmentation) through the model cache and
// turns their numeric output into structured, ranked results.
package insight

import (
	"sort"
	"strings"
	"time"

	"sales-insights-go/internal/types"
)

// DailyPoint is one day of trading: the unit both the forecaster and the
// anomaly detector train on.
type DailyPoint struct {
	Date    time.Time
	Revenue float64
	Orders  int
}

// CustomerStat carries the RFM features for one customer.
type CustomerStat struct {
	ID          string
	RecencyDays float64
	Frequency   int
	Monetary    float64
}

// Dataset is the feature view the capabilities share. Built once per
// request, read-only afterwards.
type Dataset struct {
	Daily     []DailyPoint // sorted ascending by date
	Customers []CustomerStat
	Reference time.Time // latest order date; recency + forecast origin
}

// BuildDataset derives the daily series and per-customer RFM features from
// normalized records. Refunded storefront rows are excluded, matching the
// aggregator's revenue definition.
func BuildDataset(records []types.Record) Dataset {
	type custAcc struct {
		orders int
		spent  float64
		last   time.Time
	}
	daily := map[time.Time]*DailyPoint{}
	customers := map[string]*custAcc{}
	var reference time.Time

	for _, rec := range records {
		if status, ok := rec.String(types.FieldPaymentStatus); ok {
			if !strings.EqualFold(strings.TrimSpace(status), "paid") {
				continue
			}
		}
		date, ok := rec.Time(types.FieldDate)
		if !ok {
			continue
		}
		day := date.Truncate(24 * time.Hour)
		amount, _ := rec.Float(types.FieldTotalAmount)

		p, exists := daily[day]
		if !exists {
			p = &DailyPoint{Date: day}
			daily[day] = p
		}
		p.Revenue += amount
		p.Orders++

		if day.After(reference) {
			reference = day
		}

		if id, ok := rec.String(types.FieldCustomerID); ok && id != "" {
			acc, exists := customers[id]
			if !exists {
				acc = &custAcc{}
				customers[id] = acc
			}
			acc.orders++
			acc.spent += amount
			if day.After(acc.last) {
				acc.last = day
			}
		}
	}

	ds := Dataset{Reference: reference}
	for _, p := range daily {
		ds.Daily = append(ds.Daily, *p)
	}
	sort.Slice(ds.Daily, func(i, j int) bool { return ds.Daily[i].Date.Before(ds.Daily[j].Date) })

	for id, acc := range customers {
		ds.Customers = append(ds.Customers, CustomerStat{
			ID:          id,
			RecencyDays: reference.Sub(acc.last).Hours() / 24,
			Frequency:   acc.orders,
			Monetary:    acc.spent,
		})
	}
	sort.Slice(ds.Customers, func(i, j int) bool { return ds.Customers[i].ID < ds.Customers[j].ID })

	return ds
}
