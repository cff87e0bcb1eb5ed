// Package analytics computes the deterministic rollups of a normalized
// dataset. Everything here is a pure function of the records: no state, no
// cache, recomputed per request.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-insights-go/internal/types"
)

// Storefront exports carry no fee columns, so fees are estimated with the
// upstream platform's published pricing: 10% platform cut plus 2.9% + $0.30
// card processing per unit sold.
var (
	platformFeeRate  = decimal.NewFromFloat(0.10)
	cardFeeRate      = decimal.NewFromFloat(0.029)
	cardFeeFixed     = decimal.NewFromFloat(0.30)
	visitorsPerOrder = 20 // placeholder funnel heuristic, see DESIGN.md
)

type productAcc struct {
	revenue  decimal.Decimal
	orders   int
	quantity int64
}

type bucketAcc struct {
	revenue decimal.Decimal
	orders  int
}

// Aggregate rolls a normalized record sequence up into totals, breakdowns
// and the peak-time grid. Monetary sums accumulate as decimals; every ratio
// is derived at the end from already-summed values.
func Aggregate(records []types.Record, meta types.MappingMetadata) types.AnalyticsResult {
	var (
		revenue      = decimal.Zero
		refunded     = decimal.Zero
		fees         = decimal.Zero
		net          = decimal.Zero
		orders       int
		refundCount  int
		units        int64
		byProduct    = map[string]*productAcc{}
		byReferral   = map[string]*bucketAcc{}
		byMonth      = map[string]*bucketAcc{}
		customers    = map[string]struct{}{}
		grid         types.PeakTimeGrid
		processorFmt = meta.DetectedFormat == types.FormatProcessor
		hasFeeCol    = meta.Mapped(types.FieldFee)
		hasNetCol    = meta.Mapped(types.FieldNetAmount)
	)

	for _, rec := range records {
		amount := decimalField(rec, types.FieldTotalAmount)

		if c, ok := rec.String(types.FieldCustomerID); ok {
			customers[c] = struct{}{}
		}

		// refund handling differs per source: the storefront export flags
		// refunds through payment status, the processor export carries an
		// explicit refunded amount
		if processorFmt {
			r := decimalField(rec, types.FieldAmountRefunded)
			if r.IsPositive() {
				refundCount++
				refunded = refunded.Add(r)
			}
		} else if status, ok := rec.String(types.FieldPaymentStatus); ok {
			if !strings.EqualFold(strings.TrimSpace(status), "paid") {
				refundCount++
				refunded = refunded.Add(amount)
				continue // not revenue
			}
		}

		orders++
		revenue = revenue.Add(amount)

		qty := int64(1)
		if q, ok := rec.Int(types.FieldQuantity); ok {
			qty = q
		}
		units += qty

		if hasFeeCol {
			fees = fees.Add(decimalField(rec, types.FieldFee))
		}
		if hasNetCol {
			net = net.Add(decimalField(rec, types.FieldNetAmount))
		}

		if p, ok := rec.String(types.FieldProductName); ok && p != "" {
			acc, exists := byProduct[p]
			if !exists {
				acc = &productAcc{}
				byProduct[p] = acc
			}
			acc.revenue = acc.revenue.Add(amount)
			acc.orders++
			acc.quantity += qty
		}

		if src, ok := rec.String(types.FieldReferralSource); ok && src != "" {
			accumulate(byReferral, src, amount)
		}

		if d, ok := rec.Time(types.FieldDate); ok {
			accumulate(byMonth, d.Format("2006-01"), amount)
			hour, hasHour := orderHour(rec, d)
			if hasHour {
				dow := int(d.Weekday())
				grid.Orders[dow][hour]++
				grid.Revenue[dow][hour] = round2(decimal.NewFromFloat(grid.Revenue[dow][hour]).Add(amount))
			}
		}
	}

	if !hasFeeCol {
		// estimated: platform cut on gross plus card fees per unit
		fees = revenue.Mul(platformFeeRate).
			Add(revenue.Mul(cardFeeRate)).
			Add(cardFeeFixed.Mul(decimal.NewFromInt(units)))
	}
	if !hasNetCol {
		net = revenue.Sub(fees)
	}

	totals := types.Totals{
		TotalRevenue:    round2(revenue),
		TotalOrders:     orders,
		RefundCount:     refundCount,
		RefundAmount:    round2(refunded),
		TotalFees:       round2(fees),
		NetRevenue:      round2(net),
		UniqueCustomers: len(customers),
	}
	if orders > 0 {
		totals.AvgOrderValue = round2(revenue.Div(decimal.NewFromInt(int64(orders))))
		totals.EstimatedVisitors = orders * visitorsPerOrder
		totals.ConversionRate = round2(
			decimal.NewFromInt(int64(orders)).
				Div(decimal.NewFromInt(int64(totals.EstimatedVisitors))).
				Mul(decimal.NewFromInt(100)))
	}

	return types.AnalyticsResult{
		Totals:           totals,
		ProductBreakdown: productStats(byProduct),
		ReferralSources:  referralStats(byReferral),
		MonthlyRevenue:   monthlyStats(byMonth),
		Heatmap:          grid,
	}
}

func decimalField(rec types.Record, field string) decimal.Decimal {
	if f, ok := rec.Float(field); ok {
		return decimal.NewFromFloat(f)
	}
	return decimal.Zero
}

func accumulate(m map[string]*bucketAcc, key string, amount decimal.Decimal) {
	acc, ok := m[key]
	if !ok {
		acc = &bucketAcc{}
		m[key] = acc
	}
	acc.revenue = acc.revenue.Add(amount)
	acc.orders++
}

// orderHour resolves the hour-of-day for the peak-time grid: a dedicated
// time column wins, otherwise a datetime-typed date column with a non-zero
// clock component is used.
func orderHour(rec types.Record, date time.Time) (int, bool) {
	if raw, ok := rec.String(types.FieldTime); ok {
		for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t.Hour(), true
			}
		}
	}
	if date.Hour() != 0 || date.Minute() != 0 {
		return date.Hour(), true
	}
	return 0, false
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func productStats(m map[string]*productAcc) []types.ProductStat {
	out := make([]types.ProductStat, 0, len(m))
	for name, acc := range m {
		out = append(out, types.ProductStat{
			Product:  name,
			Revenue:  round2(acc.revenue),
			Orders:   acc.orders,
			Quantity: acc.quantity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Product < out[j].Product
	})
	return out
}

func referralStats(m map[string]*bucketAcc) []types.ReferralStat {
	out := make([]types.ReferralStat, 0, len(m))
	for src, acc := range m {
		out = append(out, types.ReferralStat{Source: src, Revenue: round2(acc.revenue), Orders: acc.orders})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Source < out[j].Source
	})
	return out
}

func monthlyStats(m map[string]*bucketAcc) []types.MonthlyStat {
	out := make([]types.MonthlyStat, 0, len(m))
	for month, acc := range m {
		out = append(out, types.MonthlyStat{Month: month, Revenue: round2(acc.revenue), Orders: acc.orders})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
