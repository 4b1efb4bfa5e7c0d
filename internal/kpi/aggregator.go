// Package kpi computes the operational KPI report over an alias-resolved
// record set. Semantics around defaults, divide-by-zero and rounding are
// contractual: an unresolved concept zeroes its dependent KPIs, a zero
// denominator short-circuits to 0.0, and ratios round only at the
// presentation boundary.
package kpi

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mutsynchub/poslens/internal/record"
	"github.com/mutsynchub/poslens/internal/schema"
)

// expiryHorizon is the "expiring soon" window. A record counts when its
// expiry date, floored to whole days from now, is at most 7, that is
// strictly less than 8 days out. Past dates count too.
const expiryHorizon = 8 * 24 * time.Hour

// Aggregate computes the full KPI report for the buffer at evaluation time
// now. The record set may be raw (any vendor schema) or canonical; both
// resolve through the same metric alias table.
func Aggregate(recs []record.Record, now time.Time) Report {
	cols := record.Columns(recs)
	bound := schema.Resolve(cols, schema.Metric)

	rep := Report{
		CategoryMarginPct: map[string]float64{},
		StoreSales:        map[string]int64{},
		Alerts:            []Alert{},
	}

	skuCol, hasSKU := bound[schema.MetricSKU]
	qtyCol, hasQty := bound[schema.MetricQty]
	expiryCol, hasExpiry := bound[schema.MetricExpiry]
	promoCol, hasPromo := bound[schema.MetricPromo]
	salesCol, hasSales := bound[schema.MetricSales]
	transCol, hasTrans := bound[schema.MetricTransaction]
	storeCol, hasStore := bound[schema.MetricStore]
	catCol, hasCat := bound[schema.MetricCategory]
	lossCol, hasLoss := bound[schema.MetricLoss]
	custCol, hasCust := bound[schema.MetricCustomer]
	priceCol, hasPrice := bound[schema.MetricPrice]
	costCol, hasCost := bound[schema.MetricCost]

	// Stock on hand and SKU breadth.
	if hasQty {
		var sum float64
		for _, r := range recs {
			if v, ok := r.Get(qtyCol); ok {
				sum += record.AsFloat(v)
			}
		}
		rep.KPIs.StockOnHand = int64(sum)
	}
	if hasSKU {
		rep.KPIs.UniqueSKU = distinct(recs, skuCol)
	}

	// Expiry window.
	if hasExpiry {
		for _, r := range recs {
			v, ok := r.Get(expiryCol)
			if !ok {
				continue
			}
			if t, parsed := record.AsTime(v); parsed && t.Sub(now) < expiryHorizon {
				rep.KPIs.ExpiringNext7Days++
			}
		}
	}

	// Promo lift. Membership is decided on the first character of the promo
	// value: 0/F/f selects the baseline, 1/T/t the promo set; anything else
	// is excluded from both.
	var lift float64
	if hasPromo && hasSales {
		var baseSum, promoSum float64
		var baseN, promoN int
		for _, r := range recs {
			pv, ok := r.Get(promoCol)
			if !ok {
				continue
			}
			sales := record.AsFloat(valueOrNil(r, salesCol))
			switch firstChar(record.AsString(pv)) {
			case '0', 'F', 'f':
				baseSum += sales
				baseN++
			case '1', 'T', 't':
				promoSum += sales
				promoN++
			}
		}
		if baseN > 0 && promoN > 0 {
			baseMean := baseSum / float64(baseN)
			if baseMean != 0 {
				lift = (promoSum/float64(promoN) - baseMean) / baseMean * 100
			}
		}
	}
	rep.KPIs.PromoLiftPct = round1(lift)

	// Average basket: mean of per-transaction summed sales.
	if hasTrans && hasSales {
		sums, order := groupSums(recs, transCol, salesCol)
		if len(order) > 0 {
			var total float64
			for _, k := range order {
				total += sums[k]
			}
			rep.KPIs.AvgBasket = round2(total / float64(len(order)))
		}
	}

	// Shrinkage. The qty-sum-zero guard is load-bearing: loss with no
	// recorded stock must yield 0.0, not a fault.
	var shrink float64
	if hasLoss && hasQty {
		var lossSum, qtySum float64
		for _, r := range recs {
			if v, ok := r.Get(lossCol); ok {
				lossSum += record.AsFloat(v)
			}
			if v, ok := r.Get(qtyCol); ok {
				qtySum += record.AsFloat(v)
			}
		}
		if qtySum != 0 {
			shrink = lossSum / qtySum * 100
		}
	}
	rep.KPIs.ShrinkagePct = round2(shrink)

	// Fast movers: top-5 SKUs by summed qty, descending, ties stable in
	// first-appearance order.
	if hasSKU && hasQty {
		sums, order := groupSums(recs, skuCol, qtyCol)
		sort.SliceStable(order, func(i, j int) bool { return sums[order[i]] > sums[order[j]] })
		if len(order) > 5 {
			order = order[:5]
		}
		for _, k := range order {
			rep.FastMovers = append(rep.FastMovers, MoverEntry{SKU: k, Qty: sums[k]})
		}
	}

	// Gross margin by category, 1dp. A zero price contributes margin 0
	// rather than dividing by zero.
	if hasCat && hasPrice && hasCost {
		marginSum := map[string]float64{}
		marginN := map[string]int{}
		for _, r := range recs {
			cv, ok := r.Get(catCol)
			if !ok {
				continue
			}
			cat := record.AsString(cv)
			if cat == "" {
				continue
			}
			price := record.AsFloat(valueOrNil(r, priceCol))
			cost := record.AsFloat(valueOrNil(r, costCol))
			var margin float64
			if price != 0 {
				margin = (price - cost) / price * 100
			}
			marginSum[cat] += margin
			marginN[cat]++
		}
		for cat, sum := range marginSum {
			rep.CategoryMarginPct[cat] = round1(sum / float64(marginN[cat]))
		}
	}

	// Customer reach.
	if hasCust {
		rep.KPIs.UniqueCustomers = distinct(recs, custCol)
	}

	// Store performance, rounded to whole currency units.
	if hasStore && hasSales {
		sums, _ := groupSums(recs, storeCol, salesCol)
		for store, sum := range sums {
			rep.StoreSales[store] = int64(math.Round(sum))
		}
	}

	// Alerts evaluate on full-precision values, before presentation
	// rounding.
	if rep.KPIs.ExpiringNext7Days > 0 {
		rep.Alerts = append(rep.Alerts, Alert{
			Type:     "expiry",
			Severity: "high",
			Message:  fmt.Sprintf("%d SKUs expire ≤7 days", rep.KPIs.ExpiringNext7Days),
		})
	}
	if shrink > 1 {
		rep.Alerts = append(rep.Alerts, Alert{
			Type:     "shrinkage",
			Severity: "med",
			Message:  fmt.Sprintf("Shrinkage %.1f %%", shrink),
		})
	}
	if lift < 0 {
		rep.Alerts = append(rep.Alerts, Alert{
			Type:     "promo",
			Severity: "low",
			Message:  "Promo discount deeper than lift",
		})
	}

	return rep
}

// distinct counts distinct non-empty string renderings of a column.
func distinct(recs []record.Record, col string) int {
	seen := make(map[string]struct{})
	for _, r := range recs {
		v, ok := r.Get(col)
		if !ok {
			continue
		}
		s := record.AsString(v)
		if s == "" {
			continue
		}
		seen[s] = struct{}{}
	}
	return len(seen)
}

// groupSums sums valueCol grouped by the string rendering of keyCol,
// returning group keys in first-appearance order. Records with a missing or
// empty key are excluded.
func groupSums(recs []record.Record, keyCol, valueCol string) (map[string]float64, []string) {
	sums := make(map[string]float64)
	var order []string
	for _, r := range recs {
		kv, ok := r.Get(keyCol)
		if !ok {
			continue
		}
		key := record.AsString(kv)
		if key == "" {
			continue
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] += record.AsFloat(valueOrNil(r, valueCol))
	}
	return sums, order
}

func valueOrNil(r record.Record, col string) any {
	v, _ := r.Get(col)
	return v
}

func firstChar(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }
