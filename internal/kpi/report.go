package kpi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Scalars are the single-number KPIs of a report. Percentages are rounded at
// this presentation boundary only; all upstream arithmetic is full
// precision.
type Scalars struct {
	StockOnHand       int64   `json:"stock_on_hand"`
	UniqueSKU         int     `json:"unique_sku"`
	ExpiringNext7Days int     `json:"expiring_next_7_days"`
	PromoLiftPct      float64 `json:"promo_lift_pct"`
	AvgBasket         float64 `json:"avg_basket"`
	ShrinkagePct      float64 `json:"shrinkage_pct"`
	UniqueCustomers   int     `json:"unique_customers"`
}

// Alert is a threshold breach attached to a report.
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// MoverEntry is one SKU in the fast-movers ranking.
type MoverEntry struct {
	SKU string
	Qty float64
}

// Movers is the top-5 SKUs by summed quantity, strictly descending, ties in
// stable first-appearance group order. It marshals as a JSON object whose
// keys keep that ranking order.
type Movers []MoverEntry

// Report is the full KPI output for one aggregation pass.
type Report struct {
	KPIs              Scalars            `json:"kpis"`
	FastMovers        Movers             `json:"fast_movers"`
	CategoryMarginPct map[string]float64 `json:"category_margin_pct"`
	StoreSales        map[string]int64   `json:"store_sales"`
	Alerts            []Alert            `json:"alerts"`
}

func (m Movers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.SKU)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%g", e.Qty)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form. Ranking order inside a JSON object
// is preserved by decoding token-wise.
func (m *Movers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fast_movers: expected object")
	}
	var out Movers
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var qty float64
		if err := dec.Decode(&qty); err != nil {
			return fmt.Errorf("fast_movers[%s]: %w", key, err)
		}
		out = append(out, MoverEntry{SKU: key, Qty: qty})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}
