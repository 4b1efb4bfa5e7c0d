// Package canonical materializes the raw per-tenant buffer into the fixed
// 8-field canonical schema. The output is a snapshot, not a log: every pass
// recomputes it from the entire buffer and wholesale-replaces the previous
// one.
package canonical

import (
	"time"

	"github.com/mutsynchub/poslens/internal/record"
	"github.com/mutsynchub/poslens/internal/schema"
)

// Record is one canonicalized row. Exactly these 8 fields exist; every field
// is individually defaultable (zero time / empty string / 0 / false) when
// its concept did not resolve or its value did not parse.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	ProductID  string    `json:"product_id"`
	Qty        float64   `json:"qty"`
	Total      float64   `json:"total"`
	StoreID    string    `json:"store_id"`
	Category   string    `json:"category"`
	PromoFlag  bool      `json:"promo_flag"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// Canonicalize resolves the 8 canonical fields against the buffer's ordered
// column set and type-coerces every row. Raw columns outside the resolved
// set are dropped. An empty buffer yields an empty snapshot, never an error.
//
// Coercion policy (never raised to the caller):
//   - timestamp / expiry_date: unparsable values become the zero time
//   - qty / total: unparsable or missing values become 0
//   - promo_flag: true iff the whole value, case-folded, is in the exact set
//     {1, true, t, yes}
func Canonicalize(recs []record.Record) []Record {
	if len(recs) == 0 {
		return nil
	}

	bound := schema.Resolve(record.Columns(recs), schema.Canonical)

	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		var c Record
		if v, ok := fieldValue(r, bound, schema.FieldTimestamp); ok {
			c.Timestamp, _ = record.AsTime(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldProductID); ok {
			c.ProductID = record.AsString(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldQty); ok {
			c.Qty = record.AsFloat(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldTotal); ok {
			c.Total = record.AsFloat(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldStoreID); ok {
			c.StoreID = record.AsString(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldCategory); ok {
			c.Category = record.AsString(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldPromoFlag); ok {
			c.PromoFlag = record.AsBool(v)
		}
		if v, ok := fieldValue(r, bound, schema.FieldExpiryDate); ok {
			c.ExpiryDate, _ = record.AsTime(v)
		}
		out = append(out, c)
	}
	return out
}

func fieldValue(r record.Record, bound map[string]string, concept string) (any, bool) {
	col, ok := bound[concept]
	if !ok {
		return nil, false
	}
	return r.Get(col)
}
