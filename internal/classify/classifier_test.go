package classify

import (
	"math/rand"
	"testing"

	"github.com/mutsynchub/poslens/internal/schema"
)

func TestClassify_EmptyColumnsSentinel(t *testing.T) {
	r := Classify(nil)
	if r.Industry != schema.IndustryRetail || r.Confidence != 0.0 {
		t.Errorf("Classify(nil) = %+v, want retail/0.0", r)
	}
}

func TestClassify_SupermarketExport(t *testing.T) {
	cols := []string{
		"barcode", "quantity_sold", "unit_price", "line_total",
		"receipt_no", "store_id", "department", "expiry_date",
		"promo_flag", "waste_qty",
	}
	r := Classify(cols)
	if r.Industry != schema.IndustrySupermarket {
		t.Fatalf("industry = %q, want supermarket", r.Industry)
	}
	if r.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 (all 10 groups hit)", r.Confidence)
	}
	if !IsSupermarket(cols) {
		t.Error("IsSupermarket = false, want true")
	}
}

func TestClassify_Healthcare(t *testing.T) {
	// sale_date gives retail a hit so supermarket (0) and retail (0.5) do not
	// tie; healthcare wins on its own 4/4 score.
	cols := []string{"patient_id", "treatment_cost", "diagnosis_code", "drug_name", "sale_date"}
	r := Classify(cols)
	if r.Industry != schema.IndustryHealthcare {
		t.Fatalf("industry = %q, want healthcare", r.Industry)
	}
	if r.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", r.Confidence)
	}
	if IsSupermarket(cols) {
		t.Error("IsSupermarket = true for healthcare columns")
	}
}

func TestClassify_TieBreakForcesSupermarket(t *testing.T) {
	// Full supermarket coverage plus sale_date also satisfies both retail
	// groups, so supermarket and retail tie at 1.0. The tie-break law must
	// pick supermarket no matter which profile scored first.
	cols := []string{
		"product_id", "quantity", "unit_price", "total_amount", "transaction_id",
		"store_id", "category", "expiry_date", "promo", "loss_qty", "sale_date",
	}
	super, retail := profileScore(schema.IndustrySupermarket, cols), profileScore(schema.IndustryRetail, cols)
	if super != retail || super == 0 {
		t.Fatalf("test setup: want tied nonzero scores, got supermarket=%v retail=%v", super, retail)
	}

	r := Classify(cols)
	if r.Industry != schema.IndustrySupermarket {
		t.Errorf("industry = %q, want supermarket on tie", r.Industry)
	}
	if r.Confidence != super {
		t.Errorf("confidence = %v, want %v", r.Confidence, super)
	}
}

func TestClassify_TieBreakOverridesHigherScorer(t *testing.T) {
	// A mixed healthcare/POS export: healthcare scores 3/4, supermarket 5/10
	// and retail 1/2. Supermarket and retail tie at 0.5, so the law forces
	// the supermarket label even though healthcare scored higher; confidence
	// stays the maximum score.
	cols := []string{
		"patient_id", "treatment_cost", "diagnosis_code",
		"product_id", "qty", "unit_price", "total", "store_id",
	}
	super, retail := profileScore(schema.IndustrySupermarket, cols), profileScore(schema.IndustryRetail, cols)
	health := profileScore(schema.IndustryHealthcare, cols)
	if super != retail || super == 0 || health <= super {
		t.Fatalf("test setup: want tied scores below a third winner, got supermarket=%v retail=%v healthcare=%v",
			super, retail, health)
	}

	r := Classify(cols)
	if r.Industry != schema.IndustrySupermarket {
		t.Errorf("industry = %q, want supermarket on tie", r.Industry)
	}
	if r.Confidence != health {
		t.Errorf("confidence = %v, want max score %v", r.Confidence, health)
	}
}

func TestClassify_ZeroScoreTieStillForcesSupermarket(t *testing.T) {
	// Columns matching nothing tie supermarket and retail at 0; the label is
	// still forced to supermarket, with zero confidence.
	r := Classify([]string{"colour", "weight_kg"})
	if r.Industry != schema.IndustrySupermarket {
		t.Errorf("industry = %q, want supermarket on zero tie", r.Industry)
	}
	if r.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", r.Confidence)
	}
}

func TestClassify_OrderInvariant(t *testing.T) {
	cols := []string{"barcode", "quantity", "unit_price", "line_total", "receipt_no", "store_id"}
	want := Classify(cols)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]string(nil), cols...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Classify(shuffled)
		if got != want {
			t.Fatalf("classification changed under permutation: %+v vs %+v (%v)", got, want, shuffled)
		}
	}
}

func TestIsSupermarket_ThresholdBiasesToFalse(t *testing.T) {
	// Only sku + qty groups hit: score 2/10, supermarket may win the label
	// but must not pass the 0.6 confidence bar.
	cols := []string{"barcode", "quantity"}
	if IsSupermarket(cols) {
		t.Error("IsSupermarket = true below threshold")
	}
}

func profileScore(industry string, cols []string) float64 {
	for _, p := range schema.Profiles {
		if p.Industry != industry {
			continue
		}
		hit := 0
		for _, g := range p.Groups {
			if _, ok := schema.FirstMatch(cols, g); ok {
				hit++
			}
		}
		return float64(hit) / float64(len(p.Groups))
	}
	return 0
}
