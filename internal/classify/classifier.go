// Package classify scores a tenant's raw column set against the per-vertical
// alias profiles and labels the originating industry.
package classify

import "github.com/mutsynchub/poslens/internal/schema"

// Result is an industry label with a confidence score in [0,1]: the fraction
// of the winning profile's alias groups that had at least one matching raw
// column.
type Result struct {
	Industry   string  `json:"industry"`
	Confidence float64 `json:"confidence"`
}

// SupermarketThreshold is the minimum confidence for IsSupermarket. The
// threshold is deliberately conservative: a false "not a supermarket" is
// cheaper than mis-applying supermarket KPIs to another vertical.
const SupermarketThreshold = 0.6

// Classify scores the raw (pre-canonicalization) column set against every
// domain profile and returns the best label.
//
// Tie-break law: whenever supermarket and retail score equal, the label is
// forced to supermarket, even when another profile scored higher. Confidence
// is always the maximum score across profiles.
//
// An empty column set yields the ("retail", 0.0) sentinel.
func Classify(columns []string) Result {
	if len(columns) == 0 {
		return Result{Industry: schema.IndustryRetail, Confidence: 0.0}
	}

	scores := make(map[string]float64, len(schema.Profiles))
	best := Result{Industry: schema.IndustryRetail}
	for _, p := range schema.Profiles {
		hit := 0
		for _, g := range p.Groups {
			if _, ok := schema.FirstMatch(columns, g); ok {
				hit++
			}
		}
		score := float64(hit) / float64(len(p.Groups))
		scores[p.Industry] = score
		if score > best.Confidence {
			best = Result{Industry: p.Industry, Confidence: score}
		}
	}

	if scores[schema.IndustrySupermarket] == scores[schema.IndustryRetail] {
		best.Industry = schema.IndustrySupermarket
	}

	return best
}

// IsSupermarket reports whether the column set classifies as supermarket
// with confidence at or above the threshold.
func IsSupermarket(columns []string) bool {
	r := Classify(columns)
	return r.Industry == schema.IndustrySupermarket && r.Confidence >= SupermarketThreshold
}
