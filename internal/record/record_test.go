package record

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeObjects_PreservesKeyOrder(t *testing.T) {
	input := `{"Barcode": "A1", "Quantity": 5, "Store_ID": "S1"}`
	recs, err := DecodeObjects(strings.NewReader(input), time.Now())
	if err != nil {
		t.Fatalf("DecodeObjects: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	want := []string{"barcode", "quantity", "store_id"}
	fields := recs[0].Fields
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i, k := range want {
		if fields[i].Key != k {
			t.Errorf("field %d key = %q, want %q", i, fields[i].Key, k)
		}
	}
	if q, _ := recs[0].Get("quantity"); AsFloat(q) != 5 {
		t.Errorf("quantity = %v, want 5", q)
	}
}

func TestDecodeObjects_Array(t *testing.T) {
	input := `[{"sku": "A"}, {"sku": "B", "qty": 2}]`
	recs, err := DecodeObjects(strings.NewReader(input), time.Now())
	if err != nil {
		t.Fatalf("DecodeObjects: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if v, _ := recs[1].Get("sku"); v != "B" {
		t.Errorf("sku = %v, want B", v)
	}
}

func TestDecodeObjects_RejectsScalars(t *testing.T) {
	if _, err := DecodeObjects(strings.NewReader(`"not an object"`), time.Now()); err == nil {
		t.Fatal("expected error for non-object input")
	}
}

func TestColumns_FirstAppearanceOrder(t *testing.T) {
	now := time.Now()
	recs := []Record{
		New(now, []Field{{Key: "B", Value: 1.0}, {Key: "a", Value: 2.0}}),
		New(now, []Field{{Key: "c", Value: 3.0}, {Key: " B ", Value: 4.0}}),
	}
	got := Columns(recs)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Columns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMarshalJSON_RoundTripsOrder(t *testing.T) {
	rec := New(time.Now(), []Field{
		{Key: "zebra", Value: "z"},
		{Key: "alpha", Value: 1.5},
		{Key: "promo", Value: true},
	})
	data, err := rec.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	back, err := DecodeObject(data, time.Now())
	if err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	for i, f := range rec.Fields {
		if back.Fields[i].Key != f.Key {
			t.Errorf("field %d = %q, want %q", i, back.Fields[i].Key, f.Key)
		}
	}
}

func TestAsFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{5.0, 5},
		{"12.5", 12.5},
		{" 3 ", 3},
		{"garbage", 0},
		{nil, 0},
		{true, 1},
	}
	for _, c := range cases {
		if got := AsFloat(c.in); got != c.want {
			t.Errorf("AsFloat(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAsTime(t *testing.T) {
	if _, ok := AsTime("not a date"); ok {
		t.Error("expected unparsable date to report false")
	}
	if _, ok := AsTime(""); ok {
		t.Error("expected empty string to report false")
	}
	got, ok := AsTime("2025-03-01")
	if !ok {
		t.Fatal("expected 2025-03-01 to parse")
	}
	if got.Year() != 2025 || got.Month() != 3 || got.Day() != 1 {
		t.Errorf("AsTime = %v", got)
	}
	if _, ok := AsTime("2025-03-01T10:30:00Z"); !ok {
		t.Error("expected RFC3339 to parse")
	}
}

func TestAsBool_ExactSetMembership(t *testing.T) {
	truthy := []any{"1", "true", "t", "yes", "TRUE", " Yes ", true, 1.0}
	for _, v := range truthy {
		if !AsBool(v) {
			t.Errorf("AsBool(%v) = false, want true", v)
		}
	}
	falsy := []any{"0", "false", "y", "on", "2", "", nil, 2.0}
	for _, v := range falsy {
		if AsBool(v) {
			t.Errorf("AsBool(%v) = true, want false", v)
		}
	}
}
