package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mutsynchub/poslens/internal/record"
)

var arrived = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseCSV(t *testing.T) {
	input := "Barcode, Quantity ,Sales_Amount\nA1,5,12.50\nB2,3,7.00\n"
	recs, err := ParseCSV(strings.NewReader(input), arrived)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	cols := record.Columns(recs)
	want := []string{"barcode", "quantity", "sales_amount"}
	for i, w := range want {
		if cols[i] != w {
			t.Errorf("column[%d] = %q, want %q", i, cols[i], w)
		}
	}

	if v, _ := recs[0].Get("barcode"); v != "A1" {
		t.Errorf("barcode = %v, want A1", v)
	}
	if v, _ := recs[1].Get("quantity"); record.AsFloat(v) != 3 {
		t.Errorf("quantity = %v, want 3", v)
	}
}

func TestParseCSV_ShortAndEmpty(t *testing.T) {
	recs, err := ParseCSV(strings.NewReader(""), arrived)
	if err != nil || len(recs) != 0 {
		t.Fatalf("empty input: recs=%v err=%v", recs, err)
	}

	recs, err = ParseCSV(strings.NewReader("a,b,c\n1,2\n"), arrived)
	if err != nil {
		t.Fatalf("short row: %v", err)
	}
	if len(recs[0].Fields) != 2 {
		t.Errorf("short row bound %d fields, want 2", len(recs[0].Fields))
	}
}

func TestParseXLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	wb.SetSheetRow(sheet, "A1", &[]any{"SKU", "Qty"})
	wb.SetSheetRow(sheet, "A2", &[]any{"A1", 4})
	wb.SetSheetRow(sheet, "A3", &[]any{"B2", 6})

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	recs, err := ParseXLSX(&buf, arrived)
	if err != nil {
		t.Fatalf("ParseXLSX: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if v, _ := recs[0].Get("sku"); v != "A1" {
		t.Errorf("sku = %v, want A1", v)
	}
	if v, _ := recs[1].Get("qty"); record.AsFloat(v) != 6 {
		t.Errorf("qty = %v, want 6", v)
	}
}

func TestParseUpload_Dispatch(t *testing.T) {
	recs, err := ParseUpload("sales.CSV", strings.NewReader("sku\nA1\n"), arrived)
	if err != nil || len(recs) != 1 {
		t.Errorf("csv dispatch: recs=%v err=%v", recs, err)
	}

	if _, err := ParseUpload("sales.pdf", strings.NewReader(""), arrived); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
