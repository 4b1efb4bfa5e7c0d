package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mutsynchub/poslens/internal/kpi"
	"github.com/mutsynchub/poslens/internal/storage"
)

type mockNotifier struct {
	publish func(ctx context.Context, res Result) error
}

func (m *mockNotifier) Publish(ctx context.Context, res Result) error {
	return m.publish(ctx, res)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func appendRaw(t *testing.T, s *storage.Store, tenantID, id, payload string, at time.Time) {
	t.Helper()
	err := s.AppendRaw(storage.RawRow{ID: id, TenantID: tenantID, IngestedAt: at, Payload: payload})
	if err != nil {
		t.Fatalf("AppendRaw: %v", err)
	}
}

func TestRun_EmptyBufferIsNoData(t *testing.T) {
	r := NewRunner(openTestStore(t), nil, 0)
	if _, err := r.Run(context.Background(), "t1", "eda"); !errors.Is(err, storage.ErrNoData) {
		t.Fatalf("Run on empty buffer = %v, want ErrNoData", err)
	}
}

func TestRun_FullCycle(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	appendRaw(t, s, "t1", "r1",
		`{"product_id":"A1","quantity":5,"unit_price":10,"total_amount":50,"transaction_id":"T1","store_id":"S1","category":"dairy","expiry_date":"2025-06-05","promo":"0","loss_qty":0,"sale_date":"2025-06-01"}`,
		now.Add(-time.Minute))
	appendRaw(t, s, "t1", "r2",
		`{"product_id":"B2","quantity":3,"unit_price":4,"total_amount":12,"transaction_id":"T2","store_id":"S1","category":"bakery","expiry_date":"2025-08-01","promo":"1","loss_qty":0,"sale_date":"2025-06-01"}`,
		now.Add(-time.Minute))

	var published []Result
	r := NewRunner(s, &mockNotifier{publish: func(_ context.Context, res Result) error {
		published = append(published, res)
		return nil
	}}, 0)
	r.now = func() time.Time { return now }

	res, err := r.Run(context.Background(), "t1", "eda")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Tenant != "t1" || res.Analytic != "eda" {
		t.Errorf("result identity = %+v", res)
	}
	if res.Industry != "supermarket" {
		t.Errorf("industry = %q, want supermarket", res.Industry)
	}
	if res.Report.KPIs.StockOnHand != 8 || res.Report.KPIs.UniqueSKU != 2 {
		t.Errorf("KPIs = %+v", res.Report.KPIs)
	}
	if !res.RanAt.Equal(now) {
		t.Errorf("ran_at = %v, want %v", res.RanAt, now)
	}

	// Ledger entry persisted with the same report.
	entry, err := s.LatestReport("t1")
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if entry.Analytic != "eda" || entry.Industry != "supermarket" {
		t.Errorf("ledger entry = %+v", entry)
	}
	var stored kpi.Report
	if err := json.Unmarshal([]byte(entry.ReportJSON), &stored); err != nil {
		t.Fatalf("decoding stored report: %v", err)
	}
	if stored.KPIs.StockOnHand != 8 {
		t.Errorf("stored stock_on_hand = %d, want 8", stored.KPIs.StockOnHand)
	}

	// Canonical snapshot replaced.
	snap, err := s.ListCanonical("t1")
	if err != nil {
		t.Fatalf("ListCanonical: %v", err)
	}
	if len(snap) != 2 || snap[0].ProductID != "A1" || snap[1].PromoFlag != true {
		t.Errorf("snapshot = %+v", snap)
	}

	if len(published) != 1 || published[0].Tenant != "t1" {
		t.Errorf("published = %+v", published)
	}
}

func TestRun_NotifierFailureDoesNotFailCycle(t *testing.T) {
	s := openTestStore(t)
	appendRaw(t, s, "t1", "r1", `{"sku":"a","qty":1}`, time.Now().UTC())

	r := NewRunner(s, &mockNotifier{publish: func(context.Context, Result) error {
		return errors.New("sync endpoint down")
	}}, 0)

	if _, err := r.Run(context.Background(), "t1", "eda"); err != nil {
		t.Fatalf("Run = %v, want nil despite notifier failure", err)
	}
	if _, err := s.LatestReport("t1"); err != nil {
		t.Errorf("report missing after notifier failure: %v", err)
	}
}

func TestRun_PurgesExpiredRawRows(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	appendRaw(t, s, "t1", "old", `{"sku":"a","qty":1}`, now.Add(-7*time.Hour))
	appendRaw(t, s, "t1", "new", `{"sku":"b","qty":2}`, now.Add(-time.Hour))

	r := NewRunner(s, nil, 6*time.Hour)
	r.now = func() time.Time { return now }

	if _, err := r.Run(context.Background(), "t1", "eda"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, _ := s.ListRaw("t1")
	if len(rows) != 1 || rows[0].ID != "new" {
		t.Errorf("buffer after purge = %v", rows)
	}
}

func TestRun_SkipsUnreadableRows(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	appendRaw(t, s, "t1", "bad", `not json`, now)
	appendRaw(t, s, "t1", "good", `{"sku":"a","qty":3}`, now)

	r := NewRunner(s, nil, 0)
	r.now = func() time.Time { return now }

	res, err := r.Run(context.Background(), "t1", "eda")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report.KPIs.StockOnHand != 3 || res.Report.KPIs.UniqueSKU != 1 {
		t.Errorf("KPIs = %+v, want the good row only", res.Report.KPIs)
	}
}

func TestClassify_CurrentBuffer(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	// sale_date keeps supermarket and retail from tying at zero, so the
	// healthcare profile's own score decides the label.
	appendRaw(t, s, "t1", "r1",
		`{"patient_id":"P1","treatment_cost":120,"diagnosis_code":"J10","drug_name":"x","sale_date":"2026-01-02"}`, now)

	r := NewRunner(s, nil, 0)
	cls, err := r.Classify("t1")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Industry != "healthcare" {
		t.Errorf("industry = %q, want healthcare", cls.Industry)
	}

	// Empty buffer falls back to the retail default.
	cls, err = r.Classify("t2")
	if err != nil {
		t.Fatalf("Classify empty: %v", err)
	}
	if cls.Industry != "retail" || cls.Confidence != 0 {
		t.Errorf("empty classification = %+v", cls)
	}
}
