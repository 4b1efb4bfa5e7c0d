package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/mutsynchub/poslens/internal/canonical"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRawBuffer_AppendListOrder(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i, payload := range []string{`{"sku":"a"}`, `{"sku":"b"}`, `{"sku":"c"}`} {
		err := s.AppendRaw(RawRow{
			ID:         string(rune('1' + i)),
			TenantID:   "t1",
			IngestedAt: base.Add(time.Duration(i) * time.Second),
			Payload:    payload,
		})
		if err != nil {
			t.Fatalf("AppendRaw: %v", err)
		}
	}

	rows, err := s.ListRaw("t1")
	if err != nil {
		t.Fatalf("ListRaw: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Payload != `{"sku":"a"}` || rows[2].Payload != `{"sku":"c"}` {
		t.Errorf("rows out of ingestion order: %v", rows)
	}

	other, err := s.ListRaw("t2")
	if err != nil {
		t.Fatalf("ListRaw(t2): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("tenant isolation broken: %v", other)
	}
}

func TestRawBuffer_PurgeByAge(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	s.AppendRaw(RawRow{ID: "old", TenantID: "t1", IngestedAt: base.Add(-7 * time.Hour), Payload: `{}`})
	s.AppendRaw(RawRow{ID: "new", TenantID: "t1", IngestedAt: base.Add(-time.Hour), Payload: `{}`})
	s.AppendRaw(RawRow{ID: "other", TenantID: "t2", IngestedAt: base.Add(-7 * time.Hour), Payload: `{}`})

	n, err := s.PurgeRawBefore("t1", base.Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("PurgeRawBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	rows, _ := s.ListRaw("t1")
	if len(rows) != 1 || rows[0].ID != "new" {
		t.Errorf("t1 buffer = %v", rows)
	}
	// Other tenants' rows are untouched.
	rows, _ = s.ListRaw("t2")
	if len(rows) != 1 {
		t.Errorf("t2 buffer = %v", rows)
	}
}

func TestAppendRawBatch_AllOrNothing(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	rows := []RawRow{
		{ID: "a", TenantID: "t1", IngestedAt: now, Payload: `{}`},
		{ID: "b", TenantID: "t1", IngestedAt: now, Payload: `{}`},
		{ID: "a", TenantID: "t1", IngestedAt: now, Payload: `{}`}, // duplicate PK
	}
	if err := s.AppendRawBatch(rows); err == nil {
		t.Fatal("expected batch with duplicate ID to fail")
	}

	got, _ := s.ListRaw("t1")
	if len(got) != 0 {
		t.Errorf("failed batch left %d rows behind", len(got))
	}

	if err := s.AppendRawBatch(rows[:2]); err != nil {
		t.Fatalf("AppendRawBatch: %v", err)
	}
	got, _ = s.ListRaw("t1")
	if len(got) != 2 {
		t.Errorf("got %d rows, want 2", len(got))
	}
}

func TestReplaceCanonical_WholesaleReplace(t *testing.T) {
	s := openTestStore(t)

	first := []canonical.Record{{ProductID: "A", Qty: 1}, {ProductID: "B", Qty: 2}}
	if err := s.ReplaceCanonical("t1", first); err != nil {
		t.Fatalf("ReplaceCanonical: %v", err)
	}

	second := []canonical.Record{{ProductID: "C", Qty: 3, PromoFlag: true, ExpiryDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}}
	if err := s.ReplaceCanonical("t1", second); err != nil {
		t.Fatalf("ReplaceCanonical (second): %v", err)
	}

	got, err := s.ListCanonical("t1")
	if err != nil {
		t.Fatalf("ListCanonical: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("snapshot has %d rows, want 1 (wholesale replace)", len(got))
	}
	if got[0].ProductID != "C" || !got[0].PromoFlag || got[0].ExpiryDate.IsZero() {
		t.Errorf("snapshot row = %+v", got[0])
	}
	if !got[0].Timestamp.IsZero() {
		t.Errorf("unset timestamp should round-trip as zero, got %v", got[0].Timestamp)
	}
}

func TestLedger_LatestAndNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.LatestReport("t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestReport on empty ledger = %v, want ErrNotFound", err)
	}

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2"} {
		err := s.AppendReport(ReportEntry{
			ID: id, TenantID: "t1", Analytic: "eda", Industry: "supermarket",
			Confidence: 0.9, ReportJSON: `{}`, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendReport: %v", err)
		}
	}

	latest, err := s.LatestReport("t1")
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if latest.ID != "r2" {
		t.Errorf("latest = %q, want r2", latest.ID)
	}

	all, err := s.ListReports("t1", 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(all) != 2 || all[0].ID != "r2" {
		t.Errorf("ListReports = %v", all)
	}
}

func TestSchedules_DueAndAdvance(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	sch := Schedule{
		ID: "s1", TenantID: "t1", Analytic: "eda", Frequency: "daily",
		NextRun: now.Add(-time.Minute), CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateSchedule(sch); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	s.CreateSchedule(Schedule{
		ID: "s2", TenantID: "t1", Analytic: "eda", Frequency: "weekly",
		NextRun: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	})

	due, err := s.DueSchedules(now)
	if err != nil {
		t.Fatalf("DueSchedules: %v", err)
	}
	if len(due) != 1 || due[0].ID != "s1" {
		t.Fatalf("due = %v, want just s1", due)
	}

	next := due[0].NextAfter(now)
	if err := s.AdvanceSchedule("s1", next); err != nil {
		t.Fatalf("AdvanceSchedule: %v", err)
	}
	due, _ = s.DueSchedules(now)
	if len(due) != 0 {
		t.Errorf("advanced schedule still due: %v", due)
	}

	if err := s.DeleteSchedule("s2"); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	if err := s.DeleteSchedule("s2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestScheduleNextAfter(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		freq string
		want time.Duration
	}{
		{"daily", 24 * time.Hour},
		{"weekly", 7 * 24 * time.Hour},
		{"monthly", 30 * 24 * time.Hour},
	}
	for _, c := range cases {
		sch := Schedule{Frequency: c.freq}
		if got := sch.NextAfter(now).Sub(now); got != c.want {
			t.Errorf("NextAfter(%s) = %v, want %v", c.freq, got, c.want)
		}
	}
}

func TestAppliedMigrations(t *testing.T) {
	s := openTestStore(t)
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		t.Fatalf("schema_version query: %v", err)
	}
	if n == 0 {
		t.Error("no migrations recorded")
	}
}
