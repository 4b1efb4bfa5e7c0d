// Package pipeline runs the per-tenant analytics cycle: canonicalize the raw
// buffer, classify the vertical, aggregate KPIs, append to the report ledger.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mutsynchub/poslens/internal/canonical"
	"github.com/mutsynchub/poslens/internal/classify"
	"github.com/mutsynchub/poslens/internal/kpi"
	"github.com/mutsynchub/poslens/internal/record"
	"github.com/mutsynchub/poslens/internal/storage"
)

// DefaultRetention is how long raw rows survive after a completed cycle.
const DefaultRetention = 6 * time.Hour

// Store is the storage surface a cycle needs.
type Store interface {
	ListRaw(tenantID string) ([]storage.RawRow, error)
	ReplaceCanonical(tenantID string, recs []canonical.Record) error
	AppendReport(e storage.ReportEntry) error
	PurgeRawBefore(tenantID string, cutoff time.Time) (int64, error)
}

// Notifier receives finished reports. Delivery is best-effort; errors are
// logged by the runner and never fail the cycle.
type Notifier interface {
	Publish(ctx context.Context, res Result) error
}

// Result is one completed analytics run.
type Result struct {
	Tenant     string     `json:"tenant"`
	Analytic   string     `json:"analytic"`
	Industry   string     `json:"industry"`
	Confidence float64    `json:"confidence"`
	Report     kpi.Report `json:"report"`
	RanAt      time.Time  `json:"ran_at"`
}

// Runner executes analytics cycles with at most one run per tenant at a time.
// Different tenants run concurrently.
type Runner struct {
	store     Store
	notifier  Notifier
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// NewRunner creates a Runner. retention <= 0 defaults to 6h.
func NewRunner(store Store, notifier Notifier, retention time.Duration) *Runner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Runner{
		store:     store,
		notifier:  notifier,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
		tenants:   make(map[string]*sync.Mutex),
	}
}

// Run executes one full cycle for a tenant. An empty raw buffer returns
// storage.ErrNoData so callers can tell "nothing ingested yet" from a
// genuinely all-zero report.
func (r *Runner) Run(ctx context.Context, tenantID, analytic string) (Result, error) {
	lock := r.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	rows, err := r.store.ListRaw(tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("listing raw buffer: %w", err)
	}
	if len(rows) == 0 {
		return Result{}, storage.ErrNoData
	}

	recs := r.decode(tenantID, rows)
	now := r.now()

	snapshot := canonical.Canonicalize(recs)
	if err := r.store.ReplaceCanonical(tenantID, snapshot); err != nil {
		return Result{}, fmt.Errorf("replacing canonical snapshot: %w", err)
	}

	cls := classify.Classify(record.Columns(recs))
	report := kpi.Aggregate(recs, now)

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return Result{}, fmt.Errorf("encoding report: %w", err)
	}
	entry := storage.ReportEntry{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Analytic:   analytic,
		Industry:   cls.Industry,
		Confidence: cls.Confidence,
		ReportJSON: string(reportJSON),
		CreatedAt:  now,
	}
	if err := r.store.AppendReport(entry); err != nil {
		return Result{}, fmt.Errorf("appending report: %w", err)
	}

	if purged, err := r.store.PurgeRawBefore(tenantID, now.Add(-r.retention)); err != nil {
		r.logger.Warn("retention purge failed", "tenant", tenantID, "error", err)
	} else if purged > 0 {
		r.logger.Debug("purged expired raw rows", "tenant", tenantID, "rows", purged)
	}

	res := Result{
		Tenant:     tenantID,
		Analytic:   analytic,
		Industry:   cls.Industry,
		Confidence: cls.Confidence,
		Report:     report,
		RanAt:      now,
	}
	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, res); err != nil {
			r.logger.Warn("report notification failed", "tenant", tenantID, "error", err)
		}
	}
	return res, nil
}

// Classify resolves the tenant's current buffer to an industry without
// running the full cycle.
func (r *Runner) Classify(tenantID string) (classify.Result, error) {
	rows, err := r.store.ListRaw(tenantID)
	if err != nil {
		return classify.Result{}, fmt.Errorf("listing raw buffer: %w", err)
	}
	recs := r.decode(tenantID, rows)
	return classify.Classify(record.Columns(recs)), nil
}

// decode parses stored payloads back into ordered records. Rows that no
// longer parse are skipped with a warning rather than poisoning the cycle.
func (r *Runner) decode(tenantID string, rows []storage.RawRow) []record.Record {
	recs := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := record.DecodeObject([]byte(row.Payload), row.IngestedAt)
		if err != nil {
			r.logger.Warn("skipping unreadable raw row", "tenant", tenantID, "id", row.ID, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

func (r *Runner) tenantLock(tenantID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.tenants[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		r.tenants[tenantID] = lock
	}
	return lock
}
