package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoData signals an empty raw buffer for a tenant. It is distinct from an
// all-zero report: callers use it to tell "no data yet" from a genuinely
// quiet tenant.
var ErrNoData = errors.New("no raw data for tenant")

// RawRow is one appended raw record: the original JSON object (key order
// intact) plus its arrival time. Rows are immutable and deleted only by the
// retention purge.
type RawRow struct {
	ID         string
	TenantID   string
	IngestedAt time.Time
	Payload    string // JSON object stored as text
}

// ReportEntry is one KPI ledger entry for a tenant.
type ReportEntry struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Analytic   string    `json:"analytic"`
	Industry   string    `json:"industry"`
	Confidence float64   `json:"confidence"`
	ReportJSON string    `json:"report"`
	CreatedAt  time.Time `json:"created_at"`
}

// Schedule is a recurring analytic run for a tenant.
type Schedule struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Analytic  string    `json:"analytic"`
	Frequency string    `json:"frequency"` // "daily", "weekly", "monthly"
	NextRun   time.Time `json:"next_run"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NextAfter returns the next run time one cadence past the given completion
// time. Monthly is a plain 30-day hop, matching the scheduler's coarse
// 1-minute granularity.
func (s Schedule) NextAfter(t time.Time) time.Time {
	switch s.Frequency {
	case "weekly":
		return t.Add(7 * 24 * time.Hour)
	case "monthly":
		return t.Add(30 * 24 * time.Hour)
	default:
		return t.Add(24 * time.Hour)
	}
}

// ValidFrequency reports whether f is a supported cadence.
func ValidFrequency(f string) bool {
	switch f {
	case "daily", "weekly", "monthly":
		return true
	}
	return false
}
