package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mutsynchub/poslens/internal/record"
	"github.com/mutsynchub/poslens/internal/storage"
)

// RawAppender persists a batch of raw rows atomically.
type RawAppender interface {
	AppendRawBatch(rows []storage.RawRow) error
}

// Event is the stream envelope. Only "sale" events carry POS rows; everything
// else (heartbeats, acks) is dropped at the door.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub buffers stream events per tenant and flushes them to storage in
// micro-batches: when a buffer reaches flushSize, or when its newest record
// is older than maxStale. A failed append keeps the batch buffered so no
// record is dropped or written twice.
type Hub struct {
	store     RawAppender
	flushSize int
	maxStale  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	buffers map[string]*tenantBuffer
}

type tenantBuffer struct {
	mu   sync.Mutex
	recs []record.Record
}

// NewHub creates a Hub. flushSize <= 0 defaults to 100, maxStale <= 0 to 3s.
func NewHub(store RawAppender, flushSize int, maxStale time.Duration) *Hub {
	if flushSize <= 0 {
		flushSize = 100
	}
	if maxStale <= 0 {
		maxStale = 3 * time.Second
	}
	return &Hub{
		store:     store,
		flushSize: flushSize,
		maxStale:  maxStale,
		logger:    slog.Default(),
		buffers:   make(map[string]*tenantBuffer),
	}
}

// Offer admits one stream event for a tenant. Non-sale events are ignored
// without error. A full buffer is flushed before Offer returns.
func (h *Hub) Offer(tenantID string, ev Event, arrivedAt time.Time) error {
	if ev.Event != "sale" {
		return nil
	}
	rec, err := record.DecodeObject(ev.Data, arrivedAt)
	if err != nil {
		return fmt.Errorf("decoding sale event: %w", err)
	}

	buf := h.buffer(tenantID)
	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.recs = append(buf.recs, rec)
	if len(buf.recs) >= h.flushSize {
		return h.flushLocked(tenantID, buf)
	}
	return nil
}

// Run sweeps stale buffers once a second until ctx is cancelled, then makes a
// final sweep so shutdown does not strand buffered records.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.FlushAll()
			return
		case now := <-ticker.C:
			h.Sweep(now)
		}
	}
}

// Sweep flushes every tenant buffer whose newest record is older than the
// staleness window. Staleness is measured against the record's own arrival
// time, not the sweep schedule.
func (h *Hub) Sweep(now time.Time) {
	for tenantID, buf := range h.snapshot() {
		buf.mu.Lock()
		if n := len(buf.recs); n > 0 && now.Sub(buf.recs[n-1].ArrivedAt) > h.maxStale {
			if err := h.flushLocked(tenantID, buf); err != nil {
				h.logger.Warn("stream flush failed, batch retained",
					"tenant", tenantID, "buffered", len(buf.recs), "error", err)
			}
		}
		buf.mu.Unlock()
	}
}

// FlushAll drains every buffer regardless of size or age.
func (h *Hub) FlushAll() {
	for tenantID, buf := range h.snapshot() {
		buf.mu.Lock()
		if err := h.flushLocked(tenantID, buf); err != nil {
			h.logger.Warn("stream flush failed, batch retained",
				"tenant", tenantID, "buffered", len(buf.recs), "error", err)
		}
		buf.mu.Unlock()
	}
}

// Buffered returns the number of records currently held for a tenant.
func (h *Hub) Buffered(tenantID string) int {
	buf := h.buffer(tenantID)
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return len(buf.recs)
}

func (h *Hub) buffer(tenantID string) *tenantBuffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.buffers[tenantID]
	if !ok {
		buf = &tenantBuffer{}
		h.buffers[tenantID] = buf
	}
	return buf
}

func (h *Hub) snapshot() map[string]*tenantBuffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]*tenantBuffer, len(h.buffers))
	for k, v := range h.buffers {
		out[k] = v
	}
	return out
}

// flushLocked writes the buffer as one batch and clears it on success only.
// Callers hold buf.mu, so no record can slip in between the append and the
// clear.
func (h *Hub) flushLocked(tenantID string, buf *tenantBuffer) error {
	if len(buf.recs) == 0 {
		return nil
	}
	rows, err := RawRows(tenantID, buf.recs)
	if err != nil {
		return err
	}
	if err := h.store.AppendRawBatch(rows); err != nil {
		return fmt.Errorf("appending stream batch: %w", err)
	}
	buf.recs = nil
	return nil
}

// RawRows converts decoded records into storable raw rows, serializing each
// back to JSON with its field order intact.
func RawRows(tenantID string, recs []record.Record) ([]storage.RawRow, error) {
	rows := make([]storage.RawRow, 0, len(recs))
	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding record: %w", err)
		}
		rows = append(rows, storage.RawRow{
			ID:         uuid.New().String(),
			TenantID:   tenantID,
			IngestedAt: rec.ArrivedAt,
			Payload:    string(payload),
		})
	}
	return rows, nil
}
