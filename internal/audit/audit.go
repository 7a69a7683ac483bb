// Package audit implements the Audit Log (spec.md §4.8): every mutating
// handler asynchronously submits a record; the package computes the
// hash-chain that makes a shard's history tamper-evident and buffers
// writes that fail to a local durable store for later replay.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/store/model"
)

// Store is the persistence surface Logger needs; postgres.AuditRecords
// satisfies it.
type Store interface {
	Append(ctx context.Context, r *model.AuditRecord) error
	LastEntryHash(ctx context.Context, shard model.Shard) ([]byte, error)
	ListShard(ctx context.Context, shard model.Shard) ([]*model.AuditRecord, error)
}

// Entry is the canonical audit submission shape. internal/ingest and
// internal/verification each define their own same-shaped AuditEntry
// (to avoid importing this package directly); internal/core adapts
// between them and Entry when wiring Logger in as their Auditor.
type Entry struct {
	Service      string
	Action       string
	UserID       idgen.ID
	HasUser      bool
	ResourceKind string
	ResourceID   string
	RequestMeta  map[string]string
	StatusCode   int
	Latency      time.Duration
}

// Logger computes the hash chain and writes AuditRecords. A single mutex
// serialises every write: spec.md §5 only requires total ordering within
// one (service, day) shard, and audit writes are not a high-frequency
// path, so one lock across all shards is the simplest correct
// implementation.
type Logger struct {
	mu     sync.Mutex
	store  Store
	buffer *DurableBuffer
	log    *logging.Logger
}

func NewLogger(store Store, buffer *DurableBuffer, log *logging.Logger) *Logger {
	return &Logger{store: store, buffer: buffer, log: log}
}

// Record computes prev_hash/entry_hash for e and appends it (spec.md
// §4.8). A failed append is captured to the local durable buffer rather
// than propagated as a response-blocking error — "audit writes never
// block the foreground response" — but the error is still returned so a
// caller's own best-effort wrapper (internal/ingest.Service.audit, e.g.)
// can log it.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	return l.recordAt(ctx, e, time.Now())
}

func (l *Logger) recordAt(ctx context.Context, e Entry, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	shard := model.ShardFor(e.Service, now)
	prevHash, err := l.store.LastEntryHash(ctx, shard)
	if err != nil {
		l.bufferFailed(e, now)
		return err
	}

	rec := &model.AuditRecord{
		ID: idgen.New(), Service: e.Service, Action: e.Action, UserID: e.UserID, HasUser: e.HasUser,
		ResourceKind: e.ResourceKind, ResourceID: e.ResourceID, RequestMeta: e.RequestMeta,
		StatusCode: e.StatusCode, Latency: e.Latency, PrevHash: prevHash, CreatedAt: now,
	}
	rec.EntryHash = entryHashFor(prevHash, rec)

	if err := l.store.Append(ctx, rec); err != nil {
		l.bufferFailed(e, now)
		return err
	}
	return nil
}

func (l *Logger) bufferFailed(e Entry, now time.Time) {
	if l.buffer == nil {
		return
	}
	if err := l.buffer.Save(bufferedEntry{Entry: e, At: now}); err != nil && l.log != nil {
		l.log.Error("audit durable buffer write failed", "action", e.Action, "error", err.Error())
	}
}

// DrainBuffer replays every entry the durable buffer holds, recomputing
// each one's chain position at replay time rather than trusting a
// possibly stale prev_hash computed before the outage — a legitimate
// write may have landed on the shard in between. Returns the number of
// entries successfully replayed; entries that fail again stay buffered
// for the next call.
func (l *Logger) DrainBuffer(ctx context.Context) (int, error) {
	if l.buffer == nil {
		return 0, nil
	}
	pending, err := l.buffer.Load()
	if err != nil {
		return 0, err
	}

	var remaining []bufferedEntry
	replayed := 0
	for _, be := range pending {
		if err := l.recordAt(ctx, be.Entry, be.At); err != nil {
			remaining = append(remaining, be)
			continue
		}
		replayed++
	}
	if err := l.buffer.Replace(remaining); err != nil {
		return replayed, err
	}
	return replayed, nil
}
