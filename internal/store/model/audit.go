package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// AuditRecord is one entry of the cross-service, hash-chained audit log
// (spec.md §3/§4.8). entry_hash = H(prev_hash ‖ canonical(record)).
type AuditRecord struct {
	ID           idgen.ID
	Service      string
	Action       string
	UserID       idgen.ID
	HasUser      bool
	ResourceKind string
	ResourceID   string
	RequestMeta  map[string]string
	StatusCode   int
	Latency      time.Duration
	PrevHash     []byte
	EntryHash    []byte
	CreatedAt    time.Time
}

// Shard identifies the (service, day) grouping that an audit chain is
// verified over independently (spec.md §5: "audit records for a single
// (service, day) shard are totally ordered").
type Shard struct {
	Service string
	Day     string // YYYY-MM-DD, UTC
}

// ShardFor derives the shard an AuditRecord belongs to.
func ShardFor(service string, at time.Time) Shard {
	return Shard{Service: service, Day: at.UTC().Format("2006-01-02")}
}
