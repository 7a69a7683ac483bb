package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Job is one durable outbox entry: a submission the Gateway could not
// complete synchronously (spec.md §4.2: "after the ceiling, the gateway
// ... persists the intended operation in a durable outbox").
type Job struct {
	Seq      uint64
	Request  SubmitRequest
	Attempts int
}

// Outbox is a FIFO durable queue backed by goleveldb, mirroring the
// teacher's own embedded KV-store usage (see DESIGN.md) rather than
// an in-memory list: a process restart must not lose a pending ledger
// operation.
type Outbox struct {
	db  *leveldb.DB
	mu  sync.Mutex
	seq uint64
}

// OpenOutbox opens (creating if necessary) the leveldb directory at dir.
func OpenOutbox(dir string) (*Outbox, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open outbox at %s: %w", dir, err)
	}
	o := &Outbox{db: db}
	o.seq, err = o.maxSeq()
	if err != nil {
		db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) Close() error { return o.db.Close() }

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func (o *Outbox) maxSeq() (uint64, error) {
	iter := o.db.NewIterator(nil, nil)
	defer iter.Release()
	var max uint64
	for iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key())
		if seq > max {
			max = seq
		}
	}
	return max, iter.Error()
}

// Enqueue durably appends req to the tail of the queue.
func (o *Outbox) Enqueue(req SubmitRequest) (Job, error) {
	o.mu.Lock()
	o.seq++
	job := Job{Seq: o.seq, Request: req}
	o.mu.Unlock()

	buf, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("ledger: marshal outbox job: %w", err)
	}
	if err := o.db.Put(seqKey(job.Seq), buf, nil); err != nil {
		return Job{}, fmt.Errorf("ledger: persist outbox job: %w", err)
	}
	return job, nil
}

// Peek returns the oldest job without removing it, or ok=false if empty.
func (o *Outbox) Peek() (Job, bool, error) {
	iter := o.db.NewIterator(nil, nil)
	defer iter.Release()
	if !iter.Next() {
		return Job{}, false, iter.Error()
	}
	var job Job
	if err := json.Unmarshal(iter.Value(), &job); err != nil {
		return Job{}, false, fmt.Errorf("ledger: decode outbox job: %w", err)
	}
	return job, true, nil
}

// Remove deletes a completed job from the queue.
func (o *Outbox) Remove(seq uint64) error {
	if err := o.db.Delete(seqKey(seq), nil); err != nil {
		return fmt.Errorf("ledger: remove outbox job %d: %w", seq, err)
	}
	return nil
}

// Requeue persists job with an incremented attempt count, used when a
// flush attempt fails. No attempt limit is applied: FlushOnce requeues
// every failed job.
func (o *Outbox) Requeue(job Job) error {
	job.Attempts++
	buf, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("ledger: marshal requeued job: %w", err)
	}
	return o.db.Put(seqKey(job.Seq), buf, nil)
}

// Depth counts the pending jobs, exposed as a Prometheus gauge
// (internal/metrics.Registry.LedgerOutboxDepth).
func (o *Outbox) Depth() (int, error) {
	iter := o.db.NewIterator(nil, nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n, iter.Error()
}

// All returns every pending job, oldest first; Gateway.HasPending scans
// it for a document's queued operations.
func (o *Outbox) All() ([]Job, error) {
	iter := o.db.NewIterator(nil, nil)
	defer iter.Release()
	var jobs []Job
	for iter.Next() {
		var job Job
		if err := json.Unmarshal(iter.Value(), &job); err != nil {
			return nil, fmt.Errorf("ledger: decode outbox job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, iter.Error()
}
