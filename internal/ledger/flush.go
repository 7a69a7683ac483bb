package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// FlushOnce drains the oldest outbox job against the real ledger client.
// On success it persists a brand-new CONFIRMED transaction rather than
// mutating any earlier SIMULATED record (spec.md §4.2: "responses are
// never silently promoted — re-registration happens when the ledger is
// reachable and emits a new CONFIRMED record"). Returns false when the
// outbox is empty.
func (g *Gateway) FlushOnce(ctx context.Context) (bool, error) {
	job, ok, err := g.outbox.Peek()
	if err != nil {
		return false, fmt.Errorf("ledger: peek outbox: %w", err)
	}
	if !ok {
		return false, nil
	}

	if !g.client.Reachable(ctx) {
		return true, ErrUnavailable
	}

	resp, err := g.client.Submit(ctx, job.Request)
	if err != nil {
		if requeueErr := g.outbox.Requeue(job); requeueErr != nil {
			return true, fmt.Errorf("ledger: requeue failed job %d: %w", job.Seq, requeueErr)
		}
		return true, fmt.Errorf("ledger: flush job %d: %w", job.Seq, err)
	}

	documentID, parseErr := idgen.Parse(job.Request.DocumentID)
	if parseErr != nil {
		return true, fmt.Errorf("ledger: parse document id in outbox job %d: %w", job.Seq, parseErr)
	}
	tx := &model.LedgerTransaction{
		TxID:         resp.TxID,
		DocumentID:   documentID,
		Kind:         model.LedgerTxKind(job.Request.Kind),
		Block:        resp.Block,
		BlockHash:    resp.BlockHash,
		PayloadHash:  job.Request.PayloadHash,
		Endorsements: toModelEndorsements(resp.Endorsements),
		DedupKey:     job.Request.DedupKey + ":flushed",
		SubmittedAt:  time.Now(),
		Status:       model.LedgerStatusConfirmed,
	}
	if err := g.store.Create(ctx, tx); err != nil {
		return true, fmt.Errorf("ledger: persist flushed transaction for job %d: %w", job.Seq, err)
	}
	if err := g.outbox.Remove(job.Seq); err != nil {
		return true, fmt.Errorf("ledger: remove flushed job %d: %w", job.Seq, err)
	}

	// A successful real submission means the outage is over; stop
	// simulating so subsequent calls go straight to the real client.
	g.simulating = false
	return true, nil
}

// RunFlusher drains the outbox in FIFO order at interval until ctx is
// done, the background flusher named in spec.md §4.2.
func (g *Gateway) RunFlusher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				more, err := g.FlushOnce(ctx)
				if err != nil {
					g.logWarn("flush outbox", err)
					break
				}
				if !more {
					break
				}
			}
			g.reportOutboxDepth()
		}
	}
}

// reportOutboxDepth publishes the current outbox backlog on
// LedgerOutboxDepth after each flush pass. A nil Metrics is a no-op.
func (g *Gateway) reportOutboxDepth() {
	if g.Metrics == nil {
		return
	}
	depth, err := g.OutboxDepth()
	if err != nil {
		g.logWarn("report outbox depth", err)
		return
	}
	g.Metrics.LedgerOutboxDepth.Set(float64(depth))
}

// OutboxDepth reports pending job count for internal/metrics.
func (g *Gateway) OutboxDepth() (int, error) {
	return g.outbox.Depth()
}

// HasPending reports whether documentID has an operation still sitting in
// the outbox, the condition spec.md §4.2 uses to block further state
// transitions for that document ("operations in the outbox block further
// state transitions for the same document").
func (g *Gateway) HasPending(documentID idgen.ID) (bool, error) {
	jobs, err := g.outbox.All()
	if err != nil {
		return false, err
	}
	want := documentID.String()
	for _, j := range jobs {
		if j.Request.DocumentID == want {
			return true, nil
		}
	}
	return false, nil
}
