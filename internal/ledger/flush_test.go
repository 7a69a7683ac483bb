package ledger

import (
	"context"
	"testing"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

func TestFlushOnceCreatesConfirmedRecordAndDrainsOutbox(t *testing.T) {
	g, store := newTestGateway(t, &fakeClient{reachable: false})
	g.ProbeConnectivity(context.Background())

	docID := idgen.New()
	_, simulated, err := g.Register(context.Background(), docID, []byte{1}, "SHA-256", "owner", "f.pdf")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !simulated {
		t.Fatal("expected a simulated registration while unreachable")
	}

	// The ledger comes back.
	g.client = &fakeClient{reachable: true}

	more, err := g.FlushOnce(context.Background())
	if err != nil {
		t.Fatalf("FlushOnce: %v", err)
	}
	if !more {
		t.Fatal("expected FlushOnce to report it drained a job")
	}

	depth, err := g.OutboxDepth()
	if err != nil {
		t.Fatalf("OutboxDepth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("expected the outbox to be empty after flush, got depth %d", depth)
	}
	if g.Simulating() {
		t.Fatal("expected FlushOnce to clear simulator mode on success")
	}

	history, err := store.History(context.Background(), docID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var confirmed int
	for _, tx := range history {
		if tx.Status == model.LedgerStatusConfirmed {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Fatalf("expected exactly one CONFIRMED record from the flush, got %d among %d", confirmed, len(history))
	}

	// The original SIMULATED record must still exist untouched.
	var simulatedCount int
	for _, tx := range history {
		if tx.Status == model.LedgerStatusSimulated {
			simulatedCount++
		}
	}
	if simulatedCount != 1 {
		t.Fatalf("expected the original SIMULATED record to remain, found %d", simulatedCount)
	}
}

func TestFlushOnceReturnsFalseWhenOutboxEmpty(t *testing.T) {
	g, _ := newTestGateway(t, &fakeClient{reachable: true})
	more, err := g.FlushOnce(context.Background())
	if err != nil {
		t.Fatalf("FlushOnce: %v", err)
	}
	if more {
		t.Fatal("expected FlushOnce to report nothing pending on an empty outbox")
	}
}

func TestFlushOnceRequeuesOnFailure(t *testing.T) {
	g, _ := newTestGateway(t, &fakeClient{reachable: false})
	g.ProbeConnectivity(context.Background())

	docID := idgen.New()
	if _, _, err := g.Register(context.Background(), docID, []byte{2}, "SHA-256", "owner", "f.pdf"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	g.client = &fakeClient{reachable: true, fail: true}

	_, err := g.FlushOnce(context.Background())
	if err == nil {
		t.Fatal("expected FlushOnce to report the submit failure")
	}

	depth, err := g.OutboxDepth()
	if err != nil {
		t.Fatalf("OutboxDepth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected the job to remain queued after a failed flush, got depth %d", depth)
	}
}
