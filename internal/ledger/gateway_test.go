package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

type memTxStore struct {
	mu       sync.Mutex
	byDedup  map[string]*model.LedgerTransaction
	byTxID   map[string]*model.LedgerTransaction
	byDocID  map[idgen.ID][]*model.LedgerTransaction
}

func newMemTxStore() *memTxStore {
	return &memTxStore{
		byDedup: make(map[string]*model.LedgerTransaction),
		byTxID:  make(map[string]*model.LedgerTransaction),
		byDocID: make(map[idgen.ID][]*model.LedgerTransaction),
	}
}

func (m *memTxStore) Create(_ context.Context, t *model.LedgerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byDedup[t.DedupKey]; ok {
		return postgres.ErrDuplicateDedupKey
	}
	cp := *t
	m.byDedup[t.DedupKey] = &cp
	m.byTxID[t.TxID] = &cp
	m.byDocID[t.DocumentID] = append(m.byDocID[t.DocumentID], &cp)
	return nil
}

func (m *memTxStore) GetByDedupKey(_ context.Context, dedupKey string) (*model.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byDedup[dedupKey]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return t, nil
}

func (m *memTxStore) GetByTxID(_ context.Context, txID string) (*model.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byTxID[txID]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return t, nil
}

func (m *memTxStore) Latest(_ context.Context, documentID idgen.ID) (*model.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byDocID[documentID]
	if len(list) == 0 {
		return nil, postgres.ErrNotFound
	}
	return list[len(list)-1], nil
}

func (m *memTxStore) History(_ context.Context, documentID idgen.ID) ([]*model.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.LedgerTransaction(nil), m.byDocID[documentID]...), nil
}

func newTestGateway(t *testing.T, client Client) (*Gateway, *memTxStore) {
	t.Helper()
	store := newMemTxStore()
	outbox, err := OpenOutbox(t.TempDir())
	if err != nil {
		t.Fatalf("OpenOutbox: %v", err)
	}
	t.Cleanup(func() { outbox.Close() })

	g, err := NewGateway(client, store, outbox, NewQuorum([]string{"endorser-a", "endorser-b"}, 1), nil, GatewayConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		EndorserID:  "endorser-a",
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g, store
}

type fakeClient struct {
	reachable bool
	fail      bool
	resp      SubmitResponse
}

func (f *fakeClient) Submit(_ context.Context, req SubmitRequest) (SubmitResponse, error) {
	if f.fail {
		return SubmitResponse{}, ErrUnavailable
	}
	if f.resp.TxID == "" {
		return SubmitResponse{TxID: "tx-" + req.DedupKey}, nil
	}
	return f.resp, nil
}

func (f *fakeClient) Status(_ context.Context, txID string) (TxStatus, error) {
	return TxConfirmed, nil
}

func (f *fakeClient) Reachable(_ context.Context) bool { return f.reachable }

func TestGatewayRegisterSucceeds(t *testing.T) {
	g, _ := newTestGateway(t, &fakeClient{reachable: true})
	g.ProbeConnectivity(context.Background())
	if g.Simulating() {
		t.Fatal("expected gateway to detect a reachable client")
	}

	docID := idgen.New()
	tx, simulated, err := g.Register(context.Background(), docID, []byte{1, 2, 3}, "SHA-256", "owner", "file.pdf")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if simulated {
		t.Fatal("expected an authoritative (non-simulated) transaction")
	}
	if tx.Status != model.LedgerStatusConfirmed {
		t.Fatalf("Status = %s, want CONFIRMED", tx.Status)
	}
}

func TestGatewayRegisterIsIdempotentOnDedupKey(t *testing.T) {
	g, _ := newTestGateway(t, &fakeClient{reachable: true})
	g.ProbeConnectivity(context.Background())

	docID := idgen.New()
	first, _, err := g.Register(context.Background(), docID, []byte{1}, "SHA-256", "owner", "f.pdf")
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}
	second, _, err := g.Register(context.Background(), docID, []byte{1}, "SHA-256", "owner", "f.pdf")
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if first.TxID != second.TxID {
		t.Fatalf("expected identical tx_id on retry, got %s and %s", first.TxID, second.TxID)
	}
}

func TestGatewayFallsBackToSimulatorWhenUnreachable(t *testing.T) {
	g, _ := newTestGateway(t, &fakeClient{reachable: false})
	g.ProbeConnectivity(context.Background())
	if !g.Simulating() {
		t.Fatal("expected gateway to detect an unreachable client at startup")
	}

	docID := idgen.New()
	tx, simulated, err := g.Register(context.Background(), docID, []byte{9}, "SHA-256", "owner", "f.pdf")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !simulated {
		t.Fatal("expected a simulated transaction while unreachable")
	}
	if tx.Status != model.LedgerStatusSimulated {
		t.Fatalf("Status = %s, want SIMULATED", tx.Status)
	}

	depth, err := g.OutboxDepth()
	if err != nil {
		t.Fatalf("OutboxDepth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected one shadow registration queued, got depth %d", depth)
	}

	pending, err := g.HasPending(docID)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if !pending {
		t.Fatal("expected HasPending to report the queued shadow operation")
	}
}

func TestGatewayQueuesOutboxOnSustainedFailure(t *testing.T) {
	g, _ := newTestGateway(t, &fakeClient{reachable: true, fail: true})
	g.ProbeConnectivity(context.Background())

	docID := idgen.New()
	_, pending, err := g.Register(context.Background(), docID, []byte{2}, "SHA-256", "owner", "f.pdf")
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !pending {
		t.Fatal("expected the operation to be reported pending")
	}
	depth, err := g.OutboxDepth()
	if err != nil {
		t.Fatalf("OutboxDepth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected one queued job, got depth %d", depth)
	}
}
