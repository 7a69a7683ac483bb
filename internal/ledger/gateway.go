package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/metrics"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// TxStore is the persistence surface Gateway needs; postgres.LedgerTransactions
// satisfies it. Defined as an interface so tests can substitute an
// in-memory fake instead of a live database.
type TxStore interface {
	Create(ctx context.Context, t *model.LedgerTransaction) error
	GetByDedupKey(ctx context.Context, dedupKey string) (*model.LedgerTransaction, error)
	GetByTxID(ctx context.Context, txID string) (*model.LedgerTransaction, error)
	Latest(ctx context.Context, documentID idgen.ID) (*model.LedgerTransaction, error)
	History(ctx context.Context, documentID idgen.ID) ([]*model.LedgerTransaction, error)
}

// Gateway is the single abstraction every caller uses to reach the
// permissioned ledger (spec.md §4.2, §9 design note: "Hide behind a
// single LedgerGateway abstraction; the simulator is a variant
// implementation selected at init, never mixed per-call").
type Gateway struct {
	client   Client
	store    TxStore
	outbox   *Outbox
	dedup    *DedupFilter
	quorum   *Quorum
	registry *Registry
	log      *logging.Logger

	// Metrics is optional; internal/core sets it after construction.
	// A nil Metrics silently skips every observation below, which keeps
	// every *_test.go in this package free of metrics wiring.
	Metrics *metrics.Registry

	simulating  bool
	endorserID  string
	maxAttempts int
	baseBackoff time.Duration
}

// GatewayConfig bundles Gateway's tunables, sourced from internal/config.Config.
type GatewayConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	EndorserID  string
}

func NewGateway(client Client, store TxStore, outbox *Outbox, quorum *Quorum, log *logging.Logger, cfg GatewayConfig) (*Gateway, error) {
	dedup, err := NewDedupFilter()
	if err != nil {
		return nil, fmt.Errorf("ledger: build dedup filter: %w", err)
	}
	g := &Gateway{
		client:      client,
		store:       store,
		outbox:      outbox,
		dedup:       dedup,
		quorum:      quorum,
		registry:    defaultRegistry(),
		log:         log,
		endorserID:  cfg.EndorserID,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
	}
	return g, nil
}

// ProbeConnectivity checks the real client and flips simulator mode,
// matching spec.md §4.2: "If the gateway detects no connectivity to the
// ledger at startup, or a sustained outage, it transitions to a
// simulator".
func (g *Gateway) ProbeConnectivity(ctx context.Context) {
	g.simulating = !g.client.Reachable(ctx)
}

func (g *Gateway) Simulating() bool { return g.simulating }

func (g *Gateway) activeClient() Client {
	if g.simulating {
		return NewSimulatorClient(g.endorserID)
	}
	return g.client
}

// Register implements `register(document_id, digest, algo, owner_id,
// file_name) -> LedgerTx` (spec.md §4.2).
func (g *Gateway) Register(ctx context.Context, documentID idgen.ID, digest []byte, algo, ownerID, fileName string) (*model.LedgerTransaction, bool, error) {
	return g.submit(ctx, model.LedgerKindRegister, documentID, digest, map[string]string{
		"algo":      algo,
		"owner_id":  ownerID,
		"file_name": fileName,
	}, "")
}

// UpdateState implements `update_state(document_id, new_state, metadata)
// -> LedgerTx`.
func (g *Gateway) UpdateState(ctx context.Context, documentID idgen.ID, newState model.DocumentState, metadata map[string]string) (*model.LedgerTransaction, bool, error) {
	md := map[string]string{"new_state": string(newState)}
	for k, v := range metadata {
		md[k] = v
	}
	return g.submit(ctx, model.LedgerKindStateUpdate, documentID, nil, md, "")
}

// RecordSignature implements `record_signature(signature_id, document_id,
// signer_id, signer_hash) -> LedgerTx`.
func (g *Gateway) RecordSignature(ctx context.Context, documentID idgen.ID, signatureID, signerID string, signerHash []byte) (*model.LedgerTransaction, bool, error) {
	return g.submit(ctx, model.LedgerKindSignature, documentID, signerHash, map[string]string{
		"signature_id": signatureID,
		"signer_id":    signerID,
	}, signerID)
}

// Revoke implements the REVOKE ledger-transaction kind backing
// `revoke(owner, document_id, reason)` in Document Ingest.
func (g *Gateway) Revoke(ctx context.Context, documentID idgen.ID, reason string) (*model.LedgerTransaction, bool, error) {
	return g.submit(ctx, model.LedgerKindRevoke, documentID, nil, map[string]string{"reason": reason}, "")
}

// dedupKeyFor builds the client-supplied deduplication key (spec.md §4.2:
// "document_id + kind + monotonic_seq"). monotonic_seq is derived from
// the content of this particular submission — its payload hash, metadata,
// and signer — rather than from how many prior transactions of this kind
// exist: a retry of the same logical operation always carries the exact
// same payload/metadata and therefore hashes to the same key, while a
// genuinely distinct operation of the same kind (e.g. a second signature
// on the same document) differs in payload or metadata and gets its own
// key. Counting current history instead would make every retry recompute
// a higher sequence than the one it is retrying, since the first attempt's
// own (committed or outbox-queued) record is already in that history.
func (g *Gateway) dedupKeyFor(documentID idgen.ID, kind model.LedgerTxKind, payloadHash []byte, metadata map[string]string, signerID string) string {
	h := sha256.New()
	h.Write([]byte(documentID.String()))
	h.Write([]byte(kind))
	h.Write(payloadHash)
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s;", k, metadata[k])
	}
	h.Write([]byte(signerID))
	return fmt.Sprintf("%s:%s:%s", documentID.String(), kind, hex.EncodeToString(h.Sum(nil))[:16])
}

// submit is the shared body behind Register/UpdateState/RecordSignature/
// Revoke: dedup fast path, dispatch through the Registry, retry with
// backoff, and fall back to the durable outbox on sustained failure
// (spec.md §4.2 failure semantics). The returned bool reports whether the
// transaction is non-authoritative (simulated, or still pending in the
// outbox); when true and the transaction itself is nil, the operation was
// queued and the caller must treat the document as ledger-pending.
func (g *Gateway) submit(ctx context.Context, kind model.LedgerTxKind, documentID idgen.ID, payloadHash []byte, metadata map[string]string, signerID string) (*model.LedgerTransaction, bool, error) {
	dedupKey := g.dedupKeyFor(documentID, kind, payloadHash, metadata, signerID)

	if g.dedup.MaybeSeen(dedupKey) {
		if existing, err := g.store.GetByDedupKey(ctx, dedupKey); err == nil {
			g.observeSubmission(kind, "deduped")
			return existing, !existing.IsAuthoritative(), nil
		} else if !errors.Is(err, postgres.ErrNotFound) {
			return nil, false, apperr.Internal("look up existing ledger tx", err)
		}
	}

	hc := Context{
		Ctx:         ctx,
		Kind:        kind,
		DocumentID:  documentID.String(),
		DedupKey:    dedupKey,
		PayloadHash: payloadHash,
		Metadata:    metadata,
		SignerID:    signerID,
	}
	handler, err := g.registry.lookup(kind)
	if err != nil {
		return nil, false, apperr.Internal("ledger dispatch", err)
	}

	resp, err := g.submitWithRetry(ctx, handler, hc)
	if err != nil {
		if enqueueErr := g.enqueueShadow(hc); enqueueErr != nil {
			return nil, false, apperr.Internal("persist ledger outbox entry", enqueueErr)
		}
		g.observeSubmission(kind, "queued")
		return nil, true, apperr.Wrap(apperr.KindLedgerUnavailable, "ledger unreachable, queued for retry", err)
	}

	status := model.LedgerStatusConfirmed
	if g.simulating {
		status = model.LedgerStatusSimulated
		// Simulated success still needs a real registration once the
		// ledger comes back (spec.md §4.2: "queues a real-register
		// shadow operation in the outbox").
		if enqueueErr := g.enqueueShadow(hc); enqueueErr != nil {
			g.logWarn("queue simulated shadow operation", enqueueErr)
		}
	}

	tx := &model.LedgerTransaction{
		TxID:         resp.TxID,
		DocumentID:   documentID,
		Kind:         kind,
		Block:        resp.Block,
		BlockHash:    resp.BlockHash,
		PayloadHash:  payloadHash,
		Endorsements: toModelEndorsements(resp.Endorsements),
		DedupKey:     dedupKey,
		SubmittedAt:  time.Now(),
		Status:       status,
	}
	if err := g.store.Create(ctx, tx); err != nil {
		if errors.Is(err, postgres.ErrDuplicateDedupKey) {
			existing, getErr := g.store.GetByDedupKey(ctx, dedupKey)
			if getErr != nil {
				return nil, false, apperr.Internal("fetch concurrently-created ledger tx", getErr)
			}
			return existing, !existing.IsAuthoritative(), nil
		}
		return nil, false, apperr.Internal("persist ledger transaction", err)
	}
	g.dedup.MarkSeen(dedupKey)
	if g.simulating {
		g.observeSubmission(kind, "simulated")
	} else {
		g.observeSubmission(kind, "confirmed")
	}
	return tx, g.simulating, nil
}

// observeSubmission increments LedgerSubmissions, labeled by ledger
// transaction kind and outcome. A nil Metrics (the default in every
// test in this package) makes this a no-op.
func (g *Gateway) observeSubmission(kind model.LedgerTxKind, outcome string) {
	if g.Metrics == nil {
		return
	}
	g.Metrics.LedgerSubmissions.WithLabelValues(string(kind), outcome).Inc()
}

func toModelEndorsements(in []Endorsement) []model.Endorsement {
	out := make([]model.Endorsement, 0, len(in))
	for _, e := range in {
		out = append(out, model.Endorsement{Identity: e.Identity, Signature: e.Signature})
	}
	return out
}

// submitWithRetry retries handler through an exponential backoff with
// jitter up to g.maxAttempts before giving up (spec.md §4.2: "retried
// with exponential backoff and jitter up to a ceiling").
func (g *Gateway) submitWithRetry(ctx context.Context, handler Handler, hc Context) (SubmitResponse, error) {
	if g.simulating {
		return handler(&Gateway{client: g.activeClient(), quorum: g.quorum}, hc)
	}

	var lastErr error
	backoff := g.baseBackoff
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		resp, err := handler(g, hc)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == g.maxAttempts-1 {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return SubmitResponse{}, ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return SubmitResponse{}, fmt.Errorf("ledger: exhausted %d attempts: %w", g.maxAttempts, lastErr)
}

func (g *Gateway) enqueueShadow(hc Context) error {
	_, err := g.outbox.Enqueue(SubmitRequest{
		DedupKey:    hc.DedupKey,
		Kind:        string(hc.Kind),
		DocumentID:  hc.DocumentID,
		PayloadHash: hc.PayloadHash,
		Metadata:    hc.Metadata,
	})
	return err
}

func (g *Gateway) logWarn(step string, err error) {
	if g.log != nil {
		g.log.Warn("ledger outbox enqueue failed", "step", step, "error", err.Error())
	}
}

// Query implements `query(document_id) -> LedgerRecord`: the most recent
// authoritative-or-not record for a document.
func (g *Gateway) Query(ctx context.Context, documentID idgen.ID) (*model.LedgerTransaction, error) {
	tx, err := g.store.Latest(ctx, documentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no ledger record for document")
		}
		return nil, apperr.Internal("query ledger record", err)
	}
	return tx, nil
}

// History implements `history(document_id) -> ordered sequence of LedgerRecord`.
func (g *Gateway) History(ctx context.Context, documentID idgen.ID) ([]*model.LedgerTransaction, error) {
	history, err := g.store.History(ctx, documentID)
	if err != nil {
		return nil, apperr.Internal("ledger history", err)
	}
	return history, nil
}

// TxStatus implements `tx_status(tx_id) -> {PENDING, CONFIRMED, REJECTED}`.
func (g *Gateway) TxStatus(ctx context.Context, txID string) (model.LedgerTxStatus, error) {
	tx, err := g.store.GetByTxID(ctx, txID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return "", apperr.New(apperr.KindNotFound, "unknown ledger transaction")
		}
		return "", apperr.Internal("ledger tx status", err)
	}
	return tx.Status, nil
}
