package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// ErrUnavailable is the sentinel a Client implementation wraps when the
// ledger network cannot be reached; Gateway translates it into
// apperr.KindLedgerUnavailable at the boundary.
var ErrUnavailable = errors.New("ledger network unreachable")

// SimulatorClient never talks to a network. It produces deterministic
// tx_ids (spec.md §4.2: "H(document_id ‖ kind ‖ seq)"); its responses
// carry no simulated marker, so the Gateway is the one responsible for flagging
// `simulated: true` to callers and for queuing a shadow register in the
// outbox (Open Question #3 in spec.md §9: simulated transactions always
// carry the flag, with no legacy unflagged path).
type SimulatorClient struct {
	endorserIdentity string
}

func NewSimulatorClient(endorserIdentity string) *SimulatorClient {
	return &SimulatorClient{endorserIdentity: endorserIdentity}
}

func (s *SimulatorClient) Submit(_ context.Context, req SubmitRequest) (SubmitResponse, error) {
	txID := DeterministicTxID(req.DocumentID, req.Kind, req.DedupKey)
	return SubmitResponse{
		TxID: txID,
		Endorsements: []Endorsement{
			{Identity: s.endorserIdentity, Signature: []byte(txID)},
		},
	}, nil
}

func (s *SimulatorClient) Status(_ context.Context, txID string) (TxStatus, error) {
	return TxConfirmed, nil
}

func (s *SimulatorClient) Reachable(_ context.Context) bool { return false }

// DeterministicTxID hashes the inputs that make a ledger operation unique
// so the simulator produces the exact same tx_id for retried submissions
// with the same dedup key (spec.md §8 invariant #5).
func DeterministicTxID(documentID, kind, dedupKey string) string {
	sum := sha3.Sum256([]byte(fmt.Sprintf("%s|%s|%s", documentID, kind, dedupKey)))
	return fmt.Sprintf("%x", sum)
}
