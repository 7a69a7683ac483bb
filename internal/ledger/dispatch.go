package ledger

import (
	"context"
	"fmt"

	"github.com/versafe/versafe-core/internal/store/model"
)

// Context carries everything a Handler needs to validate and submit one
// ledger-transaction kind, mirroring the teacher's sysaction dispatch
// shape (see DESIGN.md): a Registry of Handlers keyed by kind, each
// handler validating its own kind-specific preconditions before mutating
// anything.
type Context struct {
	Ctx         context.Context
	Kind        model.LedgerTxKind
	DocumentID  string
	DedupKey    string
	PayloadHash []byte
	Metadata    map[string]string
	// SignerID is only meaningful for SIGNATURE kind, where the quorum
	// must include an endorser distinct from the signer (spec.md §4.2).
	SignerID string
}

// Handler validates and submits one LedgerTxKind. Registered handlers are
// looked up by kind in Gateway.Submit so each kind's preconditions stay
// local to its own handler instead of a branching switch.
type Handler func(g *Gateway, hc Context) (SubmitResponse, error)

// Registry maps a LedgerTxKind to its Handler, exactly like the teacher's
// sysaction.Registry maps an action tag to its executor.
type Registry struct {
	handlers map[model.LedgerTxKind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[model.LedgerTxKind]Handler)}
}

func (r *Registry) register(kind model.LedgerTxKind, h Handler) {
	r.handlers[kind] = h
}

func (r *Registry) lookup(kind model.LedgerTxKind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("ledger: no handler registered for kind %q", kind)
	}
	return h, nil
}

// defaultRegistry wires the four kinds named in spec.md §4.2/§3.
func defaultRegistry() *Registry {
	r := NewRegistry()
	r.register(model.LedgerKindRegister, handleSubmit)
	r.register(model.LedgerKindStateUpdate, handleSubmit)
	r.register(model.LedgerKindSignature, handleSignature)
	r.register(model.LedgerKindRevoke, handleSubmit)
	return r
}

// handleSubmit is the shared validate-then-submit body for kinds with no
// extra precondition beyond "the client is reachable or we simulate".
func handleSubmit(g *Gateway, hc Context) (SubmitResponse, error) {
	return g.client.Submit(hc.Ctx, SubmitRequest{
		DedupKey:    hc.DedupKey,
		Kind:        string(hc.Kind),
		DocumentID:  hc.DocumentID,
		PayloadHash: hc.PayloadHash,
		Metadata:    hc.Metadata,
	})
}

// handleSignature additionally enforces the distinct-endorser quorum rule
// whenever the response carries endorsements, including the simulator's
// single self-endorsement.
func handleSignature(g *Gateway, hc Context) (SubmitResponse, error) {
	resp, err := handleSubmit(g, hc)
	if err != nil {
		return SubmitResponse{}, err
	}
	if g.quorum != nil && len(resp.Endorsements) > 0 {
		if !g.quorum.Satisfies(resp.Endorsements, hc.SignerID) {
			return SubmitResponse{}, fmt.Errorf("ledger: endorsement quorum not satisfied for signature")
		}
	}
	return resp, nil
}
