package ingest

import (
	"context"
	"testing"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

func TestSignAdvancesDocumentStateToSigned(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	signer := idgen.New()
	sig, err := fx.svc.Sign(context.Background(), SignInput{
		DocumentID: doc.ID,
		SignerID:   signer,
		Type:       model.SignatureElectronic,
		Payload:    []byte("text:signer"),
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !sig.Verified {
		t.Fatal("expected a well-formed ELECTRONIC signature to verify")
	}

	got, err := fx.svc.Get(context.Background(), owner, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != model.StateSigned {
		t.Fatalf("State = %s, want SIGNED for a single-signature-required document", got.State)
	}
	if sig.LedgerTxID == "" {
		t.Fatal("expected the signature to pick up a confirmed ledger tx id")
	}
}

func TestSignReachesPartiallySignedThenSigned(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	req := uploadReq(owner, "text/plain", []byte("content"))
	req.SignaturesRequired = 2
	doc, err := fx.svc.Upload(context.Background(), req)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	first := idgen.New()
	if _, err := fx.svc.Sign(context.Background(), SignInput{
		DocumentID: doc.ID, SignerID: first, Type: model.SignatureElectronic, Payload: []byte("a"),
	}); err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	mid, err := fx.svc.Get(context.Background(), owner, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mid.State != model.StatePartiallySigned {
		t.Fatalf("State = %s, want PARTIALLY_SIGNED after 1 of 2 signatures", mid.State)
	}

	second := idgen.New()
	if _, err := fx.svc.Sign(context.Background(), SignInput{
		DocumentID: doc.ID, SignerID: second, Type: model.SignatureElectronic, Payload: []byte("b"),
	}); err != nil {
		t.Fatalf("second Sign: %v", err)
	}
	final, err := fx.svc.Get(context.Background(), owner, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.State != model.StateSigned {
		t.Fatalf("State = %s, want SIGNED after 2 of 2 signatures", final.State)
	}
}

func TestSignRejectsDuplicateSignerOnSameDocument(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	req := uploadReq(owner, "text/plain", []byte("content"))
	req.SignaturesRequired = 2
	doc, err := fx.svc.Upload(context.Background(), req)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	signer := idgen.New()
	if _, err := fx.svc.Sign(context.Background(), SignInput{
		DocumentID: doc.ID, SignerID: signer, Type: model.SignatureElectronic, Payload: []byte("a"),
	}); err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	if _, err := fx.svc.Sign(context.Background(), SignInput{
		DocumentID: doc.ID, SignerID: signer, Type: model.SignatureElectronic, Payload: []byte("a"),
	}); err == nil {
		t.Fatal("expected a second signature from the same signer to be rejected")
	}
}

func TestSignRejectsTerminalDocument(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := fx.svc.Revoke(context.Background(), owner, doc.ID, "no longer needed"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, err = fx.svc.Sign(context.Background(), SignInput{
		DocumentID: doc.ID, SignerID: idgen.New(), Type: model.SignatureElectronic, Payload: []byte("a"),
	})
	if err == nil {
		t.Fatal("expected signing a revoked document to fail")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := fx.svc.Revoke(context.Background(), owner, doc.ID, "reason one"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	again, err := fx.svc.Revoke(context.Background(), owner, doc.ID, "reason two")
	if err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if again.State != model.StateRevoked {
		t.Fatalf("State = %s, want REVOKED", again.State)
	}
}
