package signature

import (
	"crypto/ed25519"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

func TestProduceElectronicSignature(t *testing.T) {
	e := NewEngine(nil, nil, 0)
	req := SignRequest{
		DocumentID:     idgen.New(),
		DocumentDigest: []byte("digest"),
		SignerID:       idgen.New(),
		Type:           model.SignatureElectronic,
		Payload:        []byte("text:Alice"),
		Now:            time.Now(),
	}
	sig, err := e.Produce(req)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !sig.Verified {
		t.Fatal("expected a well-formed ELECTRONIC payload to verify")
	}
	if len(sig.SignerHash) == 0 {
		t.Fatal("expected a non-empty signer_hash")
	}

	verified, err := e.Verify(sig, req.DocumentDigest, time.Now())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !verified {
		t.Fatal("expected re-verification of an ELECTRONIC signature to report verified")
	}
}

func TestProduceElectronicRejectsEmptyPayload(t *testing.T) {
	e := NewEngine(nil, nil, 0)
	_, err := e.Produce(SignRequest{Type: model.SignatureElectronic, Now: time.Now()})
	if err == nil {
		t.Fatal("expected an empty ELECTRONIC payload to be rejected")
	}
}

func TestProduceBiometricThreshold(t *testing.T) {
	e := NewEngine(nil, nil, 0.9)
	high := SignRequest{Type: model.SignatureBiometric, Payload: []byte("features"), Confidence: 0.95, Now: time.Now()}
	sig, err := e.Produce(high)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !sig.Verified {
		t.Fatal("expected confidence above threshold to verify")
	}

	low := SignRequest{Type: model.SignatureBiometric, Payload: []byte("features"), Confidence: 0.5, Now: time.Now()}
	sig, err = e.Produce(low)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if sig.Verified {
		t.Fatal("expected confidence below threshold not to verify")
	}
}

func TestCheckPreconditionsRejectsTerminalAndAlreadySigned(t *testing.T) {
	e := NewEngine(nil, nil, 0)
	doc := &model.Document{State: model.StateRevoked}
	err := CheckPreconditions(e, doc, idgen.New(), model.SignatureElectronic, false)
	var appErr *apperr.Error
	if !apperr.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected a conflict error for a terminal document, got %v", err)
	}

	doc = &model.Document{State: model.StateUploaded}
	err = CheckPreconditions(e, doc, idgen.New(), model.SignatureElectronic, true)
	if !apperr.As(err, &appErr) {
		t.Fatalf("expected an error when the signer has already signed, got %v", err)
	}
}

func TestCheckPreconditionsRequiresEnrolledKeyForDigital(t *testing.T) {
	store, err := NewDirKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirKeyStore: %v", err)
	}
	e := NewEngine(store, nil, 0)
	doc := &model.Document{State: model.StateUploaded}
	signerID := idgen.New()

	err = CheckPreconditions(e, doc, signerID, model.SignatureDigital, false)
	if err == nil {
		t.Fatal("expected a missing-key error for an unenrolled signer")
	}

	if _, err := store.Enroll(signerID.String(), AlgoEd25519, "pw"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := CheckPreconditions(e, doc, signerID, model.SignatureDigital, false); err != nil {
		t.Fatalf("expected preconditions to pass once enrolled, got %v", err)
	}
}

func TestProduceAndVerifyDigitalSignature(t *testing.T) {
	signerID := idgen.New()
	key, err := NewKey(signerID.String(), AlgoEd25519)
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	pubBytes, err := key.PublicKeyBytes()
	if err != nil {
		t.Fatalf("PublicKeyBytes: %v", err)
	}

	certs := NewMemCertStore()
	cert := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: signerID.String()},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		PublicKey:    ed25519.PublicKey(pubBytes),
	}
	certs.Bind(signerID.String(), cert)

	e := NewEngine(nil, certs, 0)
	now := time.Now()
	req := SignRequest{
		DocumentID:     idgen.New(),
		DocumentDigest: []byte("document-digest"),
		SignerID:       signerID,
		Type:           model.SignatureDigital,
		Now:            now,
		Key:            key,
	}
	sig, err := e.Produce(req)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !sig.Verified {
		t.Fatal("expected a valid DIGITAL signature against a valid certificate to verify")
	}

	verified, err := e.Verify(sig, req.DocumentDigest, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !verified {
		t.Fatal("expected re-verification to succeed against the still-valid certificate")
	}

	certs.Revoke(signerID.String())
	verified, err = e.Verify(sig, req.DocumentDigest, now)
	if err != nil {
		t.Fatalf("Verify after revoke: %v", err)
	}
	if verified {
		t.Fatal("expected re-verification to fail once the certificate is revoked")
	}
}
