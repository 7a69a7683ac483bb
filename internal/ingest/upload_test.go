package ingest

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/scanner"
	"github.com/versafe/versafe-core/internal/signature"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/workpool"
)

type testFixture struct {
	svc     *Service
	docs    *memDocumentStore
	sigs    *memSignatureStore
	meta    *memMetadataStore
	files   *memFilestore
	ledger  *fakeLedgerGateway
	scanner fakeScanner
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	docs := newMemDocumentStore()
	sigs := newMemSignatureStore()
	meta := newMemMetadataStore()
	files := newMemFilestore()
	ledger := newFakeLedgerGateway()
	scan := fakeScanner{result: scanner.Result{Verdict: scanner.VerdictBenign}, reachable: true}

	keys, err := signature.NewDirKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirKeyStore: %v", err)
	}
	engine := signature.NewEngine(keys, signature.NewMemCertStore(), 0.9)

	svc := NewService(docs, sigs, meta, fakeTxRunner{}, files, hashing.New(), scan, ledger, engine, nil,
		logging.New(io.Discard, "test"), Config{
			MaxUploadBytes:    10 << 20,
			AllowedMediaTypes: []string{"application/pdf", "text/plain", "image/png"},
		})
	return &testFixture{svc: svc, docs: docs, sigs: sigs, meta: meta, files: files, ledger: ledger, scanner: scan}
}

func uploadReq(owner idgen.ID, mediaType string, content []byte) UploadRequest {
	return UploadRequest{
		OwnerID:            owner,
		Title:              "t",
		FileName:           "f.txt",
		MediaType:          mediaType,
		SecurityLevel:      model.SecurityLow,
		SignaturesRequired: 1,
		Content:            bytes.NewReader(content),
	}
}

func TestUploadCreatesDocumentAndRegistersLedger(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()

	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("hello world")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.State != model.StateUploaded {
		t.Fatalf("State = %s, want UPLOADED", doc.State)
	}
	if doc.LedgerTxID == "" {
		t.Fatal("expected a confirmed ledger tx id after a reachable register call")
	}
	stored, err := fx.files.Open(context.Background(), doc.StorageRef)
	if err != nil {
		t.Fatalf("Open stored file: %v", err)
	}
	data, _ := io.ReadAll(stored)
	if string(data) != "hello world" {
		t.Fatalf("stored bytes = %q, want %q", data, "hello world")
	}
}

func TestUploadRejectsDisallowedMediaType(t *testing.T) {
	fx := newTestFixture(t)
	_, err := fx.svc.Upload(context.Background(), uploadReq(idgen.New(), "application/zip", []byte("x")))
	if err == nil {
		t.Fatal("expected a disallowed media type to be rejected")
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	fx := newTestFixture(t)
	fx.svc.maxUploadBytes = 4
	_, err := fx.svc.Upload(context.Background(), uploadReq(idgen.New(), "text/plain", []byte("more than four bytes")))
	if err == nil {
		t.Fatal("expected an oversized upload to be rejected")
	}
}

func TestUploadAbortsOnMaliciousScan(t *testing.T) {
	fx := newTestFixture(t)
	fx.scanner = fakeScanner{result: scanner.Result{Verdict: scanner.VerdictMalicious}, reachable: true}
	fx.svc.Scanner = fx.scanner

	_, err := fx.svc.Upload(context.Background(), uploadReq(idgen.New(), "application/pdf", []byte("%PDF-1.4 fake")))
	if err == nil {
		t.Fatal("expected a MALICIOUS verdict to abort ingest")
	}
	if len(fx.docs.docs) != 0 {
		t.Fatal("expected no document row after a malicious verdict")
	}
	if len(fx.files.files) != 0 {
		t.Fatal("expected the uploaded file to be deleted after a malicious verdict")
	}
}

func TestUploadMarksSuspiciousWithWarn(t *testing.T) {
	fx := newTestFixture(t)
	fx.scanner = fakeScanner{result: scanner.Result{Verdict: scanner.VerdictSuspicious}, reachable: true}
	fx.svc.Scanner = fx.scanner

	doc, err := fx.svc.Upload(context.Background(), uploadReq(idgen.New(), "application/pdf", []byte("%PDF-1.4 fake")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !doc.ScanWarn {
		t.Fatal("expected a SUSPICIOUS verdict to stamp the document with a warn marker")
	}
}

func TestUploadMarksRegistrationPendingOnLedgerFailure(t *testing.T) {
	fx := newTestFixture(t)
	fx.ledger.registerFail = true

	doc, err := fx.svc.Upload(context.Background(), uploadReq(idgen.New(), "text/plain", []byte("hello")))
	if err != nil {
		t.Fatalf("Upload should not fail outright on ledger failure: %v", err)
	}
	if doc.State != model.StateRegistrationPending {
		t.Fatalf("State = %s, want REGISTRATION_PENDING", doc.State)
	}
	if doc.LedgerTxID != "" {
		t.Fatal("expected no ledger tx id while registration is pending")
	}
}

func TestCriticalUploadRequiresDualHashAndDetectsDivergence(t *testing.T) {
	fx := newTestFixture(t)
	fx.files.corruptNextPut = true

	req := uploadReq(idgen.New(), "text/plain", []byte("critical content"))
	req.SecurityLevel = model.SecurityCritical
	req.SignaturesRequired = 2

	_, err := fx.svc.Upload(context.Background(), req)
	if err == nil {
		t.Fatal("expected a storage-corrupted CRITICAL upload to fail with dual-hash divergence")
	}
	if len(fx.files.files) != 0 {
		t.Fatal("expected the corrupted file to be deleted after divergence is detected")
	}
}

func TestCriticalUploadSucceedsWhenStorageIsConsistent(t *testing.T) {
	fx := newTestFixture(t)
	req := uploadReq(idgen.New(), "text/plain", []byte("critical content"))
	req.SecurityLevel = model.SecurityCritical
	req.SignaturesRequired = 2

	doc, err := fx.svc.Upload(context.Background(), req)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(doc.SecondaryDigest) == 0 {
		t.Fatal("expected a secondary digest for a CRITICAL document")
	}
}

func TestUploadRunsHashingOnConfiguredPool(t *testing.T) {
	fx := newTestFixture(t)
	fx.svc.Pool = workpool.New(2)

	doc, err := fx.svc.Upload(context.Background(), uploadReq(idgen.New(), "text/plain", []byte("pooled content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.State != model.StateUploaded {
		t.Fatalf("State = %s, want UPLOADED", doc.State)
	}
}
