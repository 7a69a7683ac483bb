package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

func TestUpdatePatchesTitleAndExpiry(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	newTitle := "revised title"
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	updated, err := fx.svc.Update(context.Background(), owner, doc.ID, UpdatePatch{Title: &newTitle, Expiry: &expiry})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != newTitle {
		t.Fatalf("Title = %q, want %q", updated.Title, newTitle)
	}
	if updated.Expiry == nil || !updated.Expiry.Equal(expiry) {
		t.Fatalf("Expiry = %v, want %v", updated.Expiry, expiry)
	}

	kv, err := fx.meta.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Metadata.Get: %v", err)
	}
	if kv["title"] != newTitle {
		t.Fatalf("persisted title = %q, want %q", kv["title"], newTitle)
	}
	if kv["expiry"] == "" {
		t.Fatal("expected a persisted expiry value")
	}
}

func TestUpdateRejectsTerminalDocument(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := fx.svc.Revoke(context.Background(), owner, doc.ID, "done"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	newTitle := "too late"
	_, err = fx.svc.Update(context.Background(), owner, doc.ID, UpdatePatch{Title: &newTitle})
	if err == nil {
		t.Fatal("expected updating a revoked document to fail")
	}
}

func TestGetReturnsNotFoundForNonOwner(t *testing.T) {
	fx := newTestFixture(t)
	owner := idgen.New()
	stranger := idgen.New()
	doc, err := fx.svc.Upload(context.Background(), uploadReq(owner, "text/plain", []byte("content")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err := fx.svc.Get(context.Background(), stranger, doc.ID); err == nil {
		t.Fatal("expected a non-owner lookup to fail as not found")
	}
}
