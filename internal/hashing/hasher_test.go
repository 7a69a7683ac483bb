package hashing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/versafe/versafe-core/internal/store/model"
)

func TestHashIsDeterministic(t *testing.T) {
	h := New()
	content := []byte("the quick brown fox jumps over the lazy dog")

	r1, err := h.Hash(bytes.NewReader(content), model.AlgoSHA256, "")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	r2, err := h.Hash(bytes.NewReader(content), model.AlgoSHA256, "")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !bytes.Equal(r1.Primary.Bytes, r2.Primary.Bytes) {
		t.Fatal("expected identical input to produce identical digest")
	}
	if r1.Size != int64(len(content)) {
		t.Fatalf("Size = %d, want %d", r1.Size, len(content))
	}
}

func TestHashDualAlgorithmsAgreeOnOriginBytes(t *testing.T) {
	h := New()
	content := []byte("critical document body")

	result, err := h.Hash(bytes.NewReader(content), model.AlgoSHA3_256, model.AlgoBLAKE2b256)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if result.Secondary == nil {
		t.Fatal("expected a secondary digest when secondaryAlgo is set")
	}
	if bytes.Equal(result.Primary.Bytes, result.Secondary.Bytes) {
		t.Fatal("primary and secondary digests from different algorithms should not collide trivially")
	}

	again, err := h.Hash(bytes.NewReader(content), model.AlgoSHA3_256, model.AlgoBLAKE2b256)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !bytes.Equal(result.Secondary.Bytes, again.Secondary.Bytes) {
		t.Fatal("expected secondary digest to be deterministic")
	}
}

func TestHashRejectsUnknownAlgorithm(t *testing.T) {
	h := New()
	if _, err := h.Hash(bytes.NewReader([]byte("x")), model.DigestAlgo("NOT-REAL"), ""); err == nil {
		t.Fatal("expected an error for an unknown digest algorithm")
	}
}

func TestHashFileMatchesHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	content := []byte("file-backed content for hashing")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := New()
	fromFile, err := h.HashFile(path, model.AlgoSHA256, "")
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	fromStream, err := h.Hash(bytes.NewReader(content), model.AlgoSHA256, "")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !bytes.Equal(fromFile.Primary.Bytes, fromStream.Primary.Bytes) {
		t.Fatal("HashFile and Hash should agree on the same bytes")
	}
}

func TestDefaultSecondaryForAvoidsSameFamily(t *testing.T) {
	if got := DefaultSecondaryFor(model.AlgoSHA3_256); got != model.AlgoBLAKE2b256 {
		t.Fatalf("DefaultSecondaryFor(SHA3-256) = %s, want BLAKE2b-256", got)
	}
	if got := DefaultSecondaryFor(model.AlgoSHA256); got != model.AlgoSHA3_256 {
		t.Fatalf("DefaultSecondaryFor(SHA-256) = %s, want SHA-3-256", got)
	}
}
