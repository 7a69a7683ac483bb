package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScanReturnsScannerVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{Verdict: VerdictMalicious, Confidence: 0.99})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	result, reachable := c.Scan(context.Background(), []byte{1, 2, 3}, "application/pdf", []byte("content"))
	if !reachable {
		t.Fatal("expected scanner to be reachable")
	}
	if result.Verdict != VerdictMalicious {
		t.Fatalf("Verdict = %s, want MALICIOUS", result.Verdict)
	}
}

func TestScanDegradesToUnknownOnUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 50*time.Millisecond, nil)
	result, reachable := c.Scan(context.Background(), []byte{4, 5, 6}, "application/pdf", []byte("content"))
	if reachable {
		t.Fatal("expected unreachable scanner to report false")
	}
	if result.Verdict != VerdictUnknown {
		t.Fatalf("Verdict = %s, want UNKNOWN", result.Verdict)
	}
}

func TestScanCachesVerdictByDigest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(Result{Verdict: VerdictBenign, Confidence: 0.1})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	digest := []byte{9, 9, 9}
	if _, ok := c.Scan(context.Background(), digest, "application/pdf", []byte("a")); !ok {
		t.Fatal("expected first scan to reach server")
	}
	if _, ok := c.Scan(context.Background(), digest, "application/pdf", []byte("a")); !ok {
		t.Fatal("expected second scan to succeed from cache")
	}
	if calls != 1 {
		t.Fatalf("expected scanner to be called once, got %d calls", calls)
	}
}

func TestApplyPolicy(t *testing.T) {
	if p := Apply(Result{Verdict: VerdictMalicious}); !p.Abort {
		t.Fatal("expected MALICIOUS to abort")
	}
	if p := Apply(Result{Verdict: VerdictSuspicious}); !p.Warn {
		t.Fatal("expected SUSPICIOUS to warn")
	}
	if p := Apply(Result{Verdict: VerdictBenign}); p.Abort || p.Warn {
		t.Fatal("expected BENIGN to proceed unmarked")
	}
	if p := Apply(Result{Verdict: VerdictUnknown}); p.Abort || p.Warn {
		t.Fatal("expected UNKNOWN to proceed unmarked")
	}
}
