// Package scanner implements the Malware Scanner Client (spec.md §4.4): a
// bounded-timeout HTTP call to an external scanner, with a short-lived
// verdict cache keyed by content digest so identical bytes aren't
// re-scanned.
package scanner

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/versafe/versafe-core/internal/logging"
)

// Verdict is the scanner's classification (spec.md §4.4).
type Verdict string

const (
	VerdictBenign     Verdict = "BENIGN"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictMalicious  Verdict = "MALICIOUS"
	VerdictUnknown    Verdict = "UNKNOWN"
)

// Result is what the scanner returns for one scan.
type Result struct {
	Verdict    Verdict           `json:"result"`
	Confidence float64           `json:"confidence"`
	Features   map[string]string `json:"features,omitempty"`
}

// verdictCacheBytes bounds the fastcache instance; fastcache partitions
// internally and evicts LRU-ish under pressure, so this is a soft cap
// rather than a hard entry count.
const verdictCacheBytes = 32 * 1024 * 1024

// verdictTTL bounds how long a cached verdict is trusted for a given
// digest before a rescan is forced.
const verdictTTL = 10 * time.Minute

type cachedVerdict struct {
	Result    Result
	ExpiresAt time.Time
}

// Client calls an external scanning service over HTTP, never blocking
// ingest past its configured timeout (spec.md §4.4: "a scanner outage
// does not stop registration").
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	cache      *fastcache.Cache
	log        *logging.Logger
}

func New(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		timeout:    timeout,
		cache:      fastcache.New(verdictCacheBytes),
		log:        log,
	}
}

// Scan uploads content's bytes (already read into memory by the caller —
// Document Ingest holds the whole file for the duration of ingest) to the
// scanner and returns its verdict. Any failure — timeout, connection
// refused, non-2xx response, malformed body — degrades to VerdictUnknown
// with the returned bool false, matching spec.md §4.4's "the client never blocks
// ingest beyond its timeout; a scanner outage does not stop registration".
// Callers that need to distinguish "scanner said UNKNOWN" from "scanner
// was unreachable" should inspect the returned bool.
func (c *Client) Scan(ctx context.Context, digest []byte, mediaType string, content []byte) (Result, bool) {
	key := hex.EncodeToString(digest)
	if cached, ok := c.lookupCache(key); ok {
		return cached, true
	}

	result, reachable := c.call(ctx, mediaType, content)
	if reachable {
		c.storeCache(key, result)
	}
	return result, reachable
}

func (c *Client) lookupCache(key string) (Result, bool) {
	raw, ok := c.cache.HasGet(nil, []byte(key))
	if !ok {
		return Result{}, false
	}
	var cv cachedVerdict
	if err := json.Unmarshal(raw, &cv); err != nil {
		return Result{}, false
	}
	if time.Now().After(cv.ExpiresAt) {
		return Result{}, false
	}
	return cv.Result, true
}

func (c *Client) storeCache(key string, result Result) {
	cv := cachedVerdict{Result: result, ExpiresAt: time.Now().Add(verdictTTL)}
	raw, err := json.Marshal(cv)
	if err != nil {
		return
	}
	c.cache.Set([]byte(key), raw)
}

func (c *Client) call(ctx context.Context, mediaType string, content []byte) (Result, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan", bytes.NewReader(content))
	if err != nil {
		c.logUnreachable("build request", err)
		return Result{Verdict: VerdictUnknown}, false
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logUnreachable("call scanner", err)
		return Result{Verdict: VerdictUnknown}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logUnreachable("scanner status", fmt.Errorf("status %d", resp.StatusCode))
		return Result{Verdict: VerdictUnknown}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logUnreachable("read scanner response", err)
		return Result{Verdict: VerdictUnknown}, false
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		c.logUnreachable("decode scanner response", err)
		return Result{Verdict: VerdictUnknown}, false
	}
	if result.Verdict == "" {
		result.Verdict = VerdictUnknown
	}
	return result, true
}

func (c *Client) logUnreachable(step string, err error) {
	if c.log == nil {
		return
	}
	c.log.Warn("scanner unreachable, proceeding unmarked", "step", step, "error", err.Error())
}

// Policy applies spec.md §4.4's ingest policy to a scan outcome.
type Policy struct {
	Abort bool // MALICIOUS: ingest must abort, file deleted, audit written
	Warn  bool // SUSPICIOUS: ingest proceeds, document stamped warn
}

// Apply translates a Result into the ingest decision Document Ingest acts
// on. UNKNOWN (including an unreachable scanner) proceeds unmarked.
func Apply(result Result) Policy {
	switch result.Verdict {
	case VerdictMalicious:
		return Policy{Abort: true}
	case VerdictSuspicious:
		return Policy{Warn: true}
	default:
		return Policy{}
	}
}
