package ledger

import (
	"hash/fnv"

	"github.com/holiman/bloomfilter/v2"
)

// dedupFilterM/K size the bloom filter (2^22 bits, 4 hashes) for roughly
// 200,000 in-flight dedup keys at a 0.1% false-positive rate (about 14% at
// one million keys); a false positive only costs an extra database lookup,
// never an incorrect dedup decision, since a true MaybeSeen is always
// followed by the authoritative store check.
const (
	dedupFilterM = 1 << 22
	dedupFilterK = 4
)

// DedupFilter is a fast probabilistic pre-check in front of the
// authoritative GetByDedupKey lookup (spec.md §4.2 idempotency contract):
// most submissions are first-time, so most calls skip the database round
// trip entirely.
type DedupFilter struct {
	filter *bloomfilter.Filter
}

func NewDedupFilter() (*DedupFilter, error) {
	f, err := bloomfilter.New(dedupFilterM, dedupFilterK)
	if err != nil {
		return nil, err
	}
	return &DedupFilter{filter: f}, nil
}

// MaybeSeen reports whether key was possibly already recorded. false is
// authoritative ("definitely not seen"); true still requires the database
// check.
func (d *DedupFilter) MaybeSeen(key string) bool {
	h := fnv.New64a()
	h.Write([]byte(key))
	return d.filter.Contains(h)
}

// MarkSeen records key so future MaybeSeen calls for it return true.
func (d *DedupFilter) MarkSeen(key string) {
	h := fnv.New64a()
	h.Write([]byte(key))
	d.filter.Add(h)
}
