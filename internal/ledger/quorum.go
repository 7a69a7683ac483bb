package ledger

import (
	mapset "github.com/deckarep/golang-set"
)

// Quorum is the configured set of endorsing identities, small and bounded
// exactly like an active validator set (spec.md §4.2: "a configured
// quorum of endorsing identities").
type Quorum struct {
	identities mapset.Set
	minSize    int
}

// NewQuorum builds a Quorum from the configured endorsing identity list.
func NewQuorum(identities []string, minSize int) *Quorum {
	set := mapset.NewSet()
	for _, id := range identities {
		set.Add(id)
	}
	return &Quorum{identities: set, minSize: minSize}
}

// Satisfies reports whether endorsements meet the quorum: enough distinct
// known identities, and — for record_signature — at least one endorser
// distinct from the signer (spec.md §4.2: "record_signature requires
// endorsement from at least one identity distinct from the signer").
func (q *Quorum) Satisfies(endorsements []Endorsement, excludeIdentity string) bool {
	seen := mapset.NewSet()
	hasDistinct := excludeIdentity == ""
	for _, e := range endorsements {
		if !q.identities.Contains(e.Identity) {
			continue
		}
		seen.Add(e.Identity)
		if e.Identity != excludeIdentity {
			hasDistinct = true
		}
	}
	return seen.Cardinality() >= q.minSize && hasDistinct
}

// Identities returns the configured endorser set as a slice.
func (q *Quorum) Identities() []string {
	out := make([]string, 0, q.identities.Cardinality())
	for _, v := range q.identities.ToSlice() {
		out = append(out, v.(string))
	}
	return out
}
