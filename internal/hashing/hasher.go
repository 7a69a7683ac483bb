// Package hashing implements the Hasher (spec.md §4.3): a single streamed
// pass over a document's bytes that produces one or two independent
// content fingerprints.
package hashing

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/store/model"
)

// Digest is one computed fingerprint.
type Digest struct {
	Algo  model.DigestAlgo
	Bytes []byte
}

// Result is what Hasher.Hash returns: the primary digest always, plus a
// secondary digest when the caller requested a dual hash (CRITICAL
// documents, spec.md §4.3).
type Result struct {
	Primary   Digest
	Secondary *Digest
	Size      int64
}

func newHash(algo model.DigestAlgo) (hash.Hash, error) {
	switch algo {
	case model.AlgoSHA256:
		return sha256.New(), nil
	case model.AlgoSHA3_256:
		return sha3.New256(), nil
	case model.AlgoBLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("hashing: unknown algorithm %q", algo)
	}
}

// Hasher streams a document through one or two digest algorithms in a
// single pass (io.MultiWriter), so a CRITICAL document's dual hash never
// costs a second read of the file (spec.md §4.3).
type Hasher struct{}

func New() *Hasher { return &Hasher{} }

// Hash reads r to completion, computing primaryAlgo and, when
// secondaryAlgo is non-empty, a second independent digest at the same
// time. The two digests come from different algorithms, so they are never
// compared with each other; callers detect divergence by recomputing both
// over a later read of the bytes and comparing each with its earlier
// value (internal/ingest's verifyStoredDigest, apperr.ErrDualHashDivergence).
func (h *Hasher) Hash(r io.Reader, primaryAlgo model.DigestAlgo, secondaryAlgo model.DigestAlgo) (Result, error) {
	primary, err := newHash(primaryAlgo)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindValidation, "unsupported digest algorithm", err)
	}

	writers := []io.Writer{primary}
	var secondary hash.Hash
	if secondaryAlgo != "" {
		secondary, err = newHash(secondaryAlgo)
		if err != nil {
			return Result{}, apperr.Wrap(apperr.KindValidation, "unsupported secondary digest algorithm", err)
		}
		writers = append(writers, secondary)
	}

	n, err := io.Copy(io.MultiWriter(writers...), r)
	if err != nil {
		return Result{}, apperr.Internal("stream document through hasher", err)
	}

	result := Result{
		Primary: Digest{Algo: primaryAlgo, Bytes: primary.Sum(nil)},
		Size:    n,
	}
	if secondary != nil {
		result.Secondary = &Digest{Algo: secondaryAlgo, Bytes: secondary.Sum(nil)}
	}
	return result, nil
}

// DefaultSecondaryFor picks the companion algorithm for a CRITICAL
// document's dual hash: always a different family from primary so a
// hypothetical collision in one algorithm doesn't also break the other.
func DefaultSecondaryFor(primary model.DigestAlgo) model.DigestAlgo {
	if primary == model.AlgoSHA3_256 {
		return model.AlgoBLAKE2b256
	}
	return model.AlgoSHA3_256
}
