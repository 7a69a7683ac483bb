package verification

import (
	"context"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/store/model"
)

// rehash re-streams the stored bytes and recomputes the digest(s) with
// the algorithm(s) recorded at upload time (spec.md §4.7: "recomputes the
// digest with the stored algorithm").
func (s *Service) rehash(ctx context.Context, doc *model.Document) (hashing.Result, error) {
	r, err := s.Files.Open(ctx, doc.StorageRef)
	if err != nil {
		return hashing.Result{}, apperr.Internal("open stored document for verification", err)
	}
	defer r.Close()

	result, err := s.Hasher.Hash(r, doc.DigestAlgo, doc.SecondaryDigestAlgo)
	if err != nil {
		return hashing.Result{}, apperr.Internal("recompute digest for verification", err)
	}
	return result, nil
}
