package ingest

import (
	"context"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// Get implements `get(owner, document_id) -> Document` (spec.md §4.5).
// A document owned by someone else reports NotFound, the same response a
// missing document gives (spec.md §7: "NotFound is returned uniformly for
// unauthorised and absent resources").
func (s *Service) Get(ctx context.Context, owner, documentID idgen.ID) (*model.Document, error) {
	doc, err := s.Documents.GetByID(ctx, documentID)
	if err != nil {
		if err == postgres.ErrNotFound {
			return nil, apperr.New(apperr.KindNotFound, "document not found")
		}
		return nil, apperr.Internal("get document", err)
	}
	if doc.OwnerID != owner {
		return nil, apperr.New(apperr.KindNotFound, "document not found")
	}
	return doc, nil
}

// ListRequest narrows List's results (spec.md §6:
// "GET /documents?page&limit&state&security_level").
type ListRequest struct {
	OwnerID       idgen.ID
	State         model.DocumentState
	SecurityLevel model.SecurityLevel
	Page, Limit   int
}

// List implements `list(owner, filter, pagination) -> (page, total)`.
func (s *Service) List(ctx context.Context, req ListRequest) ([]*model.Document, int, error) {
	docs, total, err := s.Documents.List(ctx, postgres.ListFilter{
		OwnerID:       req.OwnerID,
		State:         req.State,
		SecurityLevel: req.SecurityLevel,
		Page:          req.Page,
		Limit:         req.Limit,
	})
	if err != nil {
		return nil, 0, apperr.Internal("list documents", err)
	}
	return docs, total, nil
}
