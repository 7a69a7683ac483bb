package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
)

type verificationResponse struct {
	Outcome  string           `json:"outcome"`
	Document documentResponse `json:"document"`
}

func (s *Server) handleVerifyDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := principalFrom(r.Context())
	documentID, err := idgen.Parse(ps.ByName("document_id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	result, err := s.core.Verification.Verify(r.Context(), documentID, principal.UserID)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	resp := verificationResponse{Outcome: string(result.Outcome)}
	if result.Document != nil {
		resp.Document = toDocumentResponse(result.Document)
	}
	writeData(w, http.StatusOK, resp)
}
