package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/ingest"
	"github.com/versafe/versafe-core/internal/store/model"
)

type signatureResponse struct {
	ID                 idgen.ID            `json:"id"`
	DocumentID         idgen.ID            `json:"document_id"`
	SignerID           idgen.ID            `json:"signer_id"`
	Type               model.SignatureType `json:"type"`
	VerificationMethod string              `json:"verification_method,omitempty"`
	Verified           bool                `json:"verified"`
	LedgerTxID         string              `json:"ledger_tx_id,omitempty"`
	LedgerPending      bool                `json:"ledger_pending"`
	CreatedAt          string              `json:"created_at"`
}

func toSignatureResponse(sig *model.Signature) signatureResponse {
	return signatureResponse{
		ID:                 sig.ID,
		DocumentID:         sig.DocumentID,
		SignerID:           sig.SignerID,
		Type:               sig.Type,
		VerificationMethod: sig.VerificationMethod,
		Verified:           sig.Verified,
		LedgerTxID:         sig.LedgerTxID,
		LedgerPending:      sig.LedgerTxID == "",
		CreatedAt:          sig.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type signRequest struct {
	Type       model.SignatureType `json:"type"`
	Payload    []byte              `json:"payload"`
	Confidence float64             `json:"confidence"`
	Passphrase string              `json:"passphrase"`
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := principalFrom(r.Context())
	documentID, err := idgen.Parse(ps.ByName("document_id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	sig, err := s.core.Ingest.Sign(r.Context(), ingest.SignInput{
		DocumentID: documentID,
		SignerID:   principal.UserID,
		Type:       req.Type,
		Payload:    req.Payload,
		Confidence: req.Confidence,
		Passphrase: req.Passphrase,
	})
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusCreated, toSignatureResponse(sig))
}

func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	documentID, err := idgen.Parse(ps.ByName("document_id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	sigs, err := s.core.Ingest.ListSignatures(r.Context(), documentID)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	out := make([]signatureResponse, len(sigs))
	for i, sig := range sigs {
		out[i] = toSignatureResponse(sig)
	}
	writeData(w, http.StatusOK, map[string]interface{}{"signatures": out})
}

func (s *Server) handleVerifySignature(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := idgen.Parse(ps.ByName("id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid signature id", err))
		return
	}
	ok, err := s.core.Ingest.VerifySignature(r.Context(), id)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"verified": ok})
}
