package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// ledgerTxResponse mirrors model.LedgerTransaction for the
// service-to-service /ledger/* group (spec.md §6).
type ledgerTxResponse struct {
	TxID         string                `json:"tx_id"`
	DocumentID   idgen.ID              `json:"document_id"`
	Kind         model.LedgerTxKind    `json:"kind"`
	Block        int64                 `json:"block,omitempty"`
	BlockHash    string                `json:"block_hash,omitempty"`
	PayloadHash  string                `json:"payload_hash"`
	Status       model.LedgerTxStatus  `json:"status"`
	Simulated    bool                  `json:"simulated"`
}

func toLedgerTxResponse(t *model.LedgerTransaction) ledgerTxResponse {
	return ledgerTxResponse{
		TxID:        t.TxID,
		DocumentID:  t.DocumentID,
		Kind:        t.Kind,
		Block:       t.Block,
		BlockHash:   t.BlockHash,
		PayloadHash: hex.EncodeToString(t.PayloadHash),
		Status:      t.Status,
		Simulated:   t.Status == model.LedgerStatusSimulated,
	}
}

type ledgerRegisterRequest struct {
	DocumentID idgen.ID `json:"document_id"`
	Digest     string   `json:"digest"`
	Algo       string   `json:"algo"`
	OwnerID    string   `json:"owner_id"`
	FileName   string   `json:"file_name"`
}

func (s *Server) handleLedgerRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ledgerRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	digest, err := hex.DecodeString(req.Digest)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "digest is not valid hex", err))
		return
	}
	tx, pending, err := s.core.Ledger.Register(r.Context(), req.DocumentID, digest, req.Algo, req.OwnerID, req.FileName)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	if pending || tx == nil {
		writeData(w, http.StatusAccepted, map[string]interface{}{"ledger_pending": true})
		return
	}
	writeData(w, http.StatusOK, toLedgerTxResponse(tx))
}

type ledgerVerifyRequest struct {
	DocumentID idgen.ID `json:"document_id"`
	Digest     string   `json:"digest"`
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ledgerVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	digest, err := hex.DecodeString(req.Digest)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "digest is not valid hex", err))
		return
	}
	tx, err := s.core.Ledger.Query(r.Context(), req.DocumentID)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	match := tx.IsAuthoritative() && bytes.Equal(tx.PayloadHash, digest)
	writeData(w, http.StatusOK, map[string]interface{}{"match": match, "transaction": toLedgerTxResponse(tx)})
}

type ledgerStateRequest struct {
	DocumentID idgen.ID              `json:"document_id"`
	State      model.DocumentState   `json:"state"`
	Metadata   map[string]string     `json:"metadata"`
}

func (s *Server) handleLedgerState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ledgerStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	tx, pending, err := s.core.Ledger.UpdateState(r.Context(), req.DocumentID, req.State, req.Metadata)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	if pending || tx == nil {
		writeData(w, http.StatusAccepted, map[string]interface{}{"ledger_pending": true})
		return
	}
	writeData(w, http.StatusOK, toLedgerTxResponse(tx))
}

func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	documentID, err := idgen.Parse(ps.ByName("document_id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	txs, err := s.core.Ledger.History(r.Context(), documentID)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	out := make([]ledgerTxResponse, len(txs))
	for i, t := range txs {
		out[i] = toLedgerTxResponse(t)
	}
	writeData(w, http.StatusOK, map[string]interface{}{"transactions": out})
}

func (s *Server) handleLedgerTx(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	txID := ps.ByName("tx_id")
	tx, err := s.core.DB.LedgerTransactions().GetByTxID(r.Context(), txID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.New(apperr.KindNotFound, "ledger transaction not found"))
			return
		}
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Internal("fetch ledger transaction", err))
		return
	}
	writeData(w, http.StatusOK, toLedgerTxResponse(tx))
}
