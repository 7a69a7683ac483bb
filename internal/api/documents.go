package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/ingest"
	"github.com/versafe/versafe-core/internal/store/model"
)

type documentResponse struct {
	ID                  idgen.ID             `json:"id"`
	OwnerID             idgen.ID             `json:"owner_id"`
	Title               string               `json:"title"`
	FileName            string               `json:"file_name"`
	MediaType           string               `json:"media_type"`
	SizeBytes           int64                `json:"size_bytes"`
	DigestAlgo          model.DigestAlgo     `json:"digest_algo"`
	Digest              string               `json:"digest"`
	SecurityLevel       model.SecurityLevel  `json:"security_level"`
	SignaturesRequired  int                  `json:"signatures_required"`
	State               model.DocumentState  `json:"state"`
	ScanWarn            bool                 `json:"scan_warn,omitempty"`
	LedgerTxID          string               `json:"ledger_tx_id,omitempty"`
	LedgerPending       bool                 `json:"ledger_pending"`
	Expiry              *time.Time           `json:"expiry,omitempty"`
	RevokedReason       string               `json:"revoked_reason,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

func toDocumentResponse(d *model.Document) documentResponse {
	return documentResponse{
		ID:                 d.ID,
		OwnerID:            d.OwnerID,
		Title:              d.Title,
		FileName:           d.FileName,
		MediaType:          d.MediaType,
		SizeBytes:          d.SizeBytes,
		DigestAlgo:         d.DigestAlgo,
		Digest:             hexString(d.Digest),
		SecurityLevel:      d.SecurityLevel,
		SignaturesRequired: d.SignaturesRequired,
		State:              d.State,
		ScanWarn:           d.ScanWarn,
		LedgerTxID:         d.LedgerTxID,
		LedgerPending:      d.LedgerTxID == "" && !d.State.IsTerminal(),
		Expiry:             d.Expiry,
		RevokedReason:      d.RevokedReason,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func hexString(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0x0f]
	}
	return string(out)
}

// defaultMultipartMemory bounds the in-memory portion of a multipart
// upload parse; anything beyond it spills to a temp file courtesy of
// net/http's own ParseMultipartForm behavior.
const defaultMultipartMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := principalFrom(r.Context())

	if err := r.ParseMultipartForm(defaultMultipartMemory); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed multipart upload", err))
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "missing document file part", err))
		return
	}
	defer file.Close()

	sigsRequired := 1
	if v := r.FormValue("signatures_required"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sigsRequired = n
		}
	}

	req := ingest.UploadRequest{
		OwnerID:            principal.UserID,
		Title:              r.FormValue("title"),
		FileName:           header.Filename,
		MediaType:          header.Header.Get("Content-Type"),
		SecurityLevel:      model.SecurityLevel(r.FormValue("security_level")),
		SignaturesRequired: sigsRequired,
		Content:            file,
	}
	doc, err := s.core.Ingest.Upload(r.Context(), req)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, _ := principalFrom(r.Context())
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	docs, total, err := s.core.Ingest.List(r.Context(), ingest.ListRequest{
		OwnerID:       principal.UserID,
		State:         model.DocumentState(q.Get("state")),
		SecurityLevel: model.SecurityLevel(q.Get("security_level")),
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	writeData(w, http.StatusOK, map[string]interface{}{"documents": out, "total": total})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := principalFrom(r.Context())
	id, err := idgen.Parse(ps.ByName("id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	doc, err := s.core.Ingest.Get(r.Context(), principal.UserID, id)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusOK, toDocumentResponse(doc))
}

type updateDocumentRequest struct {
	Title  *string    `json:"title"`
	Expiry *time.Time `json:"expiry"`
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := principalFrom(r.Context())
	id, err := idgen.Parse(ps.ByName("id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	doc, err := s.core.Ingest.Update(r.Context(), principal.UserID, id, ingest.UpdatePatch{Title: req.Title, Expiry: req.Expiry})
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusOK, toDocumentResponse(doc))
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRevokeDocument(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, _ := principalFrom(r.Context())
	id, err := idgen.Parse(ps.ByName("id"))
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "invalid document id", err))
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	doc, err := s.core.Ingest.Revoke(r.Context(), principal.UserID, id, req.Reason)
	if err != nil {
		writeError(w, s.core.Log, correlationFrom(r.Context()), err)
		return
	}
	writeData(w, http.StatusOK, toDocumentResponse(doc))
}
