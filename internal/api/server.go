package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/versafe/versafe-core/internal/core"
)

// Server wires internal/core.Core's services onto the HTTP routes named
// in spec.md §6 via httprouter, with github.com/rs/cors handling the
// browser-facing CORS preflight for the auth/document/signature/
// verification groups (the /ledger/* group is service-to-service and
// does not need CORS).
type Server struct {
	core         *core.Core
	loginLimiter *perKeyLimiter
}

// NewServer builds a Server. c must already be fully constructed
// (core.New).
func NewServer(c *core.Core) *Server {
	return &Server{core: c, loginLimiter: newPerKeyLimiter(1, 10)}
}

// Handler returns the complete HTTP handler for the VerSafe API,
// including CORS.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()

	r.POST("/auth/login", s.metricsWrap("auth.login", s.withLoginLimit(s.handleLogin)))
	r.POST("/auth/refresh", s.metricsWrap("auth.refresh", s.plain(s.handleRefresh)))
	r.POST("/auth/register", s.metricsWrap("auth.register", s.plain(s.handleRegister)))

	r.POST("/documents/upload", s.metricsWrap("documents.upload", s.withAuth(s.handleUpload)))
	r.GET("/documents", s.metricsWrap("documents.list", s.withAuth(s.handleListDocuments)))
	r.GET("/documents/:id", s.metricsWrap("documents.get", s.withAuth(s.handleGetDocument)))
	r.PATCH("/documents/:id", s.metricsWrap("documents.update", s.withAuth(s.handleUpdateDocument)))
	r.POST("/documents/:id/revoke", s.metricsWrap("documents.revoke", s.withAuth(s.handleRevokeDocument)))

	r.POST("/signatures/:document_id/sign", s.metricsWrap("signatures.sign", s.withAuth(s.handleSign)))
	r.GET("/signatures/document/:document_id", s.metricsWrap("signatures.list", s.withAuth(s.handleListSignatures)))
	r.POST("/signatures/:id/verify", s.metricsWrap("signatures.verify", s.withAuth(s.handleVerifySignature)))

	r.POST("/verification/:document_id/verify", s.metricsWrap("verification.verify", s.withAuth(s.handleVerifyDocument)))

	r.POST("/ledger/register", s.metricsWrap("ledger.register", s.withAPIKey(s.handleLedgerRegister)))
	r.POST("/ledger/verify", s.metricsWrap("ledger.verify", s.withAPIKey(s.handleLedgerVerify)))
	r.PUT("/ledger/state", s.metricsWrap("ledger.state", s.withAPIKey(s.handleLedgerState)))
	r.GET("/ledger/history/:document_id", s.metricsWrap("ledger.history", s.withAPIKey(s.handleLedgerHistory)))
	r.GET("/ledger/tx/:tx_id", s.metricsWrap("ledger.tx", s.withAPIKey(s.handleLedgerTx)))

	r.GET("/metrics", wrapStd(s.core.Metrics.Handler()))
	r.GET("/healthz", wrapStd(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", "X-Correlation-ID"},
	})
	return c.Handler(r)
}

func wrapStd(h http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
