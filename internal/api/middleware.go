package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/identity"
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
	ctxKeyCorrelation
)

func principalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(identity.Principal)
	return p, ok
}

func correlationFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCorrelation).(string)
	return id
}

// handle is the signature every internal/api handler implements; routes
// wire it through withCorrelation (directly, or via withAuth, withAPIKey
// or withLoginLimit) rather than taking httprouter.Handle
// directly so every handler gets a correlation id on its context without
// repeating the boilerplate.
type handle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params)

// withCorrelation stamps a fresh (or inbound) correlation id onto the
// request context — spec.md §7: internal errors log with a correlation
// id and return it to the client in error.detail.
func (s *Server) withCorrelation(next handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		_, id := s.core.Log.WithCorrelationID(r.Header.Get("X-Correlation-ID"))
		ctx := context.WithValue(r.Context(), ctxKeyCorrelation, id)
		next(w, r.WithContext(ctx), ps)
	}
}

// withAuth requires a valid `Authorization: Bearer <token>` and attaches
// the resulting Principal to the request context (spec.md §6).
func (s *Server) withAuth(next handle) httprouter.Handle {
	return s.withCorrelation(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.New(apperr.KindAuth, "missing bearer token"))
			return
		}
		principal, err := s.core.Identity.Verify(raw)
		if err != nil {
			writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.Wrap(apperr.KindAuth, "invalid or expired token", err))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
		next(w, r.WithContext(ctx), ps)
	})
}

// withAPIKey gates the service-to-service /ledger/* group behind
// X-API-Key (spec.md §6).
func (s *Server) withAPIKey(next handle) httprouter.Handle {
	return s.withCorrelation(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get("X-API-Key")
		if key == "" || key != s.core.Config.InternalAPIKey {
			writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.New(apperr.KindAuth, "invalid or missing API key"))
			return
		}
		next(w, r, ps)
	})
}

// withLoginLimit rate-limits POST /auth/login per remote address, on top
// of internal/identity's own per-email LoginLimiter (SUPPLEMENTED
// FEATURES: a second, coarser layer against distributed credential
// stuffing from one source).
func (s *Server) withLoginLimit(next handle) httprouter.Handle {
	return s.withCorrelation(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !s.loginLimiter.Allow(r.RemoteAddr) {
			writeError(w, s.core.Log, correlationFrom(r.Context()), apperr.New(apperr.KindSecurity, "too many login attempts, slow down"))
			return
		}
		next(w, r, ps)
	})
}

// plain wraps a handle with just the correlation-id middleware, for
// endpoints that need neither bearer auth nor an API key.
func (s *Server) plain(next handle) httprouter.Handle {
	return s.withCorrelation(next)
}

// metricsWrap records request latency against route, keyed by status code.
func (s *Server) metricsWrap(route string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r, ps)
		if s.core.Metrics != nil {
			s.core.Metrics.RequestLatency.WithLabelValues(route, http.StatusText(rec.status)).Observe(time.Since(start).Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
