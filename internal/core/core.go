// Package core wires every VerSafe service into one process-scoped
// Core struct (spec.md §2/§9: "a Core struct that owns pool handles, key
// sets, the ledger client, and the outbox worker, passed into each
// handler" — generalizing the teacher's single node.Node composition
// root instead of module-level singletons).
package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/versafe/versafe-core/internal/audit"
	"github.com/versafe/versafe-core/internal/config"
	"github.com/versafe/versafe-core/internal/filestore"
	"github.com/versafe/versafe-core/internal/hashing"
	"github.com/versafe/versafe-core/internal/identity"
	"github.com/versafe/versafe-core/internal/ingest"
	"github.com/versafe/versafe-core/internal/ledger"
	"github.com/versafe/versafe-core/internal/logging"
	"github.com/versafe/versafe-core/internal/metrics"
	"github.com/versafe/versafe-core/internal/scanner"
	"github.com/versafe/versafe-core/internal/signature"
	"github.com/versafe/versafe-core/internal/store/postgres"
	"github.com/versafe/versafe-core/internal/verification"
	"github.com/versafe/versafe-core/internal/workpool"
)

// Core owns every long-lived handle a VerSafe service binary needs:
// database pool, key material, the ledger gateway and its outbox, and
// the service-layer objects built on top of them.
type Core struct {
	Config  config.Config
	Log     *logging.Logger
	DB      *postgres.DB
	Metrics *metrics.Registry

	KeySet       *identity.KeySet
	Identity     *identity.CachingVerifier
	Authenticate *identity.Authenticator

	Files  filestore.Store
	Hasher *hashing.Hasher

	Ledger *ledger.Gateway

	Ingest       *ingest.Service
	Verification *verification.Service
	Audit        *audit.Logger
	Pool         *workpool.Pool
	Keys         signature.KeyStore

	outbox        *ledger.Outbox
	auditBuffer   *audit.DurableBuffer
	flusherPeriod time.Duration
}

// New builds a Core from cfg: opens the database, the durable outbox and
// audit buffer, probes ledger connectivity, and wires every service on
// top. Callers own the returned Core's lifetime and must call Close when
// done.
func New(ctx context.Context, cfg config.Config, log *logging.Logger) (*Core, error) {
	db, err := postgres.Open(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("core: open database: %w", err)
	}

	reg := metrics.New(cfg.Metrics, prometheus.DefaultRegisterer, log)

	c := &Core{
		Config:        cfg,
		Log:           log,
		DB:            db,
		Metrics:       reg,
		Hasher:        hashing.New(),
		Pool:          workpool.New(0),
		flusherPeriod: 30 * time.Second,
	}

	if err := c.buildIdentity(cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildFilestore(cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildLedger(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildAudit(cfg); err != nil {
		c.Close()
		return nil, err
	}

	c.Keys = mustDirKeyStore(cfg.SigningKeyStore)
	signer := signature.NewEngine(
		c.Keys,
		signature.NewMemCertStore(),
		cfg.BiometricThreshold,
	)
	scan := scanner.New(cfg.ScannerURL, cfg.ScannerTimeout, log)

	c.Ingest = ingest.NewService(
		db.Documents(), db.Signatures(), db.Metadata(), db, c.Files, c.Hasher, scan, c.Ledger,
		signer, ingestAuditor{logger: c.Audit, service: "ingest"}, log,
		ingest.Config{MaxUploadBytes: cfg.MaxUploadBytes, AllowedMediaTypes: cfg.AllowedMediaTypes},
	)
	c.Ingest.Pool = c.Pool
	c.Ingest.Metrics = reg
	c.Ledger.Metrics = reg

	c.Verification = verification.NewService(
		db.Documents(), db.VerificationEvents(), c.Files, c.Hasher, c.Ledger,
		verificationAuditor{logger: c.Audit, service: "verification"}, log,
	)
	c.Verification.Metrics = reg

	return c, nil
}

func mustDirKeyStore(dir string) signature.KeyStore {
	ks, err := signature.NewDirKeyStore(dir)
	if err != nil {
		// SigningKeyStore is required process configuration; a bad path
		// is an operator error caught at startup, not a runtime one.
		panic(fmt.Sprintf("core: open signing key store: %v", err))
	}
	return ks
}

func (c *Core) buildIdentity(cfg config.Config) error {
	keys, err := identity.NewKeySet(cfg.SigningKeySet())
	if err != nil {
		return fmt.Errorf("core: build key set: %w", err)
	}
	issuer := identity.NewIssuer(keys, cfg.TokenTTL, cfg.RefreshTTL)
	verifier := identity.NewVerifier(keys)
	caching, err := identity.NewCachingVerifier(verifier, 4096)
	if err != nil {
		return fmt.Errorf("core: build caching verifier: %w", err)
	}
	limiter := identity.NewLoginLimiter(1, 5)
	sessions := identity.NewSessions(issuer, c.DB.RefreshSessions(), cfg.RefreshTTL)

	c.KeySet = keys
	c.Identity = caching
	c.Authenticate = identity.NewAuthenticator(c.DB.Users(), sessions, limiter)
	return nil
}

func (c *Core) buildFilestore(cfg config.Config) error {
	if cfg.AzureStorageConnectionString != "" {
		store, err := filestore.NewAzure(cfg.AzureStorageConnectionString, cfg.AzureStorageContainer)
		if err != nil {
			return fmt.Errorf("core: build azure filestore: %w", err)
		}
		c.Files = store
		return nil
	}
	store, err := filestore.NewLocal(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("core: build local filestore: %w", err)
	}
	c.Files = store
	return nil
}

func (c *Core) buildLedger(ctx context.Context, cfg config.Config) error {
	outbox, err := ledger.OpenOutbox(cfg.LedgerOutboxDir)
	if err != nil {
		return fmt.Errorf("core: open ledger outbox: %w", err)
	}
	c.outbox = outbox

	quorum := ledger.NewQuorum(cfg.LedgerEndorsers, cfg.LedgerQuorumMinSize)

	// The CA endpoint doubles as the gateway's submit/status endpoint for
	// a co-located permissioned-network sidecar; a dedicated gateway URL
	// is not among spec.md §6's enumerated env vars.
	client := ledger.NewHTTPClient(cfg.LedgerCAURL, 15*time.Second)

	gw, err := ledger.NewGateway(client, c.DB.LedgerTransactions(), outbox, quorum, c.Log, ledger.GatewayConfig{
		MaxAttempts: cfg.OutboxMaxAttempts,
		BaseBackoff: cfg.OutboxBaseBackoff,
		EndorserID:  cfg.LedgerEndorserID,
	})
	if err != nil {
		return fmt.Errorf("core: build ledger gateway: %w", err)
	}
	gw.ProbeConnectivity(ctx)
	c.Ledger = gw
	return nil
}

func (c *Core) buildAudit(cfg config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.AuditBufferPath), 0o700); err != nil {
		return fmt.Errorf("core: create audit buffer directory: %w", err)
	}
	buf := audit.NewDurableBuffer(cfg.AuditBufferPath)
	c.auditBuffer = buf
	c.Audit = audit.NewLogger(c.DB.AuditRecords(), buf, c.Log)
	return nil
}

// RunBackground starts every periodic process-level task a production
// server binary needs: the ledger outbox flusher, ingest registration
// reconciliation, and audit-buffer replay. It blocks until ctx is done.
func (c *Core) RunBackground(ctx context.Context) {
	go c.Ledger.RunFlusher(ctx, c.flusherPeriod)

	reconcileTicker := time.NewTicker(c.flusherPeriod)
	defer reconcileTicker.Stop()
	bufferTicker := time.NewTicker(2 * c.flusherPeriod)
	defer bufferTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconcileTicker.C:
			if n, err := c.Ingest.ReconcileRegistrations(ctx); err != nil {
				c.Log.Warn("reconcile registrations failed", "error", err.Error())
			} else if n > 0 {
				c.Log.Info("reconciled pending registrations", "count", n)
			}
		case <-bufferTicker.C:
			if n, err := c.Audit.DrainBuffer(ctx); err != nil {
				c.Log.Warn("drain audit buffer failed", "error", err.Error())
			} else if n > 0 {
				c.Log.Info("replayed buffered audit records", "count", n)
			}
		}
	}
}

// Close releases every handle Core opened. Safe to call on a partially
// built Core (New calls it on its own error paths).
func (c *Core) Close() error {
	var first error
	note := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if c.outbox != nil {
		note(c.outbox.Close())
	}
	if c.DB != nil {
		note(c.DB.Close())
	}
	return first
}

// ingestAuditor adapts internal/ingest.AuditEntry to audit.Entry so
// internal/ingest never needs to import internal/audit directly (see
// DESIGN.md: the two packages define structurally identical AuditEntry
// types precisely so this adapter, not a shared import, is the seam).
type ingestAuditor struct {
	logger  *audit.Logger
	service string
}

func (a ingestAuditor) Record(ctx context.Context, e ingest.AuditEntry) error {
	return a.logger.Record(ctx, audit.Entry{
		Service:      a.service,
		Action:       e.Action,
		UserID:       e.UserID,
		HasUser:      !e.UserID.IsNil(),
		ResourceKind: e.ResourceKind,
		ResourceID:   e.ResourceID,
		RequestMeta:  e.RequestMeta,
		StatusCode:   e.StatusCode,
	})
}

// verificationAuditor is ingestAuditor's twin for internal/verification.
type verificationAuditor struct {
	logger  *audit.Logger
	service string
}

func (a verificationAuditor) Record(ctx context.Context, e verification.AuditEntry) error {
	return a.logger.Record(ctx, audit.Entry{
		Service:      a.service,
		Action:       e.Action,
		UserID:       e.UserID,
		HasUser:      !e.UserID.IsNil(),
		ResourceKind: e.ResourceKind,
		ResourceID:   e.ResourceID,
		RequestMeta:  e.RequestMeta,
		StatusCode:   e.StatusCode,
	})
}
