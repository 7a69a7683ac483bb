// Package config loads VerSafe's process configuration: TOML defaults
// merged with the enumerated environment variables from spec.md §6,
// mirroring tos/tosconfig's Defaults-struct-plus-overrides idiom.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/naoina/toml"

	"github.com/versafe/versafe-core/internal/metrics"
)

// Config is the complete process configuration for any VerSafe service
// binary (cmd/versafe-server, cmd/versafe-admin).
type Config struct {
	DBURL    string `toml:"db_url"`
	RedisURL string `toml:"redis_url"`

	LedgerChannel   string `toml:"ledger_channel"`
	LedgerChaincode string `toml:"ledger_chaincode"`
	LedgerMSPID     string `toml:"ledger_msp_id"`
	LedgerWalletPath string `toml:"ledger_wallet_path"`
	LedgerCAURL      string `toml:"ledger_ca_url"`

	LedgerEndorsers     []string `toml:"ledger_endorsers"`
	LedgerQuorumMinSize int      `toml:"ledger_quorum_min_size"`
	LedgerEndorserID    string   `toml:"ledger_endorser_id"`

	SigningKeyStore    string  `toml:"signing_key_store"`
	BiometricThreshold float64 `toml:"biometric_threshold"`
	InternalAPIKey   string `toml:"internal_api_key"`
	TokenSigningKeys string `toml:"token_signing_key_set"`
	TokenTTL         time.Duration `toml:"token_ttl"`
	RefreshTTL       time.Duration `toml:"refresh_ttl"`

	UploadDir        string   `toml:"upload_dir"`
	MaxUploadBytes   int64    `toml:"max_upload_bytes"`
	AllowedMediaTypes []string `toml:"allowed_media_types"`

	// AzureStorageConnectionString/AzureStorageContainer switch
	// internal/filestore from the local backend to the Azure Blob
	// backend when AzureStorageConnectionString is set
	// (AzureStorageContainer names the container). Operator opt-in, not part of spec.md
	// §6's enumerated env vars (mirrors internal/filestore's own doc
	// comment on Azure being a deployment secret, not a core env var).
	AzureStorageConnectionString string `toml:"azure_storage_connection_string"`
	AzureStorageContainer        string `toml:"azure_storage_container"`

	ScannerURL     string        `toml:"scanner_url"`
	ScannerTimeout time.Duration `toml:"scanner_timeout"`

	OutboxMaxAttempts int           `toml:"outbox_max_attempts"`
	OutboxBaseBackoff time.Duration `toml:"outbox_base_backoff"`
	LedgerOutboxDir   string        `toml:"ledger_outbox_dir"`

	// AuditBufferPath is where internal/audit persists records that
	// failed to append while a shard's store was unavailable.
	AuditBufferPath string `toml:"audit_buffer_path"`

	Metrics metrics.Config `toml:"metrics"`

	ListenAddr string `toml:"listen_addr"`
}

// Defaults mirrors tos/tosconfig.Defaults: a package-level value a caller
// starts from before applying environment overrides.
var Defaults = Config{
	UploadDir:         "/var/lib/versafe/uploads",
	MaxUploadBytes:    100 << 20, // 100 MiB
	AllowedMediaTypes: []string{"application/pdf", "text/plain", "image/png", "image/jpeg"},
	TokenTTL:          15 * time.Minute,
	RefreshTTL:        30 * 24 * time.Hour,
	ScannerTimeout:    10 * time.Second,
	OutboxMaxAttempts:   8,
	OutboxBaseBackoff:   500 * time.Millisecond,
	LedgerOutboxDir:     "/var/lib/versafe/outbox",
	AuditBufferPath:     "/var/lib/versafe/audit-buffer",
	LedgerQuorumMinSize: 1,
	BiometricThreshold:  0.9,
	Metrics:             metrics.DefaultConfig,
	ListenAddr:          ":8443",
}

// Load reads an optional TOML file at path (skipped if path is empty or
// the file does not exist) on top of Defaults, then applies every
// environment variable enumerated in spec.md §6, which always wins.
func Load(path string) (Config, error) {
	cfg := Defaults
	if path != "" {
		if f, err := os.Open(path); err == nil {
			defer f.Close()
			if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
				return cfg, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: open %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	i64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	f64 := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}

	str("DB_URL", &cfg.DBURL)
	str("REDIS_URL", &cfg.RedisURL)
	str("LEDGER_CHANNEL", &cfg.LedgerChannel)
	str("LEDGER_CHAINCODE", &cfg.LedgerChaincode)
	str("LEDGER_MSP_ID", &cfg.LedgerMSPID)
	str("LEDGER_WALLET_PATH", &cfg.LedgerWalletPath)
	str("LEDGER_CA_URL", &cfg.LedgerCAURL)
	if v, ok := os.LookupEnv("LEDGER_ENDORSERS"); ok {
		cfg.LedgerEndorsers = strings.Split(v, ",")
	}
	i("LEDGER_QUORUM_MIN_SIZE", &cfg.LedgerQuorumMinSize)
	str("LEDGER_ENDORSER_ID", &cfg.LedgerEndorserID)
	str("SIGNING_KEY_STORE", &cfg.SigningKeyStore)
	f64("BIOMETRIC_THRESHOLD", &cfg.BiometricThreshold)
	str("INTERNAL_API_KEY", &cfg.InternalAPIKey)
	str("TOKEN_SIGNING_KEY_SET", &cfg.TokenSigningKeys)
	dur("TOKEN_TTL", &cfg.TokenTTL)
	dur("REFRESH_TTL", &cfg.RefreshTTL)
	str("UPLOAD_DIR", &cfg.UploadDir)
	i64("MAX_UPLOAD_BYTES", &cfg.MaxUploadBytes)
	if v, ok := os.LookupEnv("ALLOWED_MEDIA_TYPES"); ok {
		cfg.AllowedMediaTypes = strings.Split(v, ",")
	}
	str("SCANNER_URL", &cfg.ScannerURL)
	dur("SCANNER_TIMEOUT", &cfg.ScannerTimeout)
	i("OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	dur("OUTBOX_BASE_BACKOFF", &cfg.OutboxBaseBackoff)
	str("LEDGER_OUTBOX_DIR", &cfg.LedgerOutboxDir)
	str("AUDIT_BUFFER_PATH", &cfg.AuditBufferPath)
	str("AZURE_STORAGE_CONNECTION_STRING", &cfg.AzureStorageConnectionString)
	str("AZURE_STORAGE_CONTAINER", &cfg.AzureStorageContainer)
	str("LISTEN_ADDR", &cfg.ListenAddr)
}

// SigningKeySet splits TOKEN_SIGNING_KEY_SET on commas: the active set of
// keys the Identity Verifier accepts (spec.md §4.1 — "accepts any key in
// the active set").
func (c Config) SigningKeySet() []string {
	if c.TokenSigningKeys == "" {
		return nil
	}
	return strings.Split(c.TokenSigningKeys, ",")
}
