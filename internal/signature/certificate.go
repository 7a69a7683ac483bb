package signature

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// ErrCertificateExpired/ErrCertificateRevoked are the two ways a DIGITAL
// signature's binding certificate can fail validation (spec.md §4.6,
// invariant "a DIGITAL signature produced with an expired certificate
// fails verification").
var (
	ErrCertificateExpired = errors.New("signature: binding certificate is outside its validity window")
	ErrCertificateRevoked = errors.New("signature: binding certificate has been revoked")
)

// CertStore resolves and tracks revocation for the certificates binding a
// signer's public key, kept separate from KeyStore (which holds private
// material): a revoked certificate does not necessarily mean the private
// key leaked, only that the binding is no longer trusted.
type CertStore interface {
	// Get returns the certificate currently bound to signerID.
	Get(signerID string) (*x509.Certificate, error)
	// IsRevoked reports whether cert has been revoked (MemCertStore
	// revokes by signer, not by serial number).
	IsRevoked(cert *x509.Certificate) bool
}

// CheckCertificate validates the validity window and revocation status of
// cert as of now.
func CheckCertificate(store CertStore, signerID string, now time.Time) (*x509.Certificate, error) {
	cert, err := store.Get(signerID)
	if err != nil {
		return nil, fmt.Errorf("signature: resolve certificate: %w", err)
	}
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return nil, ErrCertificateExpired
	}
	if store.IsRevoked(cert) {
		return nil, ErrCertificateRevoked
	}
	return cert, nil
}

// MemCertStore is a simple in-memory CertStore and the only CertStore
// implementation; internal/core wires it in production too, so bindings
// and revocations do not survive a restart (spec.md leaves certificate
// issuance out of scope, only validation).
type MemCertStore struct {
	certs    map[string]*x509.Certificate
	revoked  map[string]bool
}

func NewMemCertStore() *MemCertStore {
	return &MemCertStore{certs: make(map[string]*x509.Certificate), revoked: make(map[string]bool)}
}

func (m *MemCertStore) Bind(signerID string, cert *x509.Certificate) {
	m.certs[signerID] = cert
}

func (m *MemCertStore) Revoke(signerID string) {
	m.revoked[signerID] = true
}

func (m *MemCertStore) Get(signerID string) (*x509.Certificate, error) {
	cert, ok := m.certs[signerID]
	if !ok {
		return nil, fmt.Errorf("signature: no certificate bound to signer %q", signerID)
	}
	return cert, nil
}

func (m *MemCertStore) IsRevoked(cert *x509.Certificate) bool {
	for signerID, bound := range m.certs {
		if bound == cert {
			return m.revoked[signerID]
		}
	}
	return false
}
