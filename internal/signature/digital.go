package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/store/model"
)

// ErrSignatureInvalid is returned when a DIGITAL signature fails
// cryptographic verification against the claimed public key.
var ErrSignatureInvalid = errors.New("signature: cryptographic verification failed")

// signDigital implements spec.md §4.6's DIGITAL production: data =
// document.digest ‖ signer_id ‖ timestamp, signed with the signer's
// enrolled key under RSA-PSS/SHA-256, ECDSA-P-256, or Ed25519.
func signDigital(key *Key, data []byte) ([]byte, error) {
	switch key.Algo {
	case AlgoRSAPSS:
		if key.RSAPrivateKey == nil {
			return nil, fmt.Errorf("signature: %w", apperr.ErrNoKeyMaterial)
		}
		digest := sha256.Sum256(data)
		return rsa.SignPSS(rand.Reader, key.RSAPrivateKey, crypto.SHA256, digest[:], nil)
	case AlgoECDSAP256:
		if key.ECDSAPrivateKey == nil {
			return nil, fmt.Errorf("signature: %w", apperr.ErrNoKeyMaterial)
		}
		digest := sha256.Sum256(data)
		return ecdsa.SignASN1(rand.Reader, key.ECDSAPrivateKey, digest[:])
	case AlgoEd25519:
		if len(key.Ed25519PrivateKey) == 0 {
			return nil, fmt.Errorf("signature: %w", apperr.ErrNoKeyMaterial)
		}
		return ed25519.Sign(key.Ed25519PrivateKey, data), nil
	default:
		return nil, fmt.Errorf("signature: unsupported digital key algorithm %q", key.Algo)
	}
}

// verifyDigitalSignature checks sig against data using the public key
// embedded in cert.
func verifyDigitalSignature(cert *x509.Certificate, algo KeyAlgo, data, sig []byte) error {
	switch algo {
	case AlgoRSAPSS:
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("signature: certificate does not carry an rsa public key")
		}
		digest := sha256.Sum256(data)
		if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil); err != nil {
			return ErrSignatureInvalid
		}
		return nil
	case AlgoECDSAP256:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("signature: certificate does not carry an ecdsa public key")
		}
		digest := sha256.Sum256(data)
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return ErrSignatureInvalid
		}
		return nil
	case AlgoEd25519:
		pub, ok := cert.PublicKey.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("signature: certificate does not carry an ed25519 public key")
		}
		if !ed25519.Verify(pub, data, sig) {
			return ErrSignatureInvalid
		}
		return nil
	default:
		return fmt.Errorf("signature: unsupported digital key algorithm %q", algo)
	}
}

func produceDigital(e *Engine, req SignRequest) (producedFields, error) {
	if req.Key == nil {
		return producedFields{}, fmt.Errorf("signature: %w", apperr.ErrNoKeyMaterial)
	}
	data := digitalSigningData(req.DocumentDigest, req.SignerID[:], req.Now)
	sig, err := signDigital(req.Key, data)
	if err != nil {
		return producedFields{}, err
	}

	verified := true
	verificationMethod := string(req.Key.Algo)
	if e.Certs != nil {
		cert, err := CheckCertificate(e.Certs, req.SignerID.String(), req.Now)
		if err != nil {
			verified = false
		} else if verifyErr := verifyDigitalSignature(cert, req.Key.Algo, data, sig); verifyErr != nil {
			verified = false
		}
	}

	return producedFields{
		Payload:             sig,
		VerificationMethod:  verificationMethod,
		Verified:            verified,
	}, nil
}

func digitalSigningData(documentDigest, signerID []byte, timestamp time.Time) []byte {
	data := make([]byte, 0, len(documentDigest)+len(signerID)+len(time.RFC3339Nano))
	data = append(data, documentDigest...)
	data = append(data, signerID...)
	data = append(data, []byte(timestamp.UTC().Format(time.RFC3339Nano))...)
	return data
}

// verifyDigital re-runs the certificate and signature checks for the
// `verify(signature_id)` operation (spec.md §4.6/§4.7): a certificate that
// has since expired or been revoked flips a previously-verified DIGITAL
// signature to unverified without touching the stored payload.
func verifyDigital(certs CertStore, sig *model.Signature, documentDigest []byte, algo KeyAlgo, now time.Time) (bool, error) {
	if certs == nil {
		return sig.Verified, nil
	}
	cert, err := CheckCertificate(certs, sig.SignerID.String(), now)
	if err != nil {
		if errors.Is(err, ErrCertificateExpired) || errors.Is(err, ErrCertificateRevoked) {
			return false, nil
		}
		return false, err
	}
	data := digitalSigningData(documentDigest, sig.SignerID[:], sig.CreatedAt)
	if err := verifyDigitalSignature(cert, algo, data, sig.Payload); err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
