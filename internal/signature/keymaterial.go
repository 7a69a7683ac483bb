// Package signature implements the Signature Engine (spec.md §4.6):
// producing and verifying ELECTRONIC, DIGITAL, and BIOMETRIC signatures,
// and the DIGITAL signer's enrolled key material.
package signature

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/scrypt"
)

// KeyAlgo is one of the three DIGITAL signing algorithms spec.md §4.6 names.
type KeyAlgo string

const (
	AlgoRSAPSS    KeyAlgo = "RSA-PSS-SHA256"
	AlgoECDSAP256 KeyAlgo = "ECDSA-P256"
	AlgoEd25519   KeyAlgo = "Ed25519"
)

// Key holds one signer's enrolled DIGITAL key material, tagged by algorithm
// the way the teacher's keystore.Key tags by SignerType — only one of the
// three private-key fields is populated per key.
type Key struct {
	ID                uuid.UUID
	SignerID          string
	Algo              KeyAlgo
	RSAPrivateKey     *rsa.PrivateKey
	ECDSAPrivateKey   *ecdsa.PrivateKey
	Ed25519PrivateKey ed25519.PrivateKey
	Mnemonic          string // recovery phrase, only ever populated for Ed25519 enrollment
}

// PublicKeyBytes returns a stable encoding of the public half for storage
// in a Certificate.
func (k *Key) PublicKeyBytes() ([]byte, error) {
	switch k.Algo {
	case AlgoRSAPSS:
		if k.RSAPrivateKey == nil {
			return nil, errors.New("signature: missing rsa private key")
		}
		return x509.MarshalPKCS1PublicKey(&k.RSAPrivateKey.PublicKey), nil
	case AlgoECDSAP256:
		if k.ECDSAPrivateKey == nil {
			return nil, errors.New("signature: missing ecdsa private key")
		}
		return elliptic.Marshal(elliptic.P256(), k.ECDSAPrivateKey.X, k.ECDSAPrivateKey.Y), nil
	case AlgoEd25519:
		if len(k.Ed25519PrivateKey) == 0 {
			return nil, errors.New("signature: missing ed25519 private key")
		}
		pub, ok := k.Ed25519PrivateKey.Public().(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("signature: invalid ed25519 public key")
		}
		return []byte(pub), nil
	default:
		return nil, fmt.Errorf("signature: unsupported key algorithm %q", k.Algo)
	}
}

// NewKey generates fresh key material for algo.
func NewKey(signerID string, algo KeyAlgo) (*Key, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("signature: generate key id: %w", err)
	}
	k := &Key{ID: id, SignerID: signerID, Algo: algo}

	switch algo {
	case AlgoRSAPSS:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("signature: generate rsa key: %w", err)
		}
		k.RSAPrivateKey = priv
	case AlgoECDSAP256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("signature: generate ecdsa key: %w", err)
		}
		k.ECDSAPrivateKey = priv
	case AlgoEd25519:
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return nil, fmt.Errorf("signature: generate ed25519 entropy: %w", err)
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, fmt.Errorf("signature: derive mnemonic: %w", err)
		}
		seed := bip39.NewSeed(mnemonic, "")[:ed25519.SeedSize]
		k.Ed25519PrivateKey = ed25519.NewKeyFromSeed(seed)
		k.Mnemonic = mnemonic
	default:
		return nil, fmt.Errorf("signature: unsupported key algorithm %q", algo)
	}
	return k, nil
}

// --- at-rest encrypted envelope, Web3-Secret-Storage-shaped (grounded on
// keystore.encryptedKeyJSONV3/CryptoJSON): scrypt-derived key, AES-128-CTR,
// HMAC-style MAC over (derived-mac-half ‖ ciphertext). Single KDF instead
// of go-ethereum's pluggable KDF switch, since VerSafe only ever writes
// its own envelopes. ---

const (
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

type cryptoJSON struct {
	CipherText string                 `json:"ciphertext"`
	IV         string                 `json:"iv"`
	KDFParams  map[string]interface{} `json:"kdfparams"`
	MAC        string                 `json:"mac"`
}

type encryptedKeyJSON struct {
	ID       string     `json:"id"`
	SignerID string     `json:"signer_id"`
	Algo     KeyAlgo    `json:"algo"`
	Crypto   cryptoJSON `json:"crypto"`
}

// plaintextKeyBytes encodes the full private key (not just a scalar) so
// DecryptKey can reconstruct every field, including RSA's CRT primes.
func plaintextKeyBytes(k *Key) ([]byte, error) {
	switch k.Algo {
	case AlgoRSAPSS:
		return x509.MarshalPKCS1PrivateKey(k.RSAPrivateKey), nil
	case AlgoECDSAP256:
		return x509.MarshalECPrivateKey(k.ECDSAPrivateKey)
	case AlgoEd25519:
		return []byte(k.Ed25519PrivateKey), nil
	default:
		return nil, fmt.Errorf("signature: unsupported key algorithm %q", k.Algo)
	}
}

func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("signature: build cipher: %w", err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

// EncryptKey seals k's private key material under passphrase.
func EncryptKey(k *Key, passphrase string) ([]byte, error) {
	plain, err := plaintextKeyBytes(k)
	if err != nil {
		return nil, err
	}
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("signature: read salt: %w", err)
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("signature: derive key: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("signature: read iv: %w", err)
	}
	cipherText, err := aesCTR(derived[:16], iv, plain)
	if err != nil {
		return nil, err
	}
	mac := sha256.Sum256(append(append([]byte{}, derived[16:32]...), cipherText...))

	envelope := encryptedKeyJSON{
		ID:       k.ID.String(),
		SignerID: k.SignerID,
		Algo:     k.Algo,
		Crypto: cryptoJSON{
			CipherText: hex.EncodeToString(cipherText),
			IV:         hex.EncodeToString(iv),
			KDFParams: map[string]interface{}{
				"n":     scryptN,
				"r":     scryptR,
				"p":     scryptP,
				"dklen": scryptKeyLen,
				"salt":  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac[:]),
		},
	}
	return json.Marshal(envelope)
}

// DecryptKey reverses EncryptKey, returning a Key with only the relevant
// private-key field populated.
func DecryptKey(data []byte, passphrase string) (*Key, error) {
	var envelope encryptedKeyJSON
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("signature: decode key envelope: %w", err)
	}
	saltHex, _ := envelope.Crypto.KDFParams["salt"].(string)
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("signature: decode salt: %w", err)
	}
	iv, err := hex.DecodeString(envelope.Crypto.IV)
	if err != nil {
		return nil, fmt.Errorf("signature: decode iv: %w", err)
	}
	cipherText, err := hex.DecodeString(envelope.Crypto.CipherText)
	if err != nil {
		return nil, fmt.Errorf("signature: decode ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(envelope.Crypto.MAC)
	if err != nil {
		return nil, fmt.Errorf("signature: decode mac: %w", err)
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("signature: derive key: %w", err)
	}
	wantMAC := sha256.Sum256(append(append([]byte{}, derived[16:32]...), cipherText...))
	if hex.EncodeToString(wantMAC[:]) != hex.EncodeToString(mac) {
		return nil, errors.New("signature: invalid passphrase or corrupted key file")
	}
	plain, err := aesCTR(derived[:16], iv, cipherText)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(envelope.ID)
	if err != nil {
		return nil, fmt.Errorf("signature: parse key id: %w", err)
	}
	k := &Key{ID: id, SignerID: envelope.SignerID, Algo: envelope.Algo}
	switch envelope.Algo {
	case AlgoRSAPSS:
		priv, err := x509.ParsePKCS1PrivateKey(plain)
		if err != nil {
			return nil, fmt.Errorf("signature: parse rsa private key: %w", err)
		}
		k.RSAPrivateKey = priv
	case AlgoECDSAP256:
		priv, err := x509.ParseECPrivateKey(plain)
		if err != nil {
			return nil, fmt.Errorf("signature: parse ecdsa private key: %w", err)
		}
		k.ECDSAPrivateKey = priv
	case AlgoEd25519:
		if len(plain) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("signature: invalid recovered ed25519 key size: %d", len(plain))
		}
		k.Ed25519PrivateKey = ed25519.PrivateKey(plain)
	default:
		return nil, fmt.Errorf("signature: unsupported key algorithm %q", envelope.Algo)
	}
	return k, nil
}

// WriteKeyFile persists an encrypted envelope atomically (temp file then
// rename), the same durability idiom the teacher's writeKeyFile uses.
func WriteKeyFile(dir string, k *Key, passphrase string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("signature: create key directory: %w", err)
	}
	data, err := EncryptKey(k, passphrase)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, k.ID.String()+".json")
	tmp, err := os.CreateTemp(dir, "."+k.ID.String()+".tmp")
	if err != nil {
		return "", fmt.Errorf("signature: create temp key file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("signature: write temp key file: %w", err)
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("signature: finalize key file: %w", err)
	}
	return path, nil
}

// ReadKeyFile loads and decrypts an envelope previously written by
// WriteKeyFile.
func ReadKeyFile(path, passphrase string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signature: read key file: %w", err)
	}
	return DecryptKey(data, passphrase)
}
