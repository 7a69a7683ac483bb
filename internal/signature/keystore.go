package signature

import (
	"fmt"
	"os"
	"path/filepath"
)

// KeyStore resolves a signer's enrolled DIGITAL key material. DirKeyStore
// is its only implementation: internal/core wires one over the configured
// directory, and tests use one over a temporary directory.
type KeyStore interface {
	Enroll(signerID string, algo KeyAlgo, passphrase string) (*Key, error)
	Get(signerID, passphrase string) (*Key, error)
	Has(signerID string) bool
}

// DirKeyStore persists one encrypted envelope per signer under a root
// directory, named by signer id rather than the teacher's UTC--timestamp
// convention (VerSafe looks keys up by signer, not by listing a wallet).
type DirKeyStore struct {
	dir string
}

func NewDirKeyStore(dir string) (*DirKeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("signature: create keystore directory: %w", err)
	}
	return &DirKeyStore{dir: dir}, nil
}

func (s *DirKeyStore) path(signerID string) string {
	return filepath.Join(s.dir, signerID+".json")
}

func (s *DirKeyStore) Enroll(signerID string, algo KeyAlgo, passphrase string) (*Key, error) {
	k, err := NewKey(signerID, algo)
	if err != nil {
		return nil, err
	}
	data, err := EncryptKey(k, passphrase)
	if err != nil {
		return nil, err
	}
	path := s.path(signerID)
	tmp, err := os.CreateTemp(s.dir, ".enroll.tmp")
	if err != nil {
		return nil, fmt.Errorf("signature: create temp key file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("signature: write temp key file: %w", err)
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("signature: finalize key file: %w", err)
	}
	return k, nil
}

func (s *DirKeyStore) Get(signerID, passphrase string) (*Key, error) {
	return ReadKeyFile(s.path(signerID), passphrase)
}

func (s *DirKeyStore) Has(signerID string) bool {
	_, err := os.Stat(s.path(signerID))
	return err == nil
}
