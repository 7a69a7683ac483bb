// Package identity implements the Identity Verifier (spec.md §4.1):
// token issuance/verification against a rotating key set, a short-lived
// verification cache, and refresh-token rotation with reuse detection.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/versafe/versafe-core/internal/idgen"
)

// Failure modes named in spec.md §4.1.
var (
	ErrInvalidToken = errors.New("identity: invalid token")
	ErrExpired      = errors.New("identity: token expired")
	ErrUnknownKey   = errors.New("identity: signer key id not in active key set")
)

// Principal is the authenticated identity attached to a request after
// token verification (spec.md glossary).
type Principal struct {
	UserID idgen.ID
	Email  string
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// KeySet holds the active signing keys, keyed by key id (kid), so the
// verifier "accepts any key in the active set" while new tokens are always
// issued under the current key (spec.md §4.1 — rotation without a flag
// day).
type KeySet struct {
	keys      map[string][]byte
	currentID string
}

// NewKeySet builds a KeySet from raw secrets (TOKEN_SIGNING_KEY_SET,
// comma-separated — see internal/config). The first entry is the current
// signing key; all entries are accepted for verification.
func NewKeySet(secrets []string) (*KeySet, error) {
	if len(secrets) == 0 {
		return nil, errors.New("identity: no signing keys configured")
	}
	ks := &KeySet{keys: make(map[string][]byte, len(secrets))}
	for i, s := range secrets {
		kid := keyID(s)
		ks.keys[kid] = []byte(s)
		if i == 0 {
			ks.currentID = kid
		}
	}
	return ks, nil
}

func keyID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

// Issuer mints access/refresh token pairs (spec.md §4.1: issue(user, ttl)).
type Issuer struct {
	keys       *KeySet
	tokenTTL   time.Duration
	refreshTTL time.Duration
}

func NewIssuer(keys *KeySet, tokenTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{keys: keys, tokenTTL: tokenTTL, refreshTTL: refreshTTL}
}

// TokenPair is what /auth/login and /auth/refresh hand back to the client.
type TokenPair struct {
	Token        string
	Refresh      string
	RefreshNonce string // same value as Refresh; Sessions persists only a SHA-256 hash of Refresh
}

// Issue mints a fresh access token and an opaque refresh token for user.
func (i *Issuer) Issue(p Principal) (TokenPair, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.tokenTTL)),
			KeyID:     i.keys.currentID,
		},
		Email: p.Email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	tok.Header["kid"] = i.keys.currentID
	signed, err := tok.SignedString(i.keys.keys[i.keys.currentID])
	if err != nil {
		return TokenPair{}, fmt.Errorf("identity: sign token: %w", err)
	}

	refresh, nonce, err := newRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Token: signed, Refresh: refresh, RefreshNonce: nonce}, nil
}

func newRefreshToken() (token string, nonce string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("identity: generate refresh token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, token, nil
}

// Verifier checks bearer tokens (spec.md §4.1: verify(token) -> Principal).
type Verifier struct {
	keys *KeySet
}

func NewVerifier(keys *KeySet) *Verifier {
	return &Verifier{keys: keys}
}

// Verify parses and validates a raw JWT, trying every key in the active
// set (spec.md §4.1: "accepts any key in the active set").
func (v *Verifier) Verify(raw string) (Principal, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := v.keys.keys[kid]
		if !ok {
			return nil, ErrUnknownKey
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpired
		}
		if errors.Is(err, ErrUnknownKey) {
			return Principal{}, ErrUnknownKey
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return Principal{}, ErrInvalidToken
	}
	userID, err := idgen.Parse(c.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: subject %v", ErrInvalidToken, err)
	}
	return Principal{UserID: userID, Email: c.Email}, nil
}
