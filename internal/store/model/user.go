package model

import (
	"strings"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// User is an account holder (spec.md §3). Never hard-deleted; IsRevoked
// soft-revokes instead.
type User struct {
	ID           idgen.ID
	Email        string // stored lower-cased; see NormalizeEmail
	DisplayName  string
	PasswordHash []byte // argon2id output, see internal/identity
	IsVerified   bool
	IsRevoked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail canonicalises an email for the case-insensitive
// uniqueness rule in spec.md §3 ("email (unique, case-insensitive)").
// Uses golang.org/x/text/cases rather than strings.ToLower so the fold is
// locale-independent Unicode case folding, not a byte-wise ASCII lowercase.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(caseFold(email))
}
