package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// AccessLevel is the permission a ShareGrant confers (spec.md §3). A grant
// never elevates above the granter's own rights — enforced by the caller
// that issues the grant, not by this type.
type AccessLevel string

const (
	AccessView    AccessLevel = "VIEW"
	AccessComment AccessLevel = "COMMENT"
	AccessEdit    AccessLevel = "EDIT"
)

// accessRank orders AccessLevel so a granter can be checked against
// elevation: rank(grantee) must never exceed rank(granter).
var accessRank = map[AccessLevel]int{
	AccessView:    1,
	AccessComment: 2,
	AccessEdit:    3,
}

// Elevates reports whether granting `access` would exceed what
// `granterAccess` itself holds.
func Elevates(granterAccess, access AccessLevel) bool {
	return accessRank[access] > accessRank[granterAccess]
}

// ShareGrant is a bounded-use invite to view/comment/edit a Document.
type ShareGrant struct {
	ID           idgen.ID
	DocumentID   idgen.ID
	GranterID    idgen.ID
	GranteeEmail string
	Access       AccessLevel
	Token        string
	MaxUses      int
	UsedCount    int
	Expiry       time.Time
	Message      string
	CreatedAt    time.Time
}

// IsExhausted reports whether the grant has no remaining uses.
func (g *ShareGrant) IsExhausted() bool {
	return g.MaxUses > 0 && g.UsedCount >= g.MaxUses
}

// IsExpired reports whether now is at or past the grant's expiry.
func (g *ShareGrant) IsExpired(now time.Time) bool {
	return !g.Expiry.IsZero() && !now.Before(g.Expiry)
}
