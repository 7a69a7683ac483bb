package model

import (
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
)

// RefreshSession is one link in a refresh-token rotation chain. Every
// Issue/Refresh call creates a new row sharing FamilyID with its
// predecessor; re-presenting a Consumed token means the family has been
// stolen and the whole family must be revoked (spec.md §4.1).
type RefreshSession struct {
	ID        idgen.ID
	UserID    idgen.ID
	FamilyID  idgen.ID
	TokenHash []byte
	Consumed  bool
	Revoked   bool
	Expiry    time.Time
	CreatedAt time.Time
}

func (s *RefreshSession) IsExpired(now time.Time) bool {
	return now.After(s.Expiry)
}

func (s *RefreshSession) IsUsable(now time.Time) bool {
	return !s.Consumed && !s.Revoked && !s.IsExpired(now)
}
