package identity

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// SessionStore is the persistence surface session rotation needs; the
// postgres.RefreshSessions repository satisfies it.
type SessionStore interface {
	Create(ctx context.Context, s *model.RefreshSession) error
	GetByTokenHash(ctx context.Context, hash []byte) (*model.RefreshSession, error)
	MarkConsumed(ctx context.Context, id idgen.ID) (bool, error)
	RevokeFamily(ctx context.Context, familyID idgen.ID) error
}

// Sessions issues and rotates refresh tokens on top of an Issuer,
// enforcing the reuse-detection contract in spec.md §4.1.
type Sessions struct {
	issuer     *Issuer
	store      SessionStore
	refreshTTL time.Duration
}

func NewSessions(issuer *Issuer, store SessionStore, refreshTTL time.Duration) *Sessions {
	return &Sessions{issuer: issuer, store: store, refreshTTL: refreshTTL}
}

func hashRefreshToken(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

// Login mints a fresh token pair and starts a new rotation family.
func (s *Sessions) Login(ctx context.Context, p Principal) (TokenPair, error) {
	pair, err := s.issuer.Issue(p)
	if err != nil {
		return TokenPair{}, err
	}
	familyID := idgen.New()
	session := &model.RefreshSession{
		ID:        idgen.New(),
		UserID:    p.UserID,
		FamilyID:  familyID,
		TokenHash: hashRefreshToken(pair.Refresh),
		Expiry:    time.Now().Add(s.refreshTTL),
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return TokenPair{}, fmt.Errorf("identity: persist refresh session: %w", err)
	}
	return pair, nil
}

// Refresh consumes rawRefresh and, if it is a live unused token, rotates it
// into a new pair within the same family. Presenting an already-consumed
// token is treated as token theft: the entire family is revoked and
// ErrRefreshReused is returned so the caller can emit an audit record and
// force re-authentication (spec.md §4.1, §8 Security). A revoked or
// expired token is rejected with a Validation error and the family is
// left as it is.
func (s *Sessions) Refresh(ctx context.Context, p Principal, rawRefresh string) (TokenPair, error) {
	hash := hashRefreshToken(rawRefresh)
	session, err := s.store.GetByTokenHash(ctx, hash)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindValidation, "refresh token not recognized", err)
	}
	if session.Revoked || session.IsExpired(time.Now()) {
		return TokenPair{}, apperr.New(apperr.KindValidation, "refresh token is no longer valid")
	}
	if session.Consumed {
		if revokeErr := s.store.RevokeFamily(ctx, session.FamilyID); revokeErr != nil {
			return TokenPair{}, fmt.Errorf("identity: revoke reused session family: %w", revokeErr)
		}
		return TokenPair{}, apperr.Wrap(apperr.KindConflict, "refresh token reuse detected", apperr.ErrRefreshReused)
	}

	consumed, err := s.store.MarkConsumed(ctx, session.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("identity: mark refresh session consumed: %w", err)
	}
	if !consumed {
		// Lost the race to a concurrent refresh of the same token: treat
		// exactly like a reuse, since exactly one caller should win.
		if revokeErr := s.store.RevokeFamily(ctx, session.FamilyID); revokeErr != nil {
			return TokenPair{}, fmt.Errorf("identity: revoke raced session family: %w", revokeErr)
		}
		return TokenPair{}, apperr.Wrap(apperr.KindConflict, "refresh token reuse detected", apperr.ErrRefreshReused)
	}

	pair, err := s.issuer.Issue(p)
	if err != nil {
		return TokenPair{}, err
	}
	next := &model.RefreshSession{
		ID:        idgen.New(),
		UserID:    p.UserID,
		FamilyID:  session.FamilyID,
		TokenHash: hashRefreshToken(pair.Refresh),
		Expiry:    time.Now().Add(s.refreshTTL),
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, next); err != nil {
		return TokenPair{}, fmt.Errorf("identity: persist rotated refresh session: %w", err)
	}
	return pair, nil
}

// Logout revokes the whole family backing rawRefresh, ending the session.
func (s *Sessions) Logout(ctx context.Context, rawRefresh string) error {
	session, err := s.store.GetByTokenHash(ctx, hashRefreshToken(rawRefresh))
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "refresh token not recognized", err)
	}
	return s.store.RevokeFamily(ctx, session.FamilyID)
}
