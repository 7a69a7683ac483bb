package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
	"github.com/versafe/versafe-core/internal/store/postgres"
)

// UserStore is the persistence surface Authenticator needs for
// registration and login; postgres.Users satisfies it.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id idgen.ID) (*model.User, error)
}

// Authenticator implements `POST /auth/register`, `/auth/login`, and
// `/auth/refresh` (spec.md §6) on top of UserStore, HashPassword/
// ComparePassword, and Sessions.
type Authenticator struct {
	users    UserStore
	sessions *Sessions
	limiter  *LoginLimiter
}

func NewAuthenticator(users UserStore, sessions *Sessions, limiter *LoginLimiter) *Authenticator {
	return &Authenticator{users: users, sessions: sessions, limiter: limiter}
}

// Register creates a new user with an argon2id-hashed password. The email
// is normalized before both the uniqueness check and storage.
func (a *Authenticator) Register(ctx context.Context, email, password, displayName string) (*model.User, error) {
	normalized := model.NormalizeEmail(email)
	if normalized == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "email and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	now := time.Now()
	user := &model.User{
		ID:           idgen.New(),
		Email:        normalized,
		DisplayName:  displayName,
		PasswordHash: []byte(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.KindConflict, "email already registered", err)
	}
	return user, nil
}

// Login verifies email/password, rate-limiting repeated attempts per
// normalized email (SUPPLEMENTED FEATURES: brute-force mitigation), and on
// success starts a new refresh-token session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	normalized := model.NormalizeEmail(email)
	if a.limiter != nil && !a.limiter.Allow(normalized) {
		return nil, TokenPair{}, apperr.New(apperr.KindSecurity, "too many login attempts, slow down")
	}

	user, err := a.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, TokenPair{}, apperr.New(apperr.KindAuth, "invalid email or password")
		}
		return nil, TokenPair{}, apperr.Internal("look up user by email", err)
	}
	if user.IsRevoked {
		return nil, TokenPair{}, apperr.New(apperr.KindAuth, "account is revoked")
	}
	ok, err := ComparePassword(password, string(user.PasswordHash))
	if err != nil {
		return nil, TokenPair{}, apperr.Internal("compare password hash", err)
	}
	if !ok {
		return nil, TokenPair{}, apperr.New(apperr.KindAuth, "invalid email or password")
	}

	pair, err := a.sessions.Login(ctx, Principal{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("identity: start session: %w", err)
	}
	return user, pair, nil
}

// Refresh rotates rawRefresh into a new pair for the user it was issued to.
func (a *Authenticator) Refresh(ctx context.Context, rawRefresh string, userID idgen.ID) (TokenPair, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, apperr.New(apperr.KindAuth, "unknown user")
	}
	return a.sessions.Refresh(ctx, Principal{UserID: user.ID, Email: user.Email}, rawRefresh)
}
