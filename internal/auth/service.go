// Package auth implements the session-based authentication core:
// credential policy, signup/login orchestration across the relational
// identity store and the key-value session store, and request-time
// session resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/knowledgehub/service-api-go/internal/session"
	"github.com/knowledgehub/service-api-go/internal/user/entity"
	"github.com/knowledgehub/service-api-go/internal/user/repo"
	"github.com/knowledgehub/service-api-go/pkg/utilities"
)

var (
	// ErrInvalidCredentials covers both "no such email" and "wrong
	// password". Collapsing the two keeps login responses from leaking
	// which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is the uniform failure for every session
	// resolution path: missing token, expired or deleted session,
	// dangling user reference.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionCreation indicates the identity side of signup/login
	// succeeded but no live session could be written.
	ErrSessionCreation = errors.New("session creation failed")
)

// WeakPasswordError carries the first violated strength rule.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string { return e.Reason }

// Users is the slice of the identity repository the coordinator needs.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByPublicID(ctx context.Context, publicID string) (*entity.User, error)
	Create(ctx context.Context, email, passwordHash, displayName string) (*entity.User, error)
	DeleteByID(ctx context.Context, id int64) error
}

// Service orchestrates signup, login, logout and session resolution.
// It holds no mutable state; all coordination lives in the two stores.
type Service struct {
	users    Users
	sessions session.Store
	hasher   PasswordHasher
	logger   *zap.SugaredLogger

	sessionTTL time.Duration
	dbTimeout  time.Duration

	// placeholderHash is verified against when login hits an unknown
	// email, so the absent-user path costs a bcrypt comparison too.
	placeholderHash string
}

// NewService wires the coordinator. A nil hasher defaults to bcrypt.
func NewService(users Users, sessions session.Store, hasher PasswordHasher, logger *zap.SugaredLogger, sessionTTL time.Duration) (*Service, error) {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	placeholder, err := hasher.Hash(utilities.NewKSUID())
	if err != nil {
		return nil, fmt.Errorf("prepare placeholder hash: %w", err)
	}
	return &Service{
		users:           users,
		sessions:        sessions,
		hasher:          hasher,
		logger:          logger,
		sessionTTL:      sessionTTL,
		dbTimeout:       5 * time.Second,
		placeholderHash: placeholder,
	}, nil
}

// SessionTTL exposes the configured session lifetime so the HTTP layer
// can set a matching cookie max-age.
func (s *Service) SessionTTL() time.Duration { return s.sessionTTL }

func (s *Service) dbCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.dbTimeout)
}

// Signup registers a new identity and opens a session for it.
//
// Step order matters. The password check and the duplicate pre-check run
// before any side effect. The user insert is a durable commit with no
// surrounding transaction covering the session write, so a session
// failure afterwards is compensated with an explicit delete of the
// just-created row, never assumed to roll back on its own.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (*entity.User, string, error) {
	if ok, reason := ValidateStrength(password); !ok {
		return nil, "", &WeakPasswordError{Reason: reason}
	}

	lookupCtx, cancel := s.dbCtx(ctx)
	_, err := s.users.GetByEmail(lookupCtx, email)
	cancel()
	if err == nil {
		return nil, "", repo.ErrDuplicateEmail
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, "", fmt.Errorf("duplicate pre-check: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	createCtx, cancel := s.dbCtx(ctx)
	u, err := s.users.Create(createCtx, email, hash, displayName)
	cancel()
	if err != nil {
		// The pre-check above is only an optimization; the unique
		// constraint catches the race between two concurrent signups.
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, "", repo.ErrDuplicateEmail
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	sessionID, err := s.sessions.Create(ctx, u.PublicID, s.sessionTTL)
	if err != nil {
		s.compensateSignup(ctx, u, err)
		return nil, "", ErrSessionCreation
	}

	return u, sessionID, nil
}

// compensateSignup deletes the identity a failed signup left behind.
// It runs on a cancel-immune context: a client disconnect mid-signup
// must not abandon the orphan silently. When even the delete fails, the
// orphan is logged with a reference id for manual reconciliation.
func (s *Service) compensateSignup(ctx context.Context, u *entity.User, cause error) {
	refID := utilities.NewSnowflakeID()
	s.logger.Errorw("durable identity created without live session",
		"ref_id", refID,
		"user_public_id", u.PublicID,
		"err", cause,
	)

	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dbTimeout)
	defer cancel()
	if err := s.users.DeleteByID(compCtx, u.ID); err != nil {
		s.logger.Errorw("compensating delete failed; orphaned identity needs manual reconciliation",
			"ref_id", refID,
			"user_public_id", u.PublicID,
			"err", err,
		)
		return
	}
	s.logger.Infow("compensating delete completed", "ref_id", refID, "user_public_id", u.PublicID)
}

// Login verifies credentials and opens a session.
//
// An unknown email does not short-circuit: the placeholder hash is
// verified instead, so the timing of the absent-user path matches the
// wrong-password path.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, string, error) {
	lookupCtx, cancel := s.dbCtx(ctx)
	u, err := s.users.GetByEmail(lookupCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.hasher.Verify(s.placeholderHash, password)
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	sessionID, err := s.sessions.Create(ctx, u.PublicID, s.sessionTTL)
	if err != nil {
		// No new durable state this time, so nothing to compensate.
		s.logger.Errorw("session creation failed on login", "user_public_id", u.PublicID, "err", err)
		return nil, "", ErrSessionCreation
	}

	return u, sessionID, nil
}

// Logout invalidates the session. Deleting an unknown or already-expired
// token is not an error; the boundary clears the cookie either way. A
// store outage is logged at error level but not surfaced, since the
// cookie removal is the part the client observes and the TTL reaps the
// server-side record.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	existed, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		s.logger.Errorw("session delete failed on logout", "err", err)
		return
	}
	if !existed {
		s.logger.Debugw("logout for unknown or expired session")
	}
}

// Resolve maps a bearer token to the identity behind it. Every failure
// mode (missing token, invalid or vanished session, dangling user
// reference) collapses to ErrUnauthorized so callers cannot tell them
// apart. Only a store outage is reported distinctly.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*entity.User, error) {
	if sessionID == "" {
		return nil, ErrUnauthorized
	}

	valid, err := s.sessions.IsValid(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	if !valid {
		return nil, ErrUnauthorized
	}

	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		// Expired or deleted between the validity check and the read.
		return nil, ErrUnauthorized
	}

	lookupCtx, cancel := s.dbCtx(ctx)
	defer cancel()
	u, err := s.users.GetByPublicID(lookupCtx, rec.UserPublicID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Dangling session reference; inconsistent, not corrupt.
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return u, nil
}
