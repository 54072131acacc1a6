package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/apperr"
	"github.com/iliyamo/futsal-booking/internal/config"
	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/repository"
	"github.com/iliyamo/futsal-booking/internal/utils"
)

// Login lockout policy.
const (
	MaxLoginAttempts = 5
	LockoutDuration  = 15 * time.Minute
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	RecordLoginFailure(ctx context.Context, id uint64, maxAttempts int, lockUntil time.Time) error
	ResetLoginFailures(ctx context.Context, id uint64) error
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// AuthService registers users and issues token pairs.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	cfg    config.Config
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService wires the auth flow.
func NewAuthService(users UserStore, tokens TokenStore, cfg config.Config, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, cfg: cfg, log: log, now: time.Now}
}

// Session is a user with a freshly issued token pair.
type Session struct {
	User    *model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Register creates an account and logs it in. Unknown roles become
// CUSTOMER.
func (s *AuthService) Register(ctx context.Context, name, email, password, role string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.New(apperr.Validation, "a valid email is required")
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != model.RoleOwner {
		role = model.RoleCustomer
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if errors.Is(err, utils.ErrWeakPassword) {
		return nil, apperr.Wrap(apperr.Validation, err.Error(), err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not hash password", err)
	}
	id, err := s.users.Create(ctx, strings.TrimSpace(name), email, hash, role)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil, apperr.New(apperr.Validation, "email already registered")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not create user", err)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load user", err)
	}
	return s.issue(ctx, u)
}

// Login checks credentials. Every failure counts toward the lockout; the
// fifth in a row locks the account for LockoutDuration.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	now := s.now().UTC()
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load user", err)
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.Unauthorized, "account disabled")
	}
	if u.Locked(now) {
		return nil, apperr.New(apperr.Forbidden, "account temporarily locked after repeated failed logins")
	}
	if u.LockUntil != nil {
		// lock expired; start counting afresh
		if err := s.users.ResetLoginFailures(ctx, u.ID); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "could not update user", err)
		}
		u.LoginAttempts, u.LockUntil = 0, nil
	}

	if !utils.VerifyPassword(u.PasswordHash, password) {
		if err := s.users.RecordLoginFailure(ctx, u.ID, MaxLoginAttempts, now.Add(LockoutDuration)); err != nil {
			s.log.Error("record login failure", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
		if u.LoginAttempts+1 >= MaxLoginAttempts {
			s.log.Warn("account locked", zap.Uint64("user_id", u.ID))
		}
		return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	if u.LoginAttempts > 0 {
		if err := s.users.ResetLoginFailures(ctx, u.ID); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "could not update user", err)
		}
		u.LoginAttempts = 0
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is
// issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	userID, err := s.tokens.ValidateRefresh(ctx, hash, s.now())
	if errors.Is(err, repository.ErrRefreshInvalid) {
		return nil, apperr.New(apperr.Unauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not check refresh token", err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not revoke refresh token", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.New(apperr.Unauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load user", err)
	}
	return s.issue(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperr.New(apperr.Validation, "refresh_token is required")
	}
	if err := s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw))); err != nil {
		return apperr.Wrap(apperr.Internal, "could not revoke refresh token", err)
	}
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (*Session, error) {
	now := s.now()
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, time.Duration(s.cfg.AccessTTLMin)*time.Minute, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(time.Duration(s.cfg.RefreshTTLDays)*24*time.Hour, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not issue refresh token", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not store refresh token", err)
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}
