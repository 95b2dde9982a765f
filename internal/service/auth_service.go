package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/internal/util"
)

// UserStore is the persistence surface the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
	UpdatePassword(ctx context.Context, userID int, hash string) error
}

// TokenRevoker is the logout denylist. Revoked tokens are rejected by the
// auth middleware until they would have expired anyway.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type AuthService struct {
	users     UserStore
	tokens    TokenRevoker
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(users UserStore, tokens TokenRevoker, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Register creates a new user. An empty role defaults to developer.
func (s *AuthService) Register(ctx context.Context, name, email, password, role string) (*model.User, error) {
	if role == "" {
		role = model.RoleDeveloper
	}
	if !model.ValidRole(role) {
		return nil, apperr.NewValidation("role", "must be one of admin, project_manager, developer")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.NewValidation("email", "already registered")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Int("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// Login checks credentials and returns a signed token. The same error is
// returned for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", apperr.ErrUnauthenticated
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", apperr.ErrUnauthenticated
	}

	token, err := util.GenerateJWT(u.ID, s.jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}

// Logout denylists the presented token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	exp, err := util.TokenExpiry(token, s.jwtSecret)
	if err != nil {
		return apperr.ErrUnauthenticated
	}
	if exp.IsZero() {
		exp = time.Now().Add(24 * time.Hour)
	}
	return s.tokens.Revoke(ctx, token, exp)
}

// Resolve turns a bearer token into the acting user, rejecting revoked or
// invalid tokens. Used by the auth middleware.
func (s *AuthService) Resolve(ctx context.Context, token string) (*model.User, error) {
	revoked, err := s.tokens.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.ErrUnauthenticated
	}

	userID, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *model.User, current, next string) error {
	if !util.CheckPassword(current, actor.PasswordHash) {
		return apperr.NewValidation("current_password", "does not match")
	}

	hash, err := util.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, actor.ID, hash)
}
