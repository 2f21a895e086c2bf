package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
)

type Service struct {
	users  UserStore
	hasher *PasswordHasher
	tokens *JWTManager
}

func NewService(users UserStore, hasher *PasswordHasher, tokens *JWTManager) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	if req.Login == "" || req.Password == "" {
		return TokenResponse{}, apperr.Validation("login and password are required")
	}
	u, err := s.users.UserByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenResponse{}, apperr.Unauthorized("invalid login or password")
		}
		return TokenResponse{}, err
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		return TokenResponse{}, apperr.Unauthorized("invalid login or password")
	}
	return s.issue(Identity{UserID: u.ID, Login: u.Login, Role: u.Role})
}

// Refresh issues a fresh token for an identity whose token already verified.
func (s *Service) Refresh(id Identity) (TokenResponse, error) {
	return s.issue(id)
}

// Verify turns a bearer token into the identity it was issued for.
func (s *Service) Verify(token string) (Identity, error) {
	return s.tokens.Validate(token)
}

// CurrentRole reads the role from storage so that a role change takes effect
// before the caller's token expires.
func (s *Service) CurrentRole(ctx context.Context, userID int64) (Role, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// EnsureUser creates the account when no user with that login exists.
func (s *Service) EnsureUser(ctx context.Context, login, password string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("ensure user %q: unknown role %q", login, role)
	}
	if _, err := s.users.UserByLogin(ctx, login); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("ensure user %q: %w", login, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("ensure user %q: hash password: %w", login, err)
	}
	if _, err := s.users.CreateUser(ctx, User{Login: login, PasswordHash: hash, Role: role}); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil
		}
		return fmt.Errorf("ensure user %q: %w", login, err)
	}
	return nil
}

func (s *Service) issue(id Identity) (TokenResponse, error) {
	token, err := s.tokens.Generate(id)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return TokenResponse{Token: token, ExpiresIn: s.tokens.TTLSeconds()}, nil
}
