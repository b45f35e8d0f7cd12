package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Signup registers an account and logs it straight in.
func (s *Service) Signup(ctx context.Context, email, password, role string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = RoleOperator
	}
	if role != RoleAdmin && role != RoleOperator {
		return nil, "", shared.NewValidationError("role", "must be admin or operator")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	user, err := s.repo.Create(ctx, User{Email: email, PasswordHash: string(hash), Role: role})
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(ctx, shared.Principal{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Login validates email/password credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.authenticate(ctx, strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(ctx, shared.Principal{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
