package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService validates and issues API bearer tokens
type authService struct {
	authAdapter driven.AuthAdapter
}

// NewAuthService creates a new AuthService
func NewAuthService(authAdapter driven.AuthAdapter) driving.AuthService {
	return &authService{authAdapter: authAdapter}
}

// ValidateToken parses a token and returns the caller it authenticates
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.IsExpired() {
		return nil, domain.ErrTokenExpired
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.IsValid() {
		return nil, domain.ErrTokenInvalid
	}
	return &domain.AuthContext{Subject: claims.Subject, Role: claims.Role}, nil
}

// IssueToken signs a token for subject, valid for ttl
func (s *authService) IssueToken(ctx context.Context, subject string, role domain.Role, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if !role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", domain.ErrValidation)
	}
	return s.authAdapter.GenerateToken(domain.NewTokenClaims(subject, role, ttl))
}
