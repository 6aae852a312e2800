package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven/mocks"
)

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc := NewAuthService(mocks.NewMockAuthAdapter())
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "dashboard", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	auth, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", auth.Subject)
	assert.True(t, auth.IsAdmin())
}

func TestAuthService_ValidateRejects(t *testing.T) {
	adapter := mocks.NewMockAuthAdapter()
	svc := NewAuthService(adapter)
	ctx := context.Background()

	expired, err := adapter.GenerateToken(&domain.TokenClaims{
		Subject:   "dashboard",
		Role:      domain.RoleMember,
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)
	noRole, err := adapter.GenerateToken(domain.NewTokenClaims("dashboard", "", time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", domain.ErrUnauthorized},
		{"garbage", "%%%", domain.ErrTokenInvalid},
		{"expired", expired, domain.ErrTokenExpired},
		{"unknown role", noRole, domain.ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_IssueValidation(t *testing.T) {
	svc := NewAuthService(mocks.NewMockAuthAdapter())
	ctx := context.Background()

	_, err := svc.IssueToken(ctx, " ", domain.RoleAdmin, time.Hour)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.IssueToken(ctx, "ci", "root", time.Hour)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.IssueToken(ctx, "ci", domain.RoleMember, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
