package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

func TestGenerateAndParseToken(t *testing.T) {
	adapter := NewAdapter("test-secret")
	claims := domain.NewTokenClaims("dashboard", domain.RoleAdmin, time.Hour)

	token, err := adapter.GenerateToken(claims)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if parsed.Subject != "dashboard" {
		t.Errorf("expected subject dashboard, got %s", parsed.Subject)
	}
	if parsed.Role != domain.RoleAdmin {
		t.Errorf("expected role admin, got %s", parsed.Role)
	}
	if parsed.ExpiresAt != claims.ExpiresAt || parsed.IssuedAt != claims.IssuedAt {
		t.Errorf("timestamps not preserved: %+v vs %+v", parsed, claims)
	}
}

func TestParseToken_Expired(t *testing.T) {
	adapter := NewAdapter("test-secret")
	claims := &domain.TokenClaims{
		Subject:   "dashboard",
		Role:      domain.RoleMember,
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}

	token, err := adapter.GenerateToken(claims)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	adapter := NewAdapter("test-secret")
	other := NewAdapter("other-secret")
	valid, _ := other.GenerateToken(domain.NewTokenClaims("x", domain.RoleMember, time.Hour))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, _ := foreign.SignedString([]byte("test-secret"))

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "x"},
	})
	noExpiryToken, _ := noExpiry.SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", valid},
		{"wrong issuer", foreignToken},
		{"no expiry", noExpiryToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := adapter.ParseToken(tt.token); !errors.Is(err, domain.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	adapter := NewAdapter("test-secret")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
