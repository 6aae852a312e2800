package driven

import "github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"

// AuthAdapter handles API token cryptographic operations.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
