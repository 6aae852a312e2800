package driving

import (
	"context"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
)

// AuthService validates API bearer tokens
type AuthService interface {
	// ValidateToken parses a token and returns the caller it authenticates
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken signs a token for subject, valid for ttl
	IssueToken(ctx context.Context, subject string, role domain.Role, ttl time.Duration) (string, error)
}
