package ratelimit

import (
	"fmt"

	"github.com/nullcaster/videoroom-gateway/internal/v1/auth"
)

// MockValidator is a test double with auth.Validator's ValidateToken method
type MockValidator struct {
	ValidateTokenFunc func(tokenString string) (*auth.CustomClaims, error)
}

// ValidateToken mirrors auth.Validator.ValidateToken
func (m *MockValidator) ValidateToken(tokenString string) (*auth.CustomClaims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	// Default: return error (invalid token)
	return nil, fmt.Errorf("invalid token")
}
