package service

import (
	"context"

	"votecore/internal/domain"
)

// AuthService defines the interface for authentication operations
type AuthService interface {
	// ValidateToken verifies a bearer token and returns the user it identifies
	ValidateToken(ctx context.Context, token string) (*domain.AuthenticatedUser, error)
}
