package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"votecore/internal/domain"
	"votecore/internal/service"
	"votecore/pkg/errors"
	"votecore/pkg/logger"
)

// Service verifies HMAC-signed bearer tokens
type Service struct {
	secret []byte
	logger *logger.Logger
}

// NewService creates a new auth service
func NewService(secret string, logger *logger.Logger) service.AuthService {
	return &Service{
		secret: []byte(secret),
		logger: logger,
	}
}

// ValidateToken verifies the token signature and expiry and returns the user in its claims
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.AuthenticatedUser, error) {
	if len(s.secret) == 0 {
		s.logger.Error("JWT_SECRET not configured")
		return nil, errors.NewAuthenticationError("Token validation not configured")
	}
	if !isJWTToken(tokenString) {
		return nil, errors.NewAuthenticationError("Unrecognized token format")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		s.logger.WithError(err).Debug("Failed to validate JWT token")
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewAuthenticationError("Invalid token claims")
	}

	user := &domain.AuthenticatedUser{
		ID:    getStringValue(claims, "sub"),
		Email: getStringValue(claims, "email"),
		Name:  getStringValue(claims, "name"),
	}
	if user.ID == "" {
		user.ID = getStringValue(claims, "user_id")
	}
	if user.ID == "" {
		return nil, errors.NewAuthenticationError("Invalid token: no user identifier")
	}

	s.logger.WithField("user_id", user.ID).Debug("JWT token validated")
	return user, nil
}

// IssueToken signs a token for user valid for ttl; used by tooling and tests
func IssueToken(secret string, user *domain.AuthenticatedUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func isJWTToken(token string) bool {
	return len(strings.Split(token, ".")) == 3
}

func getStringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
