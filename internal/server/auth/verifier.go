// Package auth verifies bearer tokens and resolves them to a requester id.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/skybox/internal/common"
)

// Verifier turns a raw bearer token into the verified subject.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// classify maps jwt parse failures onto common sentinels. Every result also
// matches common.ErrorUnauthorized.
func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrTokenExpired)
	}
	return fmt.Errorf("%w: %w: %v", common.ErrorUnauthorized, common.ErrInvalidToken, err)
}

func subjectOf(token *jwt.Token, claims jwt.Claims) (string, error) {
	if !token.Valid {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrInvalidToken)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: %w: missing sub", common.ErrorUnauthorized, common.ErrInvalidToken)
	}
	return sub, nil
}
