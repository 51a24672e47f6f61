package workflow

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "ambudictate"

// issueToken signs an HS256 token naming the session owner and id.
func (c *Controller) issueToken(sess *Session) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   sess.Owner,
		ID:        sess.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.TokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("workflow: signing token: %w", err)
	}
	return signed, nil
}

// parseToken verifies a token and returns its owner and session id.
func (c *Controller) parseToken(token string) (string, uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil || claims.Subject == "" {
		return "", uuid.Nil, fmt.Errorf("%w: malformed token claims", ErrNotAuthenticated)
	}
	return claims.Subject, id, nil
}
