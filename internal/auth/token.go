package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "scholarportal"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of the session cookie. Subject is the user id and ID the session id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies HS256 session tokens.
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSigner returns a signer for secret. A nil clock means time.Now.
func NewTokenSigner(secret string, now func() time.Time) (*TokenSigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: session secret is not configured")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenSigner{secret: []byte(secret), now: now}, nil
}

// Sign issues a token bound to sess.
func (t *TokenSigner) Sign(sess *Session, role Role) (string, error) {
	if sess == nil || strings.TrimSpace(sess.UserID) == "" || sess.ID == "" {
		return "", errors.New("session with user and id is required")
	}
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			ID:        sess.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and required claims.
func (t *TokenSigner) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
