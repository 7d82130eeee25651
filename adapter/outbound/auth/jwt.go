package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies HS256 JWTs for the single admin
// principal, grounded on the teacher's auth_service.go token pattern but
// without a multi-user database: the claimed subject is always "admin".
type TokenService struct {
	secret []byte
	expiry time.Duration
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiry: expiry}
}

// Issue mints a signed token for the admin principal.
func (s *TokenService) Issue(issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": "admin",
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(s.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates token, returning the subject claim on success.
func (s *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return "", ErrInvalidToken
	}

	return sub, nil
}
