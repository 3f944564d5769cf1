package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purposes for one-shot signed tokens delivered over email. A token issued
// for one purpose never verifies under another.
const (
	PurposeEmailVerify = "email-verify"
	PurposeEmailChange = "email-change"
)

var (
	ErrTokenExpired      = errors.New("signed token has expired")
	ErrTokenInvalid      = errors.New("signed token is invalid")
	ErrTokenWrongPurpose = errors.New("signed token issued for a different purpose")
)

// signedClaims carries an opaque string payload plus the purpose tag
type signedClaims struct {
	Purpose string            `json:"purpose"`
	Data    map[string]string `json:"data"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies purpose-scoped, time-limited signed tokens
// (email verification, password reset confirmation, email change).
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a token service signing with the given secret
func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Issue signs payload under the given purpose with the given time to live
func (s *TokenService) Issue(payload map[string]string, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := signedClaims{
		Purpose: purpose,
		Data:    payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature, expiry and purpose, and returns the payload.
// Expired tokens report ErrTokenExpired; everything else (bad signature,
// malformed token, purpose mismatch) reports ErrTokenInvalid or
// ErrTokenWrongPurpose.
func (s *TokenService) Verify(tokenString, purpose string) (map[string]string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &signedClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*signedClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Purpose != purpose {
		return nil, ErrTokenWrongPurpose
	}

	return claims.Data, nil
}
