// Package token issues and verifies the signed bearer tokens used for
// stateless authentication. Validity is purely a function of the
// signature and expiry; nothing is persisted server-side.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/placementhub/apiserver/types"
)

// DefaultTTL is the token lifetime used when config does not override it.
const DefaultTTL = 24 * time.Hour

var errInvalidToken = errors.New("invalid token")

// Claims is the JWT payload: registered claims plus the role claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared HMAC secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService constructs a token service. A non-positive ttl falls back
// to DefaultTTL.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given subject and role.
func (s *Service) Issue(subjectID string, role types.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Verify parses and validates a token string, returning the subject id
// and role. Bad signatures, malformed structures, expired tokens, and
// wrong signing methods all fail identically.
func (s *Service) Verify(tokenString string) (string, types.Role, error) {
	claims := Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", 0, errInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", 0, errInvalidToken
	}
	role, err := types.ParseRole(claims.Role)
	if err != nil {
		return "", 0, errInvalidToken
	}
	return subject, role, nil
}
