package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the payload of the signed session cookie. It is never
// persisted server-side; the cookie holds the whole thing.
type Session struct {
	SubjectID        string   `json:"subjectId"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Country          string   `json:"country"`
	EmploymentType   string   `json:"employmentType,omitempty"`
	CompanyName      string   `json:"companyName,omitempty"`
	Permissions      []string `json:"permissions"`
	Customers        []string `json:"customers,omitempty"`
	RestrictedBrands []string `json:"restrictedBrands,omitempty"`
	// Su carries the original superuser email while impersonating.
	Su string `json:"su,omitempty"`
}

// HasPermission reports whether the session carries the permission.
func (s *Session) HasPermission(name string) bool {
	for _, p := range s.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

type sessionClaims struct {
	Session Session `json:"session"`
	jwt.RegisteredClaims
}

// clockSkewLeeway absorbs clock drift between issuer and verifier.
const clockSkewLeeway = 5 * time.Second

// SignSession signs a session into a compact token valid for ttl.
func SignSession(secret []byte, session *Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		Session: *session,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// VerifySession validates a signed session token and returns its payload.
func VerifySession(secret []byte, tokenString string) (*Session, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithLeeway(clockSkewLeeway))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}

	return &claims.Session, nil
}
