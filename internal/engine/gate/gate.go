// Package gate is the admin session gate: it checks the shared admin
// password and mints/verifies the signed session token carried in the
// admin cookie.
package gate

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CookieName is the cookie carrying the admin session token.
	CookieName = "admin_session"
	// SessionTTL bounds how long a minted session stays valid.
	SessionTTL = 24 * time.Hour
	// Subject is the identity baked into every session token.
	Subject = "admin"
)

// placeholderPassword is the widely published default of the system
// this one replaces. It is refused outright so a deployment can never
// run with it, intentionally or not.
const placeholderPassword = "admin123"

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Gate verifies the admin password and manages session tokens. The
// password is held as a sha256 digest so comparisons are fixed-length
// and constant-time.
type Gate struct {
	passwordDigest [sha256.Size]byte
	secret         []byte
	Now            func() time.Time
}

// New builds a Gate. The admin password and the token signing secret
// must both be non-empty, and the password must not be the published
// placeholder default.
func New(adminPassword, sessionSecret string) (*Gate, error) {
	if strings.TrimSpace(adminPassword) == "" {
		return nil, errors.New("admin password is required")
	}
	if adminPassword == placeholderPassword {
		return nil, fmt.Errorf("admin password %q is a published default and is refused; set a real password", placeholderPassword)
	}
	if strings.TrimSpace(sessionSecret) == "" {
		return nil, errors.New("session secret is required")
	}
	return &Gate{
		passwordDigest: sha256.Sum256([]byte(adminPassword)),
		secret:         []byte(sessionSecret),
		Now:            time.Now,
	}, nil
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// CheckPassword compares a login attempt against the configured admin
// password in constant time.
func (g *Gate) CheckPassword(attempt string) error {
	digest := sha256.Sum256([]byte(attempt))
	if subtle.ConstantTimeCompare(digest[:], g.passwordDigest[:]) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// IssueToken mints a signed session token valid for SessionTTL.
func (g *Gate) IssueToken() (string, error) {
	now := g.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   Subject,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// VerifyToken checks a session token's signature, expiry and subject.
func (g *Gate) VerifyToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrUnauthorized
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrUnauthorized
	}
	if claims.Subject != Subject {
		return ErrUnauthorized
	}
	return nil
}

// SessionCookie wraps a token in the admin session cookie.
func SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie clears the admin session cookie.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
