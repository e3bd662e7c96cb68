package extractor

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mockly/internal/model"
)

type Extractor interface {
	Get(h http.Header, name string) []string
	GetFirst(h http.Header, name string) string
	GetUserID(h http.Header) (string, error)
	GetStatus(h http.Header) string
	GetToken(h http.Header) string
	GetRoleIDs(h http.Header) []string
	GetXForwardedFor(h http.Header) string
	GetOwner(h http.Header) (string, error)
}

// Claims is the bearer token payload. UserID wins over the subject.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

type extractor struct {
	secret []byte
}

// New returns an extractor that trusts the x-user-id header. With a non-empty
// secret it reads the owner from an HS256 bearer token instead.
func New(secret string) Extractor {
	e := &extractor{}
	if secret != "" {
		e.secret = []byte(secret)
	}
	return e
}

func (t *extractor) Get(h http.Header, name string) []string {
	return h.Values(name)
}

func (t *extractor) GetFirst(h http.Header, name string) string {
	return strings.TrimSpace(h.Get(name))
}

func (t *extractor) GetUserID(h http.Header) (string, error) {
	userID := t.GetFirst(h, UserID)
	if userID == "" {
		return "", errors.New("header does not have x-user-id")
	}
	return userID, nil
}

func (t *extractor) GetStatus(h http.Header) string {
	return strings.ToLower(t.GetFirst(h, Status))
}

func (t *extractor) GetToken(h http.Header) string {
	token, ok := strings.CutPrefix(t.GetFirst(h, Authorization), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func (t *extractor) GetRoleIDs(h http.Header) []string {
	return t.Get(h, RoleID)
}

func (t *extractor) GetXForwardedFor(h http.Header) string {
	return strings.Join(t.Get(h, XForwardedFor), ",")
}

// GetOwner resolves the caller. It fails with model.ErrIdentityNotLoaded
// while the identity provider is still loading and with
// model.ErrUnauthenticated when the caller is signed out or unknown.
func (t *extractor) GetOwner(h http.Header) (string, error) {
	switch t.GetStatus(h) {
	case StatusLoading:
		return "", model.ErrIdentityNotLoaded
	case StatusSignedOut:
		return "", model.ErrUnauthenticated
	}

	if t.secret != nil {
		token := t.GetToken(h)
		if token == "" {
			return "", model.ErrUnauthenticated
		}
		owner, err := t.ownerFromToken(token)
		if err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrUnauthenticated, err)
		}
		return owner, nil
	}

	owner, err := t.GetUserID(h)
	if err != nil {
		return "", model.ErrUnauthenticated
	}
	return owner, nil
}

func (t *extractor) ownerFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errors.New("token has no subject")
}

// GenerateToken signs an HS256 token for userID.
func GenerateToken(userID string, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	})
	return token.SignedString(secret)
}
