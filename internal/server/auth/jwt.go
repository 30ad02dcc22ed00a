// Package auth issues and verifies the HS256 access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Kind selects the signing context of a token.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

// Payload is the identity carried by both token kinds.
type Payload struct {
	UserID string
	Email  string
}

// Claims is the JWT body: the registered claims plus the user's id and email.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
}

type signingContext struct {
	secret []byte
	ttl    time.Duration
}

// Issuer signs tokens with one secret and lifetime per Kind. It holds no
// per-token state, so a token is only invalidated by its expiry.
type Issuer struct {
	access  signingContext
	refresh signingContext
	now     func() time.Time
}

func NewIssuer(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		access:  signingContext{secret: []byte(accessSecret), ttl: accessTTL},
		refresh: signingContext{secret: []byte(refreshSecret), ttl: refreshTTL},
		now:     time.Now,
	}
}

func (i *Issuer) context(kind Kind) signingContext {
	if kind == Refresh {
		return i.refresh
	}
	return i.access
}

// RefreshTTL is the refresh token lifetime; the refresh cookie lives as long.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refresh.ttl
}

func (i *Issuer) IssueAccess(p Payload) (string, error) {
	return i.issue(Access, p)
}

func (i *Issuer) IssueRefresh(p Payload) (string, error) {
	return i.issue(Refresh, p)
}

func (i *Issuer) issue(kind Kind, p Payload) (string, error) {
	sc := i.context(kind)
	now := i.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sc.ttl)),
		},
		UserID: p.UserID,
		Email:  p.Email,
	})

	tokenString, err := token.SignedString(sc.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return tokenString, nil
}

// Verify checks the signature, algorithm and expiry of tokenString in the
// given context. Every failure wraps common.ErrInvalidToken; expiry also
// wraps common.ErrTokenExpired.
func (i *Issuer) Verify(tokenString string, kind Kind) (*Payload, error) {
	sc := i.context(kind)
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return sc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return &Payload{UserID: claims.UserID, Email: claims.Email}, nil
}
