// Package auth verifies the bearer tokens issued by the external identity
// provider and provisions local accounts from their claims.
package auth

import (
	"errors"
	"fmt"
	"time"

	"frontpage/models"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a presented token can be unusable:
// malformed, expired, wrong signature, or missing the email claim.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the OIDC profile subset the identity provider puts in its
// tokens.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Nickname      string `json:"nickname"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// Profile converts the claims into provisioning input.
func (c *Claims) Profile() models.Profile {
	return models.Profile{
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		Nickname:      c.Nickname,
		Name:          c.Name,
		Picture:       c.Picture,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
	}
}

// ParseToken verifies the signature and expiry of raw and returns its
// claims. Tokens without an email claim are rejected, since email is the
// account key.
func ParseToken(raw string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueToken signs a token carrying the profile. Deployments receive tokens
// from the identity provider; this backs the token command for local
// development.
func IssueToken(profile models.Profile, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		GivenName:     profile.GivenName,
		FamilyName:    profile.FamilyName,
		Nickname:      profile.Nickname,
		Name:          profile.Name,
		Picture:       profile.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
