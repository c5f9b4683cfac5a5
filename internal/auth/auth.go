// Package auth authenticates storefront calls to the checkout API.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
)

type Claims struct {
	Subject string
	Issuer  string
	// Store identifies the storefront that minted the token.
	Store string
}

type Authenticator interface {
	Authenticate(r *http.Request) (Claims, error)
}

// MultiAuthenticator accepts the dev token when one is configured, then
// falls back to storefront-signed JWTs.
type MultiAuthenticator struct {
	DevToken   string
	Storefront *StorefrontAuthenticator
}

func NewAuthenticator(devToken, jwtSecret, issuer, audience string) *MultiAuthenticator {
	a := &MultiAuthenticator{DevToken: devToken}
	if jwtSecret != "" {
		a.Storefront = NewStorefrontAuthenticator([]byte(jwtSecret), issuer, audience)
	}
	return a
}

func (a *MultiAuthenticator) Authenticate(r *http.Request) (Claims, error) {
	bearer, err := extractBearer(r)
	if err != nil {
		return Claims{}, err
	}

	if a.DevToken != "" && bearer == a.DevToken {
		return Claims{Subject: "dev", Issuer: "checkout-dev"}, nil
	}
	if a.Storefront != nil {
		return a.Storefront.AuthenticateBearer(bearer)
	}
	return Claims{}, ErrInvalidToken
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
