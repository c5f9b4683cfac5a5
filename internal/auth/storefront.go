package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StorefrontAuthenticator verifies HS256 tokens minted by the storefront
// backend with a shared secret.
type StorefrontAuthenticator struct {
	Secret   []byte
	Issuer   string
	Audience string
	// Leeway tolerates clock skew between the storefront and this service.
	Leeway time.Duration
}

func NewStorefrontAuthenticator(secret []byte, issuer, audience string) *StorefrontAuthenticator {
	if audience == "" {
		audience = "checkout"
	}
	return &StorefrontAuthenticator{Secret: secret, Issuer: issuer, Audience: audience, Leeway: 30 * time.Second}
}

type storefrontClaims struct {
	jwt.RegisteredClaims

	Store string `json:"store"`
}

func (a *StorefrontAuthenticator) AuthenticateBearer(token string) (Claims, error) {
	if token == "" || len(a.Secret) == 0 {
		return Claims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(a.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.Leeway),
	}
	if a.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Issuer))
	}

	claims := &storefrontClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
		Store:   firstNonEmpty(claims.Store, claims.Subject),
	}, nil
}

// Mint signs a token for subject. The CLI and tests use it to stand in for
// the storefront.
func (a *StorefrontAuthenticator) Mint(subject, store string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := storefrontClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{a.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Store: store,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
