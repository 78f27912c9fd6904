// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ysam020/hrms-sub000/pkg/user"
)

// DefaultJWTGenerator issues and verifies session tokens for authenticated
// users. It signs with HMAC-SHA256 when configured with a shared secret, or
// with the asymmetric algorithm matching the configured private key.
type DefaultJWTGenerator struct {
	secret     []byte
	privateKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   []string
	expiresIn  time.Duration
}

// JWTGeneratorConfig contains configuration for the JWT generator.
type JWTGeneratorConfig struct {
	// Secret is the HMAC signing secret. Exactly one of Secret and
	// PrivateKey must be set.
	Secret []byte
	// PrivateKey is an ECDSA, RSA, or Ed25519 signing key.
	PrivateKey crypto.PrivateKey
	// Issuer is the JWT issuer claim (default: "hrms").
	Issuer string
	// Audience is the JWT audience claim (default: ["hrms"]).
	Audience []string
	// ExpiresIn is how long tokens are valid (default: 1 hour).
	ExpiresIn time.Duration
}

// NewDefaultJWTGenerator creates a new JWT generator with the given configuration.
func NewDefaultJWTGenerator(config *JWTGeneratorConfig) (*DefaultJWTGenerator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Secret) == 0 && config.PrivateKey == nil {
		return nil, fmt.Errorf("a secret or private key is required")
	}
	if len(config.Secret) > 0 && config.PrivateKey != nil {
		return nil, fmt.Errorf("secret and private key are mutually exclusive")
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "hrms"
	}

	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"hrms"}
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	g := &DefaultJWTGenerator{
		secret:     config.Secret,
		privateKey: config.PrivateKey,
		issuer:     issuer,
		audience:   audience,
		expiresIn:  expiresIn,
	}

	switch key := config.PrivateKey.(type) {
	case nil:
		g.method = jwt.SigningMethodHS256
	case *ecdsa.PrivateKey:
		g.method = jwt.SigningMethodES256
		g.publicKey = key.Public()
	case *rsa.PrivateKey:
		g.method = jwt.SigningMethodRS256
		g.publicKey = key.Public()
	case ed25519.PrivateKey:
		g.method = jwt.SigningMethodEdDSA
		g.publicKey = key.Public()
	default:
		return nil, fmt.Errorf("unsupported private key type %T", config.PrivateKey)
	}

	return g, nil
}

// GenerateToken creates a JWT for the authenticated user.
func (g *DefaultJWTGenerator) GenerateToken(ctx context.Context, u *user.User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss": g.issuer,
		"aud": g.audience,
		"sub": EncodeBase64(u.ID),
		"iat": now.Unix(),
		"exp": now.Add(g.expiresIn).Unix(),
		"nbf": now.Unix(),
		// Custom claims
		"name":     u.WebAuthnDisplayName(),
		"username": u.Username,
	}

	token := jwt.NewWithClaims(g.method, claims)
	return token.SignedString(g.signingKey())
}

// VerifyToken verifies a JWT and returns its claims.
func (g *DefaultJWTGenerator) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != g.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return g.verificationKey(), nil
	},
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid claims")
	}
	return claims, nil
}

// Issuer returns the configured issuer.
func (g *DefaultJWTGenerator) Issuer() string {
	return g.issuer
}

// ExpiresIn returns the token expiration duration.
func (g *DefaultJWTGenerator) ExpiresIn() time.Duration {
	return g.expiresIn
}

func (g *DefaultJWTGenerator) signingKey() any {
	if g.privateKey != nil {
		return g.privateKey
	}
	return g.secret
}

func (g *DefaultJWTGenerator) verificationKey() any {
	if g.publicKey != nil {
		return g.publicKey
	}
	return g.secret
}
