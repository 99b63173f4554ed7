// Package auth verifies identity-provider bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"

	"dailyplan/internal/apperr"
)

// FirebaseJWKSURL serves the public keys Firebase signs ID tokens with.
const FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	ExternalID string
	Name       string
	Email      string
}

// Verifier validates ID tokens issued for one Firebase project. In test mode
// tokens are HS256-signed with a shared secret instead.
type Verifier struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte

	parser *jwt.Parser
}

// NewFirebaseVerifier checks RS256 tokens against the given key set.
func NewFirebaseVerifier(jwks *keyfunc.JWKS, projectID string) *Verifier {
	return &Verifier{
		JWKS:     jwks,
		Audience: projectID,
		Issuer:   "https://securetoken.google.com/" + projectID,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

// NewTestVerifier checks HS256 tokens signed with secret. Audience and
// issuer are enforced only when projectID is set.
func NewTestVerifier(secret, projectID string) *Verifier {
	v := &Verifier{
		TestMode:   true,
		TestSecret: []byte(secret),
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
	if projectID != "" {
		v.Audience = projectID
		v.Issuer = "https://securetoken.google.com/" + projectID
	}
	return v
}

// LoadFirebaseJWKS fetches the Firebase key set and keeps it refreshed in
// the background until ctx ends.
func LoadFirebaseJWKS(ctx context.Context, logger *log.Logger) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(FirebaseJWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.WithError(err).Warn("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load jwks: %v", apperr.ErrUpstream, err)
	}
	return jwks, nil
}

// VerifyHeader verifies the bearer token in an Authorization header value.
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	token, err := BearerToken(header)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	return v.Verify(token)
}

// Verify validates a raw token and extracts the bearer's identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	id, err := v.verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	return id, nil
}

func (v *Verifier) verify(tokenStr string) (Identity, error) {
	parsed, err := v.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if v.TestMode {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return v.TestSecret, nil
		}
		if v.JWKS == nil {
			return nil, errors.New("jwks not configured")
		}
		return v.JWKS.Keyfunc(t)
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}
	if !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return Identity{}, errors.New("token expired")
	}
	if v.Audience != "" && !claims.VerifyAudience(v.Audience, true) {
		return Identity{}, errors.New("invalid audience")
	}
	if v.Issuer != "" && !claims.VerifyIssuer(v.Issuer, true) {
		return Identity{}, errors.New("invalid issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub, _ = claims["user_id"].(string)
	}
	if sub == "" {
		return Identity{}, errors.New("missing sub")
	}
	id := Identity{ExternalID: sub}
	id.Name, _ = claims["name"].(string)
	id.Email, _ = claims["email"].(string)
	return id, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthorization
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", errBadAuthorization
	}
	token := strings.TrimSpace(header[len(prefix):])
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}
