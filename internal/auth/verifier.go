/**
 * @description
 * Verification of the signed identity assertion an approver presents on the
 * confirmation page. Tokens are RS256 JWTs verified against the issuer's
 * currently published JWKS, matched by key ID. The three failure classes
 * (malformed token, no matching key, bad signature) are distinct errors so
 * the caller can log and alert on them separately.
 */
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned for a token that is not structurally a
	// three-segment JWT. This is a hard failure, never a silent false.
	ErrMalformedToken = errors.New("auth: malformed token structure")
	// ErrKeyNotFound is returned when the issuer's key set has no key with
	// the token's key ID.
	ErrKeyNotFound = errors.New("auth: no matching key in issuer key set")
	// ErrInvalidSignature is returned when the signature does not verify
	// against the matched key, or a registered claim check fails.
	ErrInvalidSignature = errors.New("auth: invalid token signature")
)

// Identity is the verified subject of an assertion.
type Identity struct {
	Subject string
	Email   string
}

// Verifier checks identity assertions against a JWKS endpoint.
type Verifier struct {
	jwksURL    string
	audience   string
	httpClient *http.Client
}

// NewVerifier creates a Verifier for the given JWKS endpoint. audience, when
// non-empty, is required to appear in the token's aud claim.
func NewVerifier(jwksURL, audience string) *Verifier {
	return &Verifier{
		jwksURL:  jwksURL,
		audience: audience,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// Verify validates the raw token and returns the asserted identity.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if parts := strings.Split(rawToken, "."); len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header has no kid", ErrKeyNotFound)
		}
		return v.fetchKey(ctx, kid)
	}, parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyNotFound):
			return nil, err
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	identity := &Identity{}
	identity.Subject, _ = claims["sub"].(string)
	identity.Email, _ = claims["email"].(string)
	if identity.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidSignature)
	}
	return identity, nil
}

// fetchKey downloads the issuer's current key set and returns the RSA public
// key with the given key ID. Keys are fetched per verification: the issuer
// rotates them and a confirmation happens at most a handful of times a day.
func (v *Verifier) fetchKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching key set: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching key set: unexpected status %d", resp.StatusCode)
	}

	var keySet jwks
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decoding key set: %w", err)
	}

	for _, key := range keySet.Keys {
		if key.Kid == kid && key.Kty == "RSA" {
			return parseRSAKey(key)
		}
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

func parseRSAKey(key jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("decoding key modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("decoding key exponent: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
