// Package servicetoken issues and checks the short-lived HS256 JWTs that
// operators and sibling services present to internal endpoints.
package servicetoken

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTokenTTL = 60 * time.Second
	DefaultLeeway   = 15 * time.Second
	DefaultKeyID    = "internal-active"

	minSecretLength = 32
)

var (
	ErrTokenRequired    = errors.New("service token required")
	ErrUnknownKey       = errors.New("unknown service token key")
	ErrIssuerNotAllowed = errors.New("service token issuer not allowed")
	ErrMissingClaims    = errors.New("service token missing jti or subject")
)

// Caller identifies the holder of a verified token.
type Caller struct {
	Issuer    string
	TokenID   string
	ExpiresAt time.Time
}

// Signer issues tokens signed with a single secret.
type Signer struct {
	issuer string
	ttl    time.Duration
	key    signingKey
	now    func() time.Time
}

// SignerOptions configures internal service token signing.
type SignerOptions struct {
	Secret string
	KeyID  string
	Issuer string
	TTL    time.Duration
}

// Verifier accepts tokens signed by any configured key, addressed to its
// audience and issued by an allowed issuer.
type Verifier struct {
	audience string
	issuers  map[string]struct{}
	leeway   time.Duration
	keys     map[string][]byte
}

// VerifierOptions configures verification. Secret is registered under KeyID
// (DefaultKeyID when empty); Secrets holds older keys during rotation.
type VerifierOptions struct {
	Secret         string
	KeyID          string
	Secrets        map[string]string
	Audience       string
	AllowedIssuers []string
	Leeway         time.Duration
}

type signingKey struct {
	id     string
	secret []byte
}

func newSigningKey(id, secret string) (signingKey, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultKeyID
	}
	if len(secret) < minSecretLength {
		return signingKey{}, fmt.Errorf("service token key %q: secret must be at least %d bytes", id, minSecretLength)
	}
	return signingKey{id: id, secret: []byte(secret)}, nil
}

func NewSignerWithOptions(opts SignerOptions) (*Signer, error) {
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, errors.New("service token issuer is required")
	}
	key, err := newSigningKey(opts.KeyID, opts.Secret)
	if err != nil {
		return nil, err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{issuer: issuer, ttl: ttl, key: key, now: time.Now}, nil
}

// Sign issues a token for audience.
func (s *Signer) Sign(audience string) (string, error) {
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return "", errors.New("service token audience is required")
	}
	issuedAt := s.now().UTC()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		ID:        uuid.NewString(),
	})
	t.Header["kid"] = s.key.id
	return t.SignedString(s.key.secret)
}

func NewVerifierWithOptions(opts VerifierOptions) (*Verifier, error) {
	v := &Verifier{
		audience: strings.TrimSpace(opts.Audience),
		issuers:  make(map[string]struct{}),
		leeway:   opts.Leeway,
		keys:     make(map[string][]byte),
	}
	if v.audience == "" {
		return nil, errors.New("service token audience is required")
	}
	if v.leeway <= 0 {
		v.leeway = DefaultLeeway
	}
	for _, issuer := range opts.AllowedIssuers {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			v.issuers[issuer] = struct{}{}
		}
	}
	if len(v.issuers) == 0 {
		return nil, errors.New("at least one allowed issuer is required")
	}

	add := func(id, secret string) error {
		key, err := newSigningKey(id, secret)
		if err != nil {
			return err
		}
		v.keys[key.id] = key.secret
		return nil
	}
	if opts.Secret != "" {
		if err := add(opts.KeyID, opts.Secret); err != nil {
			return nil, err
		}
	}
	for id, secret := range opts.Secrets {
		if strings.TrimSpace(id) == "" || secret == "" {
			continue
		}
		if err := add(id, secret); err != nil {
			return nil, err
		}
	}
	if len(v.keys) == 0 {
		return nil, errors.New("service token verifier requires a secret")
	}
	return v, nil
}

// Verify checks signature, expiry, audience and issuer of token.
func (v *Verifier) Verify(token string) (Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Caller{}, ErrTokenRequired
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, v.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return Caller{}, fmt.Errorf("verify service token: %w", err)
	}
	if _, ok := v.issuers[claims.Issuer]; !ok {
		return Caller{}, ErrIssuerNotAllowed
	}
	if claims.ID == "" || strings.TrimSpace(claims.Subject) == "" {
		return Caller{}, ErrMissingClaims
	}
	return Caller{Issuer: claims.Issuer, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (v *Verifier) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	secret, ok := v.keys[strings.TrimSpace(kid)]
	if !ok {
		return nil, ErrUnknownKey
	}
	return secret, nil
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ParseVerifySecrets parses "kid=secret,kid2=secret2".
func ParseVerifySecrets(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, "=")
		kid, secret = strings.TrimSpace(kid), strings.TrimSpace(secret)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid verify key entry for %q", kid)
		}
		out[kid] = secret
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
