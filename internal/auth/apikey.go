package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/rs/zerolog"
)

// ErrInvalidToken is returned for bearer tokens no verifier accepts.
var ErrInvalidToken = fmt.Errorf("invalid bearer token")

type staticToken struct {
	hash      string
	principal models.Principal
}

// StaticTokens accepts a fixed set of bearer tokens. It stands in for an
// OIDC provider in standalone mode. Only token hashes are kept.
type StaticTokens struct {
	tokens []staticToken
	logger zerolog.Logger
}

var _ TokenVerifier = (*StaticTokens)(nil)

// ParseStaticTokens parses "token=login:ROLE_A+ROLE_B" entries separated by
// ";". The role list may be empty.
func ParseStaticTokens(raw string, logger zerolog.Logger) (*StaticTokens, error) {
	s := &StaticTokens{logger: logger.With().Str("component", "static_tokens").Logger()}
	for i, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, rest, ok := strings.Cut(entry, "=")
		if !ok || token == "" {
			return nil, fmt.Errorf("static token %d: expected token=login:roles", i+1)
		}
		login, roles, _ := strings.Cut(rest, ":")
		login = models.NormalizeLogin(login)
		if login == "" {
			return nil, fmt.Errorf("static token %d: login is required", i+1)
		}
		p := models.Principal{Login: login}
		for _, r := range strings.Split(roles, "+") {
			if r = strings.TrimSpace(r); r != "" {
				p.Roles = append(p.Roles, r)
			}
		}
		s.tokens = append(s.tokens, staticToken{hash: HashAPIKey(token), principal: p})
	}
	return s, nil
}

// Len returns the number of configured tokens.
func (s *StaticTokens) Len() int { return len(s.tokens) }

// VerifyBearer implements TokenVerifier.
func (s *StaticTokens) VerifyBearer(ctx context.Context, rawToken string) (models.Principal, error) {
	for _, t := range s.tokens {
		if CompareAPIKeyHash(rawToken, t.hash) {
			s.logger.Debug().Str("login", t.principal.Login).Msg("static token validated")
			return t.principal, nil
		}
	}
	return models.Principal{}, ErrInvalidToken
}

// Chain tries each verifier in order and returns the first principal.
type Chain []TokenVerifier

// VerifyBearer implements TokenVerifier.
func (c Chain) VerifyBearer(ctx context.Context, rawToken string) (models.Principal, error) {
	var last error = ErrInvalidToken
	for _, v := range c {
		p, err := v.VerifyBearer(ctx, rawToken)
		if err == nil {
			return p, nil
		}
		last = err
	}
	return models.Principal{}, last
}

// HashAPIKey creates a SHA-256 hash of a token for storage/comparison.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// CompareAPIKeyHash compares a token with a stored hash using constant-time comparison.
func CompareAPIKeyHash(apiKey, storedHash string) bool {
	computedHash := HashAPIKey(apiKey)
	return subtle.ConstantTimeCompare([]byte(computedHash), []byte(storedHash)) == 1
}

// ExtractBearerToken extracts the token from an Authorization header value.
// Returns empty string if the header is not a valid Bearer token.
func ExtractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
