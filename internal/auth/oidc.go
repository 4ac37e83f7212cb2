// Package auth provides bearer-token authentication and organization
// scoped authorization for orgwarden.
package auth

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
)

// TokenVerifier turns a bearer token into the calling principal.
type TokenVerifier interface {
	VerifyBearer(ctx context.Context, rawToken string) (models.Principal, error)
}

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

// OIDC verifies bearer tokens issued by an OIDC provider.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
	logger   zerolog.Logger
}

var _ TokenVerifier = (*OIDC)(nil)

// NewOIDC discovers the provider at cfg.Issuer and creates a verifier for
// tokens issued to cfg.ClientID.
func NewOIDC(ctx context.Context, cfg OIDCConfig, logger zerolog.Logger) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	o := &OIDC{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		logger:   logger.With().Str("component", "oidc").Logger(),
	}
	o.logger.Info().Str("issuer", cfg.Issuer).Msg("OIDC provider initialized")
	return o, nil
}

// tokenClaims holds the claims a principal is built from.
type tokenClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// VerifyBearer verifies the token signature, issuer, audience and expiry.
// The login is the e-mail claim, or the preferred username when no e-mail
// is present; roles come from the first populated role claim.
func (o *OIDC) VerifyBearer(ctx context.Context, rawToken string) (models.Principal, error) {
	token, err := o.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.Principal{}, fmt.Errorf("verify token: %w", err)
	}

	var claims tokenClaims
	if err := token.Claims(&claims); err != nil {
		return models.Principal{}, fmt.Errorf("extract claims: %w", err)
	}
	var all map[string]any
	if err := token.Claims(&all); err != nil {
		return models.Principal{}, fmt.Errorf("extract claims: %w", err)
	}

	login := claims.Email
	if login == "" {
		login = claims.PreferredUsername
	}
	if login == "" {
		return models.Principal{}, fmt.Errorf("token of %s carries no login claim", claims.Subject)
	}

	p := models.Principal{Login: models.NormalizeLogin(login), Roles: RolesFromClaims(all)}
	o.logger.Debug().Str("subject", claims.Subject).Str("login", p.Login).Msg("token verified")
	return p, nil
}
