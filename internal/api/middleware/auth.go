// Package middleware provides HTTP middleware for the orgwarden API.
package middleware

import (
	"net/http"

	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// PrincipalContextKey is the context key for the authenticated principal.
const PrincipalContextKey ContextKey = "principal"

// Authenticate returns a Gin middleware that requires a bearer token the
// verifier accepts and stores the resulting principal in the context.
func Authenticate(verifier auth.TokenVerifier, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		token := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		principal, err := verifier.VerifyBearer(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(string(PrincipalContextKey), principal)

		log.Debug().
			Str("login", principal.Login).
			Str("path", c.Request.URL.Path).
			Msg("authenticated request")

		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Authenticate. Requests that
// did not pass through it yield the anonymous principal.
func PrincipalFrom(c *gin.Context) models.Principal {
	v, ok := c.Get(string(PrincipalContextKey))
	if !ok {
		return models.Principal{}
	}
	p, _ := v.(models.Principal)
	return p
}
