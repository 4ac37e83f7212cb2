package middleware

import (
	"net/http"

	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SystemAdminMiddleware returns a Gin middleware that only lets holders of
// the system admin role through. Must run after Authenticate.
func SystemAdminMiddleware(authz *auth.Authorizer, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "system_admin_middleware").Logger()

	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p.Anonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !authz.IsSystemAdmin(p) {
			log.Warn().
				Str("login", p.Login).
				Str("path", c.Request.URL.Path).
				Msg("non system admin attempted system admin access")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "system administrator access required"})
			return
		}
		c.Next()
	}
}
