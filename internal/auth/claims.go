package auth

// roleClaimNames are the claims providers put directory roles in, in the
// order they are tried.
var roleClaimNames = []string{
	"roles",          // Azure AD, custom mappers
	"groups",         // Keycloak, Okta
	"cognito:groups", // AWS Cognito
}

// RolesFromClaims returns the roles of the first populated role claim.
// Keycloak's nested realm_access.roles is consulted last.
func RolesFromClaims(claims map[string]any) []string {
	for _, name := range roleClaimNames {
		if roles := extractStringSlice(claims[name]); len(roles) > 0 {
			return roles
		}
	}
	if realm, ok := claims["realm_access"].(map[string]any); ok {
		return extractStringSlice(realm["roles"])
	}
	return nil
}

// extractStringSlice converts the possible claim shapes to a string slice.
func extractStringSlice(claim any) []string {
	switch v := claim.(type) {
	case []string:
		return v
	case []any:
		var result []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
