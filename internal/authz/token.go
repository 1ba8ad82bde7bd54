package authz

import (
	"fmt"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token's custom claim set. Token *issuance* (login,
// password checks, session management) is an external collaborator per
// spec 1 — this type is only what the core needs to parse a handed-in
// token into an AuthContext.
type Claims struct {
	jwt.RegisteredClaims
	PrincipalID string   `json:"principal_id"`
	Scopes      []string `json:"scopes"`
	OrgID       string   `json:"org_id"`
	Admin       bool     `json:"admin"`
}

// ParseToken validates signature and expiry with keyFunc, then parses and
// validates the scope grammar, rejecting multi-org tokens at this boundary
// (spec 4.3: "the kernel never sees such tokens at decision time").
func ParseToken(raw string, keyFunc jwt.Keyfunc) (AuthContext, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, keyFunc)
	if err != nil || !token.Valid {
		return AuthContext{}, apierr.Unauthenticated("invalid or expired token")
	}

	scopes, err := ParseScopes(claims.Scopes)
	if err != nil {
		return AuthContext{}, apierr.Unauthenticated(fmt.Sprintf("malformed scope claim: %v", err))
	}

	orgs := ExtractOrgScopes(scopes)
	if len(orgs) > 1 {
		return AuthContext{}, apierr.Unauthenticated("token carries scopes for more than one org")
	}

	return AuthContext{
		PrincipalID: claims.PrincipalID,
		Scopes:      scopes,
		OrgID:       claims.OrgID,
		IsAdmin:     claims.Admin,
	}, nil
}
