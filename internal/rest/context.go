package rest

import (
	"context"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/authz"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/google/uuid"
)

type authCtxKey struct{}

func withAuth(ctx context.Context, ac authz.AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, ac)
}

// authFrom returns the authenticated principal attached by requireAuth.
// Handlers mounted behind requireAuth can assume this always succeeds;
// the zero value is only ever returned for a bug in route wiring.
func authFrom(ctx context.Context) authz.AuthContext {
	ac, _ := ctx.Value(authCtxKey{}).(authz.AuthContext)
	return ac
}

// principalID resolves ac's bearer-token subject into a domain.PrincipalID.
// A token that parsed successfully but carries a non-UUID principal_id
// claim is malformed in a way ParseToken cannot see on its own.
func principalID(ac authz.AuthContext) (domain.PrincipalID, error) {
	u, err := uuid.Parse(ac.PrincipalID)
	if err != nil {
		return domain.PrincipalID{}, apierr.Unauthenticated("token principal_id is not a valid id")
	}
	return domain.PrincipalID(u), nil
}
