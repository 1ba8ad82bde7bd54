package snapshot

import (
	"context"

	"github.com/flexcp/flexcp/internal/compiler"
	"github.com/flexcp/flexcp/internal/domain"
)

// ResourceProvider is everything the Builder needs to read back a Team's
// current resources. It is satisfied by a thin facade over internal/repo
// (see internal/xds/store.go), keeping this package free of a pgx
// dependency so it can be tested against fakes.
type ResourceProvider interface {
	Clusters(ctx context.Context, team domain.TeamID) ([]domain.Cluster, error)
	RouteConfigs(ctx context.Context, team domain.TeamID) ([]domain.RouteConfig, error)
	VirtualHosts(ctx context.Context, rcID domain.RouteConfigID) ([]compiler.VirtualHostInput, error)
	Listeners(ctx context.Context, team domain.TeamID) ([]domain.Listener, error)
	Filters(ctx context.Context, team domain.TeamID) ([]domain.Filter, error)
}
