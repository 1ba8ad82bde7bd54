package xds

import (
	"context"

	"github.com/flexcp/flexcp/internal/compiler"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/flexcp/flexcp/internal/repo"
)

// snapshotLimit is the page size the Store pulls a Team's resources in when
// compiling a snapshot. A Team's live resource count is expected to stay
// well under this; the Builder has no notion of pagination, so anything
// beyond one page would silently vanish from compiled snapshots.
const snapshotLimit = 5000

// Store is the facade between internal/repo and the snapshot/propagator
// packages: it satisfies snapshot.ResourceProvider and
// propagator.DataplaneLister without either of those packages importing
// internal/repo (or pgx) directly, the same seam the teacher drew between
// its SnapshotManager and its Consul client behind small interfaces.
type Store struct {
	clusters     *repo.ClusterRepo
	routeConfigs *repo.RouteConfigRepo
	listeners    *repo.ListenerRepo
	filters      *repo.FilterRepo
	dataplanes   *repo.DataplaneRepo
}

func NewStore(clusters *repo.ClusterRepo, routeConfigs *repo.RouteConfigRepo, listeners *repo.ListenerRepo, filters *repo.FilterRepo, dataplanes *repo.DataplaneRepo) *Store {
	return &Store{
		clusters:     clusters,
		routeConfigs: routeConfigs,
		listeners:    listeners,
		filters:      filters,
		dataplanes:   dataplanes,
	}
}

func (s *Store) Clusters(ctx context.Context, team domain.TeamID) ([]domain.Cluster, error) {
	return s.clusters.List(ctx, repo.TeamSet(team.String()), repo.Pagination{Limit: snapshotLimit})
}

func (s *Store) RouteConfigs(ctx context.Context, team domain.TeamID) ([]domain.RouteConfig, error) {
	return s.routeConfigs.List(ctx, repo.TeamSet(team.String()), repo.Pagination{Limit: snapshotLimit})
}

func (s *Store) VirtualHosts(ctx context.Context, rcID domain.RouteConfigID) ([]compiler.VirtualHostInput, error) {
	vhosts, err := s.routeConfigs.ListVirtualHosts(ctx, rcID)
	if err != nil {
		return nil, err
	}
	out := make([]compiler.VirtualHostInput, len(vhosts))
	for i, v := range vhosts {
		out[i] = compiler.VirtualHostInput{VH: v.VH, Routes: v.Routes}
	}
	return out, nil
}

func (s *Store) Listeners(ctx context.Context, team domain.TeamID) ([]domain.Listener, error) {
	return s.listeners.List(ctx, repo.TeamSet(team.String()), repo.Pagination{Limit: snapshotLimit})
}

func (s *Store) Filters(ctx context.Context, team domain.TeamID) ([]domain.Filter, error) {
	return s.filters.List(ctx, repo.TeamSet(team.String()), repo.Pagination{Limit: snapshotLimit})
}

// ListDataplaneIDs satisfies propagator.DataplaneLister.
func (s *Store) ListDataplaneIDs(ctx context.Context, team domain.TeamID) ([]domain.DataplaneID, error) {
	dps, err := s.dataplanes.List(ctx, repo.TeamSet(team.String()), repo.Pagination{Limit: snapshotLimit})
	if err != nil {
		return nil, err
	}
	ids := make([]domain.DataplaneID, len(dps))
	for i, dp := range dps {
		ids[i] = dp.ID
	}
	return ids, nil
}
