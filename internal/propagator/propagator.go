// Package propagator turns a successful repository write into the set of
// NodeKey snapshot rebuilds it implies, the way the teacher's
// DiscoveredServiceAggregator.UpdateServices funneled many service-discovery
// loaders into one BuildAndPushSnapshot call -- generalized here to funnel
// one Team's mutation into every NodeKey (team-wide and per-Dataplane) that
// Team's resources are visible to.
package propagator

import (
	"context"
	"log/slog"

	"github.com/flexcp/flexcp/internal/domain"
)

// Invalidator is the subset of snapshot.Cache the propagator depends on.
type Invalidator interface {
	Invalidate(ctx context.Context, key domain.NodeKey) error
}

// DataplaneLister resolves the Dataplanes subscribed under a Team, so a
// mutation invalidates every node key derived from that Team, not just the
// bare team-wide one.
type DataplaneLister interface {
	ListDataplaneIDs(ctx context.Context, team domain.TeamID) ([]domain.DataplaneID, error)
}

// Propagator fans a Team-scoped mutation out to every affected NodeKey.
type Propagator struct {
	cache     Invalidator
	dataplanes DataplaneLister
}

func New(cache Invalidator, dataplanes DataplaneLister) *Propagator {
	return &Propagator{cache: cache, dataplanes: dataplanes}
}

// OnTeamResourceChanged invalidates every NodeKey a Team's clusters,
// route configs, listeners, or filters can appear in. One repository write
// can affect multiple resource kinds already compiled together into a
// single snapshot (spec 4: a cluster rename affects the RouteConfigs that
// reference it), so the propagator does not try to narrow by resource
// kind -- it always rebuilds the whole Team.
func (p *Propagator) OnTeamResourceChanged(ctx context.Context, team domain.TeamID) error {
	keys := []domain.NodeKey{{Team: team}}

	dpIDs, err := p.dataplanes.ListDataplaneIDs(ctx, team)
	if err != nil {
		slog.Error("listing dataplanes for propagation", "team", team.String(), "error", err)
		return err
	}
	for _, dp := range dpIDs {
		keys = append(keys, domain.NodeKey{Team: team, Dataplane: dp, HasDP: true})
	}

	var firstErr error
	for _, key := range keys {
		if err := p.cache.Invalidate(ctx, key); err != nil {
			slog.Error("invalidating snapshot", "node_key", key.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
