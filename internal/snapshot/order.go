package snapshot

import (
	"context"

	"github.com/envoyproxy/go-control-plane/pkg/cache/types"
	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	"github.com/envoyproxy/go-control-plane/pkg/resource/v3"
)

// pushMakeBeforeBreak pushes next to delegate under key so an ADS stream
// never sees a Route/Listener before the Cluster/Endpoint it depends on
// (spec 4.6.4: "clusters -> endpoints -> routes -> listeners on
// additions"). It stages the push in two SetSnapshot calls: first next's
// clusters/endpoints paired with the previous rebuild's routes/listeners
// (a no-op for any stream that already has those), then the full next
// snapshot. Referential integrity (spec 3.3's FK/conflict-blocking rule)
// already keeps a live Route or Listener from naming a Cluster the
// repository would let disappear out from under it, so removals never
// need the symmetric reverse staging -- by the time a Cluster can be
// deleted, nothing still depends on it.
func pushMakeBeforeBreak(ctx context.Context, delegate cachev3.SnapshotCache, key string, prev, next *cachev3.Snapshot) error {
	if prev == nil {
		return delegate.SetSnapshot(ctx, key, next)
	}

	staged, err := cachev3.NewSnapshot(next.GetVersion(resource.ClusterType)+"-deps", map[resource.Type][]types.Resource{
		resource.ClusterType:  resourceSlice(next, resource.ClusterType),
		resource.EndpointType: resourceSlice(next, resource.EndpointType),
		resource.RouteType:    resourceSlice(prev, resource.RouteType),
		resource.ListenerType: resourceSlice(prev, resource.ListenerType),
	})
	if err != nil {
		return err
	}
	if err := delegate.SetSnapshot(ctx, key, staged); err != nil {
		return err
	}
	return delegate.SetSnapshot(ctx, key, next)
}

func resourceSlice(snap *cachev3.Snapshot, typeURL resource.Type) []types.Resource {
	res := snap.GetResources(typeURL)
	out := make([]types.Resource, 0, len(res))
	for _, r := range res {
		out = append(out, r)
	}
	return out
}
