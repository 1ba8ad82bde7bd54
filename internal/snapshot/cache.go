package snapshot

import (
	"context"
	"log/slog"
	"sync"

	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	"github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/flexcp/flexcp/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// keyState tracks one NodeKey's in-flight rebuild. At most one rebuild runs
// per key at a time (spec 5: "at most one in-flight rebuild per node key");
// a mutation that arrives mid-rebuild sets dirty so the builder immediately
// loops once more instead of the caller blocking on a second goroutine.
type keyState struct {
	mu         sync.Mutex
	rebuilding bool
	dirty      bool
	built      bool
	lastPushed *cachev3.Snapshot
}

// Cache coalesces rebuild requests per NodeKey and pushes the result into a
// go-control-plane SnapshotCache, generalizing the teacher's single global
// SnapshotManager (one builder, one cache-wide push) to per-key scoping so
// one Team's churn does not force a rebuild of every other Team's snapshot.
type Cache struct {
	builder  *Builder
	delegate cachev3.SnapshotCache
	metrics  *telemetry.Recorder

	mu     sync.Mutex
	states map[string]*keyState
}

func NewCache(builder *Builder, delegate cachev3.SnapshotCache, metrics *telemetry.Recorder) *Cache {
	return &Cache{
		builder:  builder,
		delegate: delegate,
		metrics:  metrics,
		states:   make(map[string]*keyState),
	}
}

// Invalidate schedules a rebuild for key. It returns once either this call's
// rebuild completed, or it discovered another rebuild already in flight and
// marked it dirty so that rebuild will loop again on this call's behalf.
func (c *Cache) Invalidate(ctx context.Context, key domain.NodeKey) error {
	state := c.stateFor(key)

	state.mu.Lock()
	if state.rebuilding {
		state.dirty = true
		state.mu.Unlock()
		return nil
	}
	state.rebuilding = true
	state.mu.Unlock()

	for {
		err := c.rebuildOnce(ctx, key, state)

		state.mu.Lock()
		if err != nil || !state.dirty {
			state.rebuilding = false
			if err == nil {
				state.built = true
			}
			state.mu.Unlock()
			return err
		}
		state.dirty = false
		state.mu.Unlock()
	}
}

// EnsureSnapshot builds key's snapshot if no rebuild has ever completed for
// it, so a newly connected Envoy (first OnStreamRequest for a node the
// control plane has never seen) gets a snapshot instead of the xDS server
// finding nothing in the delegate cache. Reconnects of an already-known key
// are a no-op here; OnTeamResourceChanged is what keeps a known key fresh.
func (c *Cache) EnsureSnapshot(ctx context.Context, key domain.NodeKey) error {
	state := c.stateFor(key)
	state.mu.Lock()
	already := state.built
	state.mu.Unlock()
	if already {
		return nil
	}
	return c.Invalidate(ctx, key)
}

func (c *Cache) rebuildOnce(ctx context.Context, key domain.NodeKey, state *keyState) error {
	timer := prometheus.NewTimer(c.metrics.SnapshotBuildTime.WithLabelValues(key.String()))
	defer timer.ObserveDuration()

	snap, err := c.builder.Build(ctx, key)
	if err != nil {
		slog.Error("snapshot build failed", "node_key", key.String(), "error", err)
		return err
	}
	if err := snap.Consistent(); err != nil {
		slog.Error("snapshot inconsistent", "node_key", key.String(), "error", err)
		return err
	}

	state.mu.Lock()
	prev := state.lastPushed
	state.mu.Unlock()

	if err := pushMakeBeforeBreak(ctx, c.delegate, key.String(), prev, snap); err != nil {
		slog.Error("setting snapshot failed", "node_key", key.String(), "error", err)
		return err
	}

	state.mu.Lock()
	state.lastPushed = snap
	state.mu.Unlock()

	c.metrics.SnapshotRebuilds.WithLabelValues(key.String()).Inc()
	slog.Info("snapshot rebuilt", "node_key", key.String(), "version", snap.GetVersion(resource.ClusterType))
	return nil
}

func (c *Cache) stateFor(key domain.NodeKey) *keyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	s, ok := c.states[k]
	if !ok {
		s = &keyState{}
		c.states[k] = s
	}
	return s
}
