package propagator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcp/flexcp/internal/domain"
)

type fakeCache struct {
	invalidated []domain.NodeKey
	errFor      map[string]error
}

func (f *fakeCache) Invalidate(_ context.Context, key domain.NodeKey) error {
	f.invalidated = append(f.invalidated, key)
	return f.errFor[key.String()]
}

type fakeDataplanes struct {
	ids []domain.DataplaneID
	err error
}

func (f *fakeDataplanes) ListDataplaneIDs(context.Context, domain.TeamID) ([]domain.DataplaneID, error) {
	return f.ids, f.err
}

func TestOnTeamResourceChanged_InvalidatesTeamAndDataplaneKeys(t *testing.T) {
	team := domain.NewTeamID()
	dp1, dp2 := domain.NewDataplaneID(), domain.NewDataplaneID()
	cache := &fakeCache{errFor: map[string]error{}}
	dataplanes := &fakeDataplanes{ids: []domain.DataplaneID{dp1, dp2}}

	p := New(cache, dataplanes)
	err := p.OnTeamResourceChanged(context.Background(), team)
	require.NoError(t, err)
	require.Len(t, cache.invalidated, 3)
	require.Equal(t, domain.NodeKey{Team: team}, cache.invalidated[0])
	require.Equal(t, domain.NodeKey{Team: team, Dataplane: dp1, HasDP: true}, cache.invalidated[1])
	require.Equal(t, domain.NodeKey{Team: team, Dataplane: dp2, HasDP: true}, cache.invalidated[2])
}

func TestOnTeamResourceChanged_NoDataplanesInvalidatesJustTeamKey(t *testing.T) {
	team := domain.NewTeamID()
	cache := &fakeCache{errFor: map[string]error{}}
	p := New(cache, &fakeDataplanes{})

	require.NoError(t, p.OnTeamResourceChanged(context.Background(), team))
	require.Equal(t, []domain.NodeKey{{Team: team}}, cache.invalidated)
}

func TestOnTeamResourceChanged_DataplaneListErrorPropagates(t *testing.T) {
	p := New(&fakeCache{}, &fakeDataplanes{err: errors.New("boom")})
	err := p.OnTeamResourceChanged(context.Background(), domain.NewTeamID())
	require.Error(t, err)
}

func TestOnTeamResourceChanged_InvalidateErrorIsReturnedButAllKeysAttempted(t *testing.T) {
	team := domain.NewTeamID()
	dp := domain.NewDataplaneID()
	teamKey := domain.NodeKey{Team: team}
	cache := &fakeCache{errFor: map[string]error{teamKey.String(): errors.New("rebuild failed")}}
	p := New(cache, &fakeDataplanes{ids: []domain.DataplaneID{dp}})

	err := p.OnTeamResourceChanged(context.Background(), team)
	require.Error(t, err)
	require.Len(t, cache.invalidated, 2)
}
