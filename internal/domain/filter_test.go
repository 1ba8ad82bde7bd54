package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFilter_Valid(t *testing.T) {
	team := NewTeamID()
	f, err := NewFilter("f-cors", team, FilterCORS, json.RawMessage(`{"allow_origin":["*"]}`))
	require.NoError(t, err)
	require.Equal(t, "f-cors", f.Name)
	require.Equal(t, FilterCORS, f.Type)
}

func TestNewFilter_UnknownType(t *testing.T) {
	_, err := NewFilter("f1", NewTeamID(), "not-a-type", json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestNewFilter_SchemaViolation(t *testing.T) {
	_, err := NewFilter("f-rl", NewTeamID(), FilterLocalRateLimit, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestNewFilter_BadName(t *testing.T) {
	_, err := NewFilter("Bad Name", NewTeamID(), FilterCORS, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestNewDataplane_Valid(t *testing.T) {
	team := NewTeamID()
	dp, err := NewDataplane("primary", team)
	require.NoError(t, err)
	require.Equal(t, "primary", dp.Name)
	require.Equal(t, team, dp.Team)
}

func TestNewDataplane_BadName(t *testing.T) {
	_, err := NewDataplane("", NewTeamID())
	require.Error(t, err)
}
