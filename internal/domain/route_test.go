package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPathMatch_Template(t *testing.T) {
	pm, err := NewPathMatch(PathTemplate, "/users/{id}/orders/{orderId}")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "orderId"}, pm.Params)
}

func TestNewPathMatch_PrefixMustStartWithSlash(t *testing.T) {
	_, err := NewPathMatch(PathPrefix, "users")
	require.Error(t, err)
}

func TestNewPathMatch_InvalidRegex(t *testing.T) {
	_, err := NewPathMatch(PathRegex, "(unclosed")
	require.Error(t, err)
}

func TestNewPathMatch_UnknownKind(t *testing.T) {
	_, err := NewPathMatch("bogus", "/x")
	require.Error(t, err)
}

func TestNewWeightedClusterAction_WeightsSumPositive(t *testing.T) {
	exists := func(string) bool { return true }
	_, err := NewWeightedClusterAction([]WeightedCluster{{ClusterName: "a", Weight: 1}, {ClusterName: "b", Weight: 2}}, exists)
	require.NoError(t, err)

	_, err = NewWeightedClusterAction(nil, exists)
	require.Error(t, err)

	_, err = NewWeightedClusterAction([]WeightedCluster{{ClusterName: "a", Weight: 0}}, exists)
	require.Error(t, err)
}

func TestNewWeightedClusterAction_ClusterMustExist(t *testing.T) {
	exists := func(name string) bool { return name == "a" }
	_, err := NewWeightedClusterAction([]WeightedCluster{{ClusterName: "b", Weight: 1}}, exists)
	require.Error(t, err)
}

func TestNewForwardAction_RequiresExistingCluster(t *testing.T) {
	_, err := NewForwardAction("missing", 0, "", nil, false)
	require.Error(t, err)

	a, err := NewForwardAction("present", 5, "/rewritten", nil, true)
	require.NoError(t, err)
	require.Equal(t, ActionForward, a.Kind)
}
