package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validListenerConfig() ListenerConfig {
	return ListenerConfig{
		FilterChains: []FilterChain{
			{Name: "default", HCM: &HTTPConnectionManager{RouteConfigName: "rc1"}},
		},
	}
}

func TestNewListener_Valid(t *testing.T) {
	team := NewTeamID()
	l, err := NewListener("l1", team, "0.0.0.0", 10000, ProtocolHTTP, validListenerConfig())
	require.NoError(t, err)
	require.Equal(t, "l1", l.Name)
	require.Equal(t, ListenerActive, l.Status)
}

func TestNewListener_BadPort(t *testing.T) {
	for _, p := range []int{0, -1, 65536} {
		_, err := NewListener("l1", NewTeamID(), "0.0.0.0", p, ProtocolHTTP, validListenerConfig())
		require.Error(t, err, "port %d should be invalid", p)
	}
}

func TestNewListener_EmptyAddress(t *testing.T) {
	_, err := NewListener("l1", NewTeamID(), "", 8080, ProtocolHTTP, validListenerConfig())
	require.Error(t, err)
}

func TestNewListener_BadProtocol(t *testing.T) {
	_, err := NewListener("l1", NewTeamID(), "0.0.0.0", 8080, "sctp", validListenerConfig())
	require.Error(t, err)
}

func TestNewListener_NoFilterChains(t *testing.T) {
	_, err := NewListener("l1", NewTeamID(), "0.0.0.0", 8080, ProtocolHTTP, ListenerConfig{})
	require.Error(t, err)
}

func TestNewListener_HTTPRequiresHCM(t *testing.T) {
	cfg := ListenerConfig{FilterChains: []FilterChain{{Name: "tcp-only"}}}
	_, err := NewListener("l1", NewTeamID(), "0.0.0.0", 8080, ProtocolHTTP, cfg)
	require.Error(t, err)
}

func TestNewListener_TCPWithoutHCMIsValid(t *testing.T) {
	cfg := ListenerConfig{FilterChains: []FilterChain{{Name: "tcp-only"}}}
	_, err := NewListener("l1", NewTeamID(), "0.0.0.0", 8080, ProtocolTCP, cfg)
	require.NoError(t, err)
}
