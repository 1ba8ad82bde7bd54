package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	_, err := Load(env(map[string]string{}))
	require.Error(t, err)
}

func TestLoad_RejectsNonPostgresURL(t *testing.T) {
	_, err := Load(env(map[string]string{"DATABASE_URL": "mysql://x"}))
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(env(map[string]string{"DATABASE_URL": "postgresql://localhost/flexcp"}))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:18000", cfg.XDSBindAddr)
	require.Equal(t, "X-Forwarded-For", cfg.TrustedProxyHeader)
	require.Equal(t, 1, cfg.TrustedProxyDepth)
}

func TestLoad_AcceptsPostgresScheme(t *testing.T) {
	_, err := Load(env(map[string]string{"DATABASE_URL": "postgres://localhost/flexcp"}))
	require.NoError(t, err)
}
