package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-sourced knobs from spec 6.4. No
// command-line flags are parsed; flags.go only supplies the LogLevelFlag
// type that Load uses to parse LOG_LEVEL. An optional CONFIG_FILE YAML
// overlay (yaml.go's FileConfig) can further tune the timeout fields
// without a redeploy.
type Config struct {
	DatabaseURL string

	XDSBindAddr    string
	MetricsAddr    string
	RESTAddr       string

	LogLevel LogLevelFlag
	LogJSON  bool

	OTLPEndpoint string

	TrustedProxyHeader string
	TrustedProxyDepth  int

	JWTSigningKey []byte

	ShutdownGracePeriod time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	XDSKeepaliveTime    time.Duration
	XDSKeepaliveTimeout time.Duration
}

// Load reads Config from the process environment, applying the defaults
// named in spec 6.4 and failing closed on an invalid DATABASE_URL.
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Config{
		DatabaseURL:        getenv("DATABASE_URL"),
		XDSBindAddr:        firstNonEmpty(getenv("XDS_BIND_ADDR"), "0.0.0.0:18000"),
		MetricsAddr:        firstNonEmpty(getenv("METRICS_ADDR"), ":19005"),
		RESTAddr:           firstNonEmpty(getenv("REST_ADDR"), ":8080"),
		LogJSON:            getenv("LOG_JSON") == "true",
		OTLPEndpoint:       getenv("OTLP_ENDPOINT"),
		TrustedProxyHeader: firstNonEmpty(getenv("TRUSTED_PROXY_HEADER"), "X-Forwarded-For"),
		TrustedProxyDepth:  1,
		JWTSigningKey:      []byte(getenv("JWT_SIGNING_KEY")),

		ShutdownGracePeriod: 5 * time.Second,
		HTTPReadTimeout:     10 * time.Second,
		HTTPWriteTimeout:    10 * time.Second,
		XDSKeepaliveTime:    30 * time.Second,
		XDSKeepaliveTimeout: 5 * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") && !strings.HasPrefix(cfg.DatabaseURL, "postgres://") {
		return Config{}, fmt.Errorf("DATABASE_URL must start with postgresql:// or postgres://")
	}

	var lvl LogLevelFlag
	if s := getenv("LOG_LEVEL"); s != "" {
		if err := lvl.Set(s); err != nil {
			return Config{}, err
		}
	}
	cfg.LogLevel = lvl

	if s := getenv("TRUSTED_PROXY_DEPTH"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil {
			return Config{}, fmt.Errorf("TRUSTED_PROXY_DEPTH must be an integer: %w", err)
		}
		cfg.TrustedProxyDepth = d
	}

	if path := getenv("CONFIG_FILE"); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return Config{}, fmt.Errorf("loading CONFIG_FILE %q: %w", path, err)
		}
		fc.applyTo(&cfg)
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
