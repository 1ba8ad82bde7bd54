package config

import (
	"os"
	"time"

	yaml "go.yaml.in/yaml/v2"
)

// Duration is a wrapper around time.Duration that implements yaml.Unmarshaler
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ToDuration converts the custom Duration type back to time.Duration
func (d *Duration) ToDuration() time.Duration {
	return time.Duration(*d)
}

// FileConfig is the optional YAML overlay spec 6.4's timeouts can be tuned
// through without touching the environment; every field is optional and a
// zero value leaves Config's built-in default alone. Grounded on the
// teacher's internal/discovery/yaml/yaml_loader.go, adapted from loading a
// service-discovery topology to loading these few timeout knobs.
type FileConfig struct {
	ShutdownGracePeriod Duration `yaml:"shutdown_grace_period"`
	HTTPReadTimeout     Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout    Duration `yaml:"http_write_timeout"`
	XDSKeepaliveTime    Duration `yaml:"xds_keepalive_time"`
	XDSKeepaliveTimeout Duration `yaml:"xds_keepalive_timeout"`
}

// loadFileConfig reads and parses the YAML file at path. Called only when
// CONFIG_FILE is set; a missing CONFIG_FILE is not an error, a missing file
// at a given path is.
func loadFileConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}

func (fc FileConfig) applyTo(cfg *Config) {
	if fc.ShutdownGracePeriod != 0 {
		cfg.ShutdownGracePeriod = fc.ShutdownGracePeriod.ToDuration()
	}
	if fc.HTTPReadTimeout != 0 {
		cfg.HTTPReadTimeout = fc.HTTPReadTimeout.ToDuration()
	}
	if fc.HTTPWriteTimeout != 0 {
		cfg.HTTPWriteTimeout = fc.HTTPWriteTimeout.ToDuration()
	}
	if fc.XDSKeepaliveTime != 0 {
		cfg.XDSKeepaliveTime = fc.XDSKeepaliveTime.ToDuration()
	}
	if fc.XDSKeepaliveTimeout != 0 {
		cfg.XDSKeepaliveTimeout = fc.XDSKeepaliveTimeout.ToDuration()
	}
}
